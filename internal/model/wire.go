package model

import "time"

// WireMessage is the JSON shape of a message on the HTTP interface and in
// draft-webhook requests. Field names follow the existing n8n workflows.
type WireMessage struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"senderName"`
	Subject    string    `json:"subject"`
	Body       string    `json:"customerEmail"`
	CreatedAt  time.Time `json:"createdAT"`
	Summary    string    `json:"customerEmailSummary"`
	Reply      string    `json:"Reply_of_email"`
}

func ToWire(m Message) WireMessage {
	return WireMessage{
		ID:         m.ID,
		Sender:     m.Sender,
		SenderName: m.SenderName,
		Subject:    m.Subject,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
		Summary:    m.Summary,
		Reply:      m.Reply,
	}
}

// FromWire rebuilds a message received from the API. Everything the API
// returns is onscreen.
func FromWire(w WireMessage) Message {
	return Message{
		ID:         w.ID,
		Sender:     w.Sender,
		SenderName: w.SenderName,
		Subject:    w.Subject,
		Body:       w.Body,
		CreatedAt:  w.CreatedAt,
		Summary:    w.Summary,
		Reply:      w.Reply,
		Status:     StatusOnscreen,
	}
}
