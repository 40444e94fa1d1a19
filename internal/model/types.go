package model

import "time"

// Status is a message's position in the triage lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusOnscreen Status = "onscreen"
	StatusSent     Status = "sent"
	// StatusArchived is never stored in the active table; a message is
	// archived once it has moved into its sender's ConversationRecord.
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOnscreen, StatusSent, StatusArchived:
		return true
	}
	return false
}

// Message is a customer email plus its AI-drafted reply.
type Message struct {
	ID         string
	SourceID   string // upstream id (e.g. Gmail message id), empty when unknown
	Sender     string
	SenderName string
	Subject    string
	Body       string // original customer text
	Summary    string
	Reply      string // current draft
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SentAt     time.Time
}

// ArchivedMessage is a snapshot of a sent message kept in the sender's history.
type ArchivedMessage struct {
	MessageID  string    `json:"messageId"`
	Subject    string    `json:"subject"`
	Body       string    `json:"customerEmail"`
	Summary    string    `json:"customerEmailSummary"`
	Reply      string    `json:"reply"`
	CreatedAt  time.Time `json:"createdAT"`
	SentAt     time.Time `json:"sentAt"`
	ArchivedAt time.Time `json:"archivedAt"`
}

// ConversationRecord is the durable per-sender history.
type ConversationRecord struct {
	Email         string            `json:"email"`
	Conversations []ArchivedMessage `json:"conversations"`
}

// Snapshot converts a message into its archived form.
func (m Message) Snapshot(at time.Time) ArchivedMessage {
	return ArchivedMessage{
		MessageID:  m.ID,
		Subject:    m.Subject,
		Body:       m.Body,
		Summary:    m.Summary,
		Reply:      m.Reply,
		CreatedAt:  m.CreatedAt,
		SentAt:     m.SentAt,
		ArchivedAt: at,
	}
}

// Tone options offered to the operator when regenerating a draft.
var (
	Formalities = []string{"No Change", "Friendly", "Semi-Formal", "Formal"}
	Lengths     = []string{"No Change", "Short", "Medium", "Long"}
)

const NoChange = "No Change"

// Tone selects the style of a regenerated draft.
type Tone struct {
	Formality string
	Length    string
}

// String renders the combined descriptor sent to the draft service,
// e.g. "Friendly, Short length" or "No Change, No Change".
func (t Tone) String() string {
	formality := t.Formality
	if formality == "" {
		formality = NoChange
	}
	length := t.Length
	if length == "" {
		length = NoChange
	}
	if length != NoChange {
		length += " length"
	}
	return formality + ", " + length
}

// RegenerateRequest asks the draft service for a fresh reply.
type RegenerateRequest struct {
	Message       Message
	Tone          string
	Customization string
}
