// Package delivery sends approved replies to customers.
package delivery

import (
	"context"
	"encoding/json"

	"replydesk/internal/model"
)

// Channel delivers the final reply of a message (m.Reply). Failures are
// returned as *model.DeliveryError.
type Channel interface {
	Deliver(ctx context.Context, m model.Message) (Result, error)
}

// Result is the channel's acknowledgement, echoed to the API caller.
type Result struct {
	Channel string          `json:"channel"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

func failed(id string, err error) error {
	return &model.DeliveryError{ID: id, Err: err}
}
