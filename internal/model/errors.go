package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("message not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNothingToSend     = errors.New("no emails to auto-send")
	ErrAutoSendRunning   = errors.New("auto-send already running")
	ErrVoiceCapture      = errors.New("voice capture failed")
	ErrEmptyReply        = errors.New("reply is empty")
)

// DeliveryError reports that the delivery channel rejected or failed a send.
type DeliveryError struct {
	ID  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s: %v", e.ID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// DraftError reports that the draft service produced no usable reply.
type DraftError struct {
	ID  string
	Err error
}

func (e *DraftError) Error() string {
	return fmt.Sprintf("draft %s: %v", e.ID, e.Err)
}

func (e *DraftError) Unwrap() error { return e.Err }

func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

func IsDraftError(err error) bool {
	var de *DraftError
	return errors.As(err, &de)
}
