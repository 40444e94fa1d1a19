package gmail

import (
	"context"
	"encoding/base64"
	"fmt"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// SendRaw sends an RFC 5322 message. A non-empty threadID files the reply in
// the customer's original thread.
func SendRaw(ctx context.Context, svc *gmailv1.Service, raw []byte, threadID string) (*gmailv1.Message, error) {
	msg := &gmailv1.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: threadID,
	}
	sent, err := svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return sent, nil
}

// MarkProcessed removes the UNREAD label so intake does not pick the
// messages up again.
func MarkProcessed(ctx context.Context, svc *gmailv1.Service, messageIDs []string) error {
	req := &gmailv1.ModifyMessageRequest{RemoveLabelIds: []string{"UNREAD"}}
	for _, id := range messageIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := svc.Users.Messages.Modify("me", id, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("mark processed %s: %w", id, err)
		}
	}
	return nil
}

// ThreadOf returns the Gmail thread id of a message.
func ThreadOf(ctx context.Context, svc *gmailv1.Service, messageID string) (string, error) {
	msg, err := svc.Users.Messages.Get("me", messageID).Format("minimal").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get message %s: %w", messageID, err)
	}
	return msg.ThreadId, nil
}
