package delivery

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"replydesk/internal/model"
	"replydesk/internal/util"

	"github.com/emersion/go-message/mail"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Compose renders m's reply as a multipart/alternative email from from to
// the customer. Drafts are markdown-ish, so the HTML part is rendered with
// goldmark and the plain part is the draft as written.
func Compose(from *mail.Address, m model.Message, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{{Name: m.SenderName, Address: m.Sender}})
	h.SetSubject(replySubject(m.Subject))
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}

	var html bytes.Buffer
	if err := markdown.Convert([]byte(m.Reply), &html); err != nil {
		return nil, fmt.Errorf("render reply: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	if err := writePart(tw, "text/plain", m.Reply); err != nil {
		return nil, err
	}
	if err := writePart(tw, "text/html", html.String()); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")
	w, err := tw.CreatePart(ph)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func replySubject(subject string) string {
	subject = util.SubjectOrDefault(subject)
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
