package gmail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// parseRaw reads an RFC 5322 message into an InboundMessage. The body is the
// first text/plain part, else the first text/html part with tags stripped.
func parseRaw(raw []byte) (InboundMessage, error) {
	var in InboundMessage
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return in, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	in.From = mr.Header.Get("From")
	in.Subject, _ = mr.Header.Subject()
	in.Date, _ = mr.Header.Date()
	in.MessageID, _ = mr.Header.MessageID()

	var plain, html string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return in, fmt.Errorf("read part: %w", err)
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		b, err := io.ReadAll(io.LimitReader(p.Body, 1<<20))
		if err != nil {
			continue
		}
		switch strings.ToLower(ct) {
		case "text/plain", "":
			if plain == "" {
				plain = string(b)
			}
		case "text/html":
			if html == "" {
				html = string(b)
			}
		}
	}

	switch {
	case strings.TrimSpace(plain) != "":
		in.Body = strings.TrimSpace(plain)
	case html != "":
		in.Body = stripHTMLTags(html)
	}
	return in, nil
}

// stripHTMLTags turns an HTML body into readable text.
func stripHTMLTags(html string) string {
	for _, tag := range []string{"<br>", "<br/>", "<br />", "</p>", "</div>", "</tr>", "</li>", "</h1>", "</h2>", "</h3>"} {
		html = strings.ReplaceAll(html, tag, "\n")
		html = strings.ReplaceAll(html, strings.ToUpper(tag), "\n")
	}

	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	text := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	).Replace(b.String())
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}

// decodeRaw decodes Gmail's base64url "raw" field, padded or not.
func decodeRaw(data string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}
