package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"replydesk/internal/model"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

type SMTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
	From     string // "Support <support@example.com>"
	StartTLS bool
}

// SMTPChannel submits composed replies to an SMTP relay.
type SMTPChannel struct {
	cfg  SMTPConfig
	from *mail.Address
	now  func() time.Time
	// tls overrides the STARTTLS client config; nil verifies against the
	// system roots for the relay host.
	tls *tls.Config
}

func NewSMTPChannel(cfg SMTPConfig) (*SMTPChannel, error) {
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse smtp from %q: %w", cfg.From, err)
	}
	return &SMTPChannel{cfg: cfg, from: from, now: time.Now}, nil
}

func (c *SMTPChannel) Deliver(ctx context.Context, m model.Message) (Result, error) {
	raw, err := Compose(c.from, m, c.now())
	if err != nil {
		return Result{}, failed(m.ID, err)
	}
	if err := c.submit(ctx, m.Sender, raw); err != nil {
		return Result{}, failed(m.ID, err)
	}
	detail, _ := json.Marshal(map[string]string{"to": m.Sender, "relay": c.cfg.Addr})
	return Result{Channel: "smtp", Detail: detail}, nil
}

func (c *SMTPChannel) submit(ctx context.Context, to string, raw []byte) error {
	client, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if c.cfg.Username != "" {
		if err := client.Auth(sasl.NewPlainClient("", c.cfg.Username, c.cfg.Password)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := client.Mail(c.from.Address, nil); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to, nil); err != nil {
		return fmt.Errorf("rcpt to %s: %w", to, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := bytes.NewReader(raw).WriteTo(w); err != nil {
		w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	return client.Quit()
}

// dial connects to the relay, honouring ctx for the TCP connect, and upgrades
// to TLS before anything else is said when StartTLS is set.
func (c *SMTPChannel) dial(ctx context.Context) (*smtp.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.Addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if !c.cfg.StartTLS {
		return smtp.NewClient(conn), nil
	}
	cfg := &tls.Config{}
	if c.tls != nil {
		cfg = c.tls.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName, _, _ = net.SplitHostPort(c.cfg.Addr)
	}
	client, err := smtp.NewClientStartTLS(conn, cfg)
	if err != nil {
		return nil, fmt.Errorf("starttls %s: %w", c.cfg.Addr, err)
	}
	return client, nil
}
