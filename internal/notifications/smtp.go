package notifications

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport renders the embedded templates and sends multipart mail.
type SMTPTransport struct {
	from     string
	renderer *Renderer
	sender   mailSender
}

func NewSMTPTransport(cfg config.NotificationsConfig, renderer *Renderer) (*SMTPTransport, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("smtp host required")
	}
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	dialer.SSL = cfg.SMTPSSL
	return newSMTPTransport(cfg.From, renderer, dialer)
}

func newSMTPTransport(from string, renderer *Renderer, sender mailSender) (*SMTPTransport, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer required")
	}
	return &SMTPTransport{from: from, renderer: renderer, sender: sender}, nil
}

func (t *SMTPTransport) Name() string { return config.NotificationTransportSMTP }

func (t *SMTPTransport) Deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	html, plain, err := t.renderer.Render(msg)
	if err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", plain)
	m.AddAlternative("text/html", html)
	if err := t.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
