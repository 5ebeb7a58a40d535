package providers

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"github.com/imrishuroy/go-storefront-orderflow/internal/compose"
	"gopkg.in/gomail.v2"
)

// SMTP sends email through a plain SMTP relay.
type SMTP struct {
	From string
	send func(*gomail.Message) error
}

// NewSMTP returns an SMTP sender for host:port.
func NewSMTP(host string, port int, username, password, from string, insecure bool) *SMTP {
	d := gomail.NewDialer(host, port, username, password)
	if insecure {
		d.TLSConfig = &tls.Config{ServerName: host, InsecureSkipVerify: true} //nolint:gosec // opt-in via providers.insecure_skip_verify
	}
	return &SMTP{From: from, send: func(m *gomail.Message) error { return d.DialAndSend(m) }}
}

func (s *SMTP) message(msg compose.Email) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if len(msg.Attachment.Content) > 0 {
		content := msg.Attachment.Content
		m.Attach(msg.Attachment.Filename,
			gomail.SetHeader(map[string][]string{"Content-Type": {msg.Attachment.ContentType}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		)
	}
	return m
}

// SendEmail dials the relay and sends msg. gomail has no context support, so
// the send runs in its own goroutine and an expired ctx abandons it.
func (s *SMTP) SendEmail(ctx context.Context, msg compose.Email) error {
	m := s.message(msg)
	done := make(chan error, 1)
	go func() { done <- s.send(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp: %w", ctx.Err())
	}
}
