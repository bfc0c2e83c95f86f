// Package mail renders and delivers the transactional mails queued by the
// api-server.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"mime"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strings"
	"text/template"
	"time"
)

const TemplateCancellation = "cancellation"

// Message is one queued mail. The body is rendered from Template and Context
// at delivery time.
type Message struct {
	ToName   string         `json:"to_name"`
	ToEmail  string         `json:"to_email"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Context  map[string]any `json:"context"`
}

//go:embed templates/*.tmpl
var templateFiles embed.FS

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	t, err := template.New("mail").Option("missingkey=error").ParseFS(templateFiles, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Renderer{tmpl: t}, nil
}

// Render executes the named template (file name without extension).
func (r *Renderer) Render(m Message) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, m.Template+".tmpl", m.Context); err != nil {
		return "", fmt.Errorf("render %s: %w", m.Template, err)
	}
	return buf.String(), nil
}

// Build assembles the RFC 5322 message sent over the wire.
func Build(from string, m Message, body string, now time.Time) []byte {
	to := (&netmail.Address{Name: m.ToName, Address: m.ToEmail}).String()

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, m Message, body string) error
}

type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPSender uses PLAIN auth when username is set.
func NewSMTPSender(addr, username, password, from string) *SMTPSender {
	s := &SMTPSender{addr: addr, from: from}
	if username != "" {
		host, _, _ := net.SplitHostPort(addr)
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, m Message, body string) error {
	fromAddr, err := netmail.ParseAddress(s.from)
	if err != nil {
		return fmt.Errorf("parse MAIL_FROM: %w", err)
	}

	msg := Build(s.from, m, body, time.Now())

	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(s.addr, s.auth, fromAddr.Address, []string{m.ToEmail}, msg)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
