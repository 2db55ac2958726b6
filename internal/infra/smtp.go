package infra

import (
	"errors"
	"fmt"
	"net/smtp"

	"retailpos/internal/config"

	"github.com/jordan-wright/email"
)

var ErrMailerDisabled = errors.New("mailer: SMTP_HOST not configured")

// Mailer sends receipt emails with the PDF attached.
type Mailer struct {
	host     string
	user     string
	password string
	from     string
	addr     string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     fmt.Sprintf("%s <%s>", cfg.BusinessName, cfg.SMTPUser),
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

func (m *Mailer) Enabled() bool { return m != nil && m.host != "" }

// SendReceipt mails one receipt. pdfPath may be empty for a text-only message.
func (m *Mailer) SendReceipt(to, subject, body, pdfPath string) error {
	if !m.Enabled() {
		return ErrMailerDisabled
	}
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	if pdfPath != "" {
		if _, err := e.AttachFile(pdfPath); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return e.Send(m.addr, auth)
}
