// Package mailer delivers transactional mail (password resets) over
// SMTP. Messages are composed as proper MIME with go-message.
package mailer

import (
	"bytes"
	"fmt"
	"io"
	"net/smtp"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/nhle/workboard/internal/config"
)

// Mailer sends transactional email. A Mailer built from an empty SMTP
// host is disabled: sends succeed as logged no-ops so local setups
// work without a mail server.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger

	// send is swappable in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a Mailer from SMTP settings.
func New(cfg config.SMTPConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, logger: logger, send: smtp.SendMail}
}

// Enabled reports whether an SMTP host is configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

// SendPasswordReset composes and delivers a password-reset message
// containing the reset token. The error return lets the caller
// refund the rate-limit charge on failure.
func (m *Mailer) SendPasswordReset(to, resetToken string) error {
	if !m.Enabled() {
		m.logger.Info("mail disabled, skipping password reset send",
			zap.String("to", to),
		)
		return nil
	}

	body := fmt.Sprintf(
		"A password reset was requested for your account.\r\n\r\n"+
			"Reset token: %s\r\n\r\n"+
			"If you did not request this, you can ignore this message.\r\n",
		resetToken,
	)

	msg, err := m.compose(to, "Reset your Workboard password", body)
	if err != nil {
		return fmt.Errorf("composing password reset mail: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("sending password reset to %s: %w", to, err)
	}
	return nil
}

// compose builds a single-part plain-text MIME message.
func (m *Mailer) compose(to, subject, body string) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: "Workboard", Address: m.cfg.From}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)

	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating mail writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return nil, fmt.Errorf("writing mail body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing mail: %w", err)
	}

	return buf.Bytes(), nil
}
