package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gpuoptimizer/revenue-core/pkg/config"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
)

// sendMailFunc matches net/smtp.SendMail; swapped out in tests.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends plain-text mail through a configured relay. When no
// password is configured it logs the message instead of dialing out,
// which keeps development environments quiet.
type SMTPSender struct {
	cfg      config.SMTPConfig
	logg     *logger.Logger
	sendMail sendMailFunc
}

// NewSMTPSender wires the sender against the given relay config.
func NewSMTPSender(cfg config.SMTPConfig, logg *logger.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, logg: logg, sendMail: smtp.SendMail}
}

// Send delivers one message. Unconfigured relays log and return nil.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if !s.cfg.Enabled() {
		if s.logg != nil {
			ctx = s.logg.WithFields(ctx, map[string]any{"to": to, "subject": subject})
			s.logg.Info(ctx, "smtp not configured, skipping email")
		}
		return nil
	}

	msg := buildMessage(s.cfg.SenderEmail, to, subject, body)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.SenderEmail, s.cfg.Password, s.cfg.Host)

	if err := s.sendMail(addr, auth, s.cfg.SenderEmail, []string{to}, msg); err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
