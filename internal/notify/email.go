package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"housekeeper/internal/config"
	"housekeeper/internal/models"
)

// smtpSendFunc matches smtp.SendMail, swappable in tests.
type smtpSendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender delivers team events over SMTP. The channel target is the
// recipient address.
type EmailSender struct {
	cfg  config.EmailConfig
	send smtpSendFunc
}

func NewEmailSender(cfg config.EmailConfig) *EmailSender {
	return &EmailSender{cfg: cfg, send: smtp.SendMail}
}

func (s *EmailSender) Type() string {
	return models.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, target string, event models.TeamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	subject := "Cleaning schedule update"
	if event.Type == models.TeamEventTest {
		subject = "Notification channel test"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", target)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(FormatEvent(event))

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, []string{target}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
