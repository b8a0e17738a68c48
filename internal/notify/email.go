package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"

	"github.com/Freeeeeet/booking_api/internal/model"
)

// SMTPSender отправляет письма через SMTP. Без логина работает без аутентификации (Mailpit и т.п.).
type SMTPSender struct {
	addr     string
	host     string
	from     string
	username string
	password string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host, port, from, username, password string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@booking.local"
	}
	return &SMTPSender{
		addr:     net.JoinHostPort(host, port),
		host:     host,
		from:     from,
		username: username,
		password: password,
		send:     smtp.SendMail,
	}
}

func (s *SMTPSender) Name() string {
	return "email"
}

func (s *SMTPSender) Send(ctx context.Context, recipient *model.User, msg *Message) error {
	if recipient.Email == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	body := buildMessage(s.from, recipient.Email, msg.Subject, msg.HTML)
	if err := s.send(s.addr, auth, s.from, []string{recipient.Email}, []byte(body)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) string {
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		mime.QEncoding.Encode("utf-8", subject),
		body,
	)
}
