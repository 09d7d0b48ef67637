package service

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/mahamart/commerce-backend/internal/config"
	"github.com/mahamart/commerce-backend/internal/observability"
)

type MailMessage struct {
	To      string
	Subject string
	Body    string
}

type MailSender interface {
	Send(ctx context.Context, msg MailMessage) error
}

// SendMailFunc matches smtp.SendMail so tests can capture outbound mail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPMailSender struct {
	host     string
	port     int
	username string
	password string
	send     SendMailFunc
}

func NewSMTPMailSender(cfg *config.Config) *SMTPMailSender {
	return &SMTPMailSender{
		host:     cfg.EmailSMTPHost,
		port:     cfg.EmailSMTPPort,
		username: cfg.EmailUser,
		password: cfg.EmailPass,
		send:     smtp.SendMail,
	}
}

func (s *SMTPMailSender) WithSendFunc(fn SendMailFunc) *SMTPMailSender {
	cp := *s
	cp.send = fn
	return &cp
}

func (s *SMTPMailSender) Send(ctx context.Context, msg MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	err := s.send(addr, auth, s.username, []string{msg.To}, buildMIMEMessage(s.username, msg, time.Now()))
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	observability.RecordMailDelivery(ctx, "smtp", outcome)
	if err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMIMEMessage(from string, msg MailMessage, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + sanitizeHeader(from) + "\r\n")
	b.WriteString("To: " + sanitizeHeader(msg.To) + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(msg.Subject) + "\r\n")
	b.WriteString("Date: " + now.UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

// LogMailSender writes messages to the log instead of delivering them. It is
// selected with EMAIL_DRIVER=log for local development.
type LogMailSender struct {
	logger *slog.Logger
}

func NewLogMailSender(logger *slog.Logger) *LogMailSender {
	return &LogMailSender{logger: logger}
}

func (s *LogMailSender) Send(ctx context.Context, msg MailMessage) error {
	s.logger.InfoContext(ctx, "mail delivery skipped",
		"to", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.Body),
	)
	observability.RecordMailDelivery(ctx, "log", "success")
	return nil
}

func NewMailSender(cfg *config.Config, logger *slog.Logger) MailSender {
	if cfg.EmailDriver == "log" {
		return NewLogMailSender(logger)
	}
	return NewSMTPMailSender(cfg)
}
