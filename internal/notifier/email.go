package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"task-monitor/internal/config"
	"task-monitor/pkg/models"
)

// EmailNotifier sends plain-text alerts over SMTP
type EmailNotifier struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       []string
}

// NewEmailNotifier creates a new SMTP email notifier
func NewEmailNotifier(cfg *config.Config) *EmailNotifier {
	smtpCfg := cfg.Notifiers.SMTP
	return &EmailNotifier{
		host:     smtpCfg.Host,
		port:     smtpCfg.Port,
		user:     smtpCfg.User,
		password: smtpCfg.Password,
		from:     smtpCfg.From,
		to:       smtpCfg.To,
	}
}

// Name identifies the notifier in logs
func (e *EmailNotifier) Name() string { return "smtp" }

// Notify sends the alert by email. net/smtp has no context support,
// so ctx is only checked before dialing.
func (e *EmailNotifier) Notify(ctx context.Context, alert models.Alert) error {
	if err := checkAlert(alert); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.sendEmail(alert.Subject, alert.Body)
}

// buildMessage formats the RFC 5322 message
func (e *EmailNotifier) buildMessage(subject, body string) []byte {
	msg := fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		strings.Join(e.to, ","), e.from, subject, strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(msg)
}

// sendEmail sends the email using SMTP
func (e *EmailNotifier) sendEmail(subject, body string) error {
	if len(e.to) == 0 {
		return fmt.Errorf("no SMTP recipients configured")
	}
	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	msg := e.buildMessage(subject, body)

	var auth smtp.Auth
	if e.user != "" && e.password != "" {
		auth = smtp.PlainAuth("", e.user, e.password, e.host)
	}

	var err error
	if e.port == 465 {
		// Implicit TLS; SendMail only handles STARTTLS
		err = e.sendWithTLS(addr, auth, e.from, e.to, msg)
	} else {
		err = smtp.SendMail(addr, auth, e.from, e.to, msg)
	}

	if err != nil {
		slog.Error("Failed to send email", "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("Email notification sent successfully", "recipients", e.to)
	return nil
}

// sendWithTLS sends email with TLS encryption
func (e *EmailNotifier) sendWithTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: e.host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return err
		}
	}
	if err = client.Mail(from); err != nil {
		return err
	}
	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return err
		}
	}

	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err = writer.Write(msg); err != nil {
		return err
	}
	if err = writer.Close(); err != nil {
		return err
	}
	return client.Quit()
}
