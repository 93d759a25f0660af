package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"task-monitor/internal/config"
	"task-monitor/pkg/models"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridEndpoint = "/v3/mail/send"

// SendGridNotifier sends plain-text email through the SendGrid API
type SendGridNotifier struct {
	apiKey string
	host   string
	from   string
	to     string
}

// NewSendGridNotifier creates a new SendGrid notifier
func NewSendGridNotifier(cfg *config.Config) *SendGridNotifier {
	return &SendGridNotifier{
		apiKey: cfg.Notifiers.SendGrid.APIKey,
		host:   cfg.Notifiers.SendGrid.Host,
		from:   cfg.Notifiers.SendGrid.From,
		to:     cfg.Notifiers.SendGrid.To,
	}
}

// Name identifies the notifier in logs
func (s *SendGridNotifier) Name() string { return "sendgrid" }

// Notify sends the alert as one email to the configured recipient
func (s *SendGridNotifier) Notify(ctx context.Context, alert models.Alert) error {
	if err := checkAlert(alert); err != nil {
		return err
	}

	message := mail.NewV3MailInit(
		mail.NewEmail("", s.from),
		alert.Subject,
		mail.NewEmail("", s.to),
		mail.NewContent("text/plain", alert.Body),
	)

	request := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	request.Method = rest.Post
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		slog.Error("Failed to send email", "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		slog.Error("Failed to send email", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("sendgrid rejected email: status %d: %s", response.StatusCode, response.Body)
	}

	slog.Info("Email sent successfully!", "status", response.StatusCode, "recipient", s.to)
	return nil
}
