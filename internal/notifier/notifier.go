package notifier

import (
	"context"
	"errors"
	"log/slog"

	"task-monitor/internal/config"
	"task-monitor/pkg/models"
)

// Notifier interface defines the contract for notification services
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert models.Alert) error
}

// FromConfig builds every notifier that has enough configuration to run
func FromConfig(cfg *config.Config) []Notifier {
	var notifiers []Notifier
	if cfg.Notifiers.SendGrid.APIKey != "" {
		notifiers = append(notifiers, NewSendGridNotifier(cfg))
	}
	if cfg.Notifiers.SMTP.Host != "" {
		notifiers = append(notifiers, NewEmailNotifier(cfg))
	}
	if cfg.Notifiers.Teams.WebhookURL != "" {
		notifiers = append(notifiers, NewTeamsNotifier(cfg))
	}
	return notifiers
}

// Dispatch delivers alert through every notifier and returns how many succeeded.
// Failures are logged and never stop the remaining notifiers.
func Dispatch(ctx context.Context, notifiers []Notifier, alert models.Alert) int {
	sent := 0
	for _, n := range notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			slog.Error("Error notifying", "notifier", n.Name(), "error", err)
			continue
		}
		sent++
	}
	return sent
}

func checkAlert(alert models.Alert) error {
	if alert.Subject == "" {
		return errors.New("alert subject is empty")
	}
	if alert.Body == "" {
		return errors.New("alert body is empty")
	}
	return nil
}
