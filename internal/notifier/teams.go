package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"task-monitor/internal/config"
	"task-monitor/pkg/models"
)

// TeamsNotifier implements Microsoft Teams notifications
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(cfg *config.Config) *TeamsNotifier {
	return &TeamsNotifier{
		webhookURL: cfg.Notifiers.Teams.WebhookURL,
		client:     &http.Client{Timeout: cfg.HTTPTimeout()},
	}
}

// Name identifies the notifier in logs
func (t *TeamsNotifier) Name() string { return "teams" }

// Notify posts the alert as a message card
func (t *TeamsNotifier) Notify(ctx context.Context, alert models.Alert) error {
	if err := checkAlert(alert); err != nil {
		return err
	}

	payload, err := t.generateTeamsPayload(alert)
	if err != nil {
		return fmt.Errorf("error generating Teams payload: %w", err)
	}
	return t.sendTeamsNotification(ctx, payload)
}

// generateTeamsPayload creates the Teams message payload
func (t *TeamsNotifier) generateTeamsPayload(alert models.Alert) ([]byte, error) {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": "2E8B57",
		"summary":    alert.Subject,
		"sections": []map[string]interface{}{
			{
				"activityTitle": alert.Subject,
				// Teams cards collapse single newlines
				"text": strings.ReplaceAll(alert.Body, "\n", "\n\n"),
			},
		},
	}
	return json.Marshal(payload)
}

// sendTeamsNotification sends the notification to Microsoft Teams
func (t *TeamsNotifier) sendTeamsNotification(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating Teams request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := t.client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		slog.Error("Failed to send Teams notification", "error", err)
		return fmt.Errorf("failed to send Teams notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("Teams notification failed", "status", resp.StatusCode)
		return fmt.Errorf("Teams notification failed with status: %d", resp.StatusCode)
	}

	slog.Info("Teams notification sent successfully")
	return nil
}
