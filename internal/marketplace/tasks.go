package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"task-monitor/pkg/models"
)

// TasksResult is the outcome of a remaining-tasks query
type TasksResult struct {
	StatusCode int
	// Payload is the decoded JSON body, forwarded as is to the status display.
	Payload json.RawMessage
	Counts  []models.TaskCount
}

// RemainingTasks asks for the remaining task count of every project in one batched request
func (c *Client) RemainingTasks(ctx context.Context, s *Session, projectIDs []string) (*TasksResult, error) {
	if projectIDs == nil {
		projectIDs = []string{}
	}
	payload := map[string][]string{"projectIds": projectIDs}

	tasksURL := c.BaseURL + remainingTasksPath
	resp, err := s.do(ctx, "remaining tasks", http.MethodPost, tasksURL, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{Op: "remaining tasks", URL: tasksURL, StatusCode: resp.StatusCode, Body: preview(resp.Body, 200)}
	}

	slog.Debug("Raw response content", "content", preview(resp.Body, 200))
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, ErrEmptyResponse
	}

	var counts []models.TaskCount
	if err := json.Unmarshal(resp.Body, &counts); err != nil {
		return nil, resp.decodeError(err)
	}
	slog.Debug("Successfully parsed JSON response", "records", len(counts))

	return &TasksResult{StatusCode: resp.StatusCode, Payload: json.RawMessage(resp.Body), Counts: counts}, nil
}
