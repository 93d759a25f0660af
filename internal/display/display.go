// Package display forwards remaining-task payloads to the status display web app.
package display

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const updatePath = "/update_counts"

// Client pushes task counts to the status display
type Client struct {
	URL    string
	Client *http.Client
}

// NewClient creates a display client for the web app at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		URL:    strings.TrimRight(baseURL, "/") + updatePath,
		Client: &http.Client{Timeout: timeout},
	}
}

// Push posts the raw tasks payload. A non-200 answer is an error.
func (c *Client) Push(ctx context.Context, payload json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating display request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update web interface: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to update web interface: status %d", resp.StatusCode)
	}
	return nil
}
