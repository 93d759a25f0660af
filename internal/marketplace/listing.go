package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"task-monitor/pkg/models"
)

// ListingQuery selects a page of the marketplace history
type ListingQuery struct {
	Page     int
	PageSize int
	Filter   string
}

// DefaultListingQuery is the first page of available projects
var DefaultListingQuery = ListingQuery{Page: 0, PageSize: 10, Filter: "available"}

type listingResponse struct {
	Results []models.MarketplaceProject `json:"results"`
}

// ListMarketplace fetches one page of the marketplace project listing
func (c *Client) ListMarketplace(ctx context.Context, s *Session, q ListingQuery) ([]models.MarketplaceProject, error) {
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(q.PageSize))
	params.Set("page", strconv.Itoa(q.Page))
	if q.Filter != "" {
		params.Set("filter", q.Filter)
	}
	listURL := c.BaseURL + historyPath + "?" + params.Encode()

	resp, err := s.do(ctx, "marketplace", http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{Op: "marketplace", URL: listURL, StatusCode: resp.StatusCode, Body: preview(resp.Body, 200)}
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, ErrEmptyResponse
	}

	var listing listingResponse
	if err := json.Unmarshal(resp.Body, &listing); err != nil {
		return nil, resp.decodeError(err)
	}
	return listing.Results, nil
}

// MatchMonitored keeps the listed projects whose name is in names
func MatchMonitored(projects []models.MarketplaceProject, names []string) []models.MarketplaceProject {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	var found []models.MarketplaceProject
	for _, p := range projects {
		if _, ok := wanted[p.ProjectName]; ok {
			found = append(found, p)
		}
	}
	return found
}
