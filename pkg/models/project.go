package models

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// Project is an entry of the project registry
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaskCount is one record of the bulk remaining-tasks response
type TaskCount struct {
	ProjectID string `json:"projectId"`
	Count     int    `json:"count"`
}

// UnmarshalJSON accepts any JSON number for count. Fractions round up so a
// positive value stays positive; a missing or null count is zero.
func (c *TaskCount) UnmarshalJSON(data []byte) error {
	var raw struct {
		ProjectID string   `json:"projectId"`
		Count     *float64 `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ProjectID = raw.ProjectID
	c.Count = 0
	if raw.Count != nil {
		c.Count = int(math.Ceil(*raw.Count))
	}
	return nil
}

// ProjectTasks joins a task count with the registry display name
type ProjectTasks struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Count     int    `json:"count"`
}

// MarketplaceProject represents a project listed on the marketplace history page
type MarketplaceProject struct {
	ProjectName        string `json:"projectName"`
	ProjectDescription string `json:"projectDescription"`
	LatestActivity     string `json:"latestActivity"`
}

// Alert is a rendered notification ready to be delivered
type Alert struct {
	Subject string
	Body    string
}

// NotificationState maps a project ID to the last time a notification was sent for it.
type NotificationState map[string]time.Time

// Clone returns an independent copy of the state
func (s NotificationState) Clone() NotificationState {
	out := make(NotificationState, len(s))
	for id, t := range s {
		out[id] = t
	}
	return out
}

// IDs returns the tracked project IDs in sorted order
func (s NotificationState) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PositiveCounts keeps only the records with at least one remaining task, preserving order.
func PositiveCounts(counts []TaskCount) []TaskCount {
	var out []TaskCount
	for _, c := range counts {
		if c.Count > 0 {
			out = append(out, c)
		}
	}
	return out
}
