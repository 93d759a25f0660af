// Package registry reads the static mapping of project IDs to display names.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"task-monitor/pkg/models"
)

// entry is the value stored under each project ID in projects.json
type entry struct {
	Name string `json:"name"`
}

// Registry is an immutable snapshot of the configured projects
type Registry struct {
	projects []models.Project
	names    map[string]string
}

// Load reads the registry file at path.
// The file maps project IDs to objects carrying at least a "name" field.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes registry content
func Parse(data []byte) (*Registry, error) {
	var raw map[string]entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing projects: %w", err)
	}

	r := &Registry{names: make(map[string]string, len(raw))}
	for id, e := range raw {
		r.projects = append(r.projects, models.Project{ID: id, Name: e.Name})
		r.names[id] = e.Name
	}
	sort.Slice(r.projects, func(i, j int) bool { return r.projects[i].ID < r.projects[j].ID })
	return r, nil
}

// Empty returns a registry without projects
func Empty() *Registry {
	return &Registry{names: map[string]string{}}
}

// Projects returns the projects sorted by ID
func (r *Registry) Projects() []models.Project {
	out := make([]models.Project, len(r.projects))
	copy(out, r.projects)
	return out
}

// IDs returns the project IDs sorted
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.projects))
	for i, p := range r.projects {
		ids[i] = p.ID
	}
	return ids
}

// Len is the number of registered projects
func (r *Registry) Len() int {
	return len(r.projects)
}

// Name returns the display name for id, falling back to the id itself
func (r *Registry) Name(id string) string {
	if name, ok := r.names[id]; ok && name != "" {
		return name
	}
	return id
}

// Enrich attaches display names to task counts
func (r *Registry) Enrich(counts []models.TaskCount) []models.ProjectTasks {
	out := make([]models.ProjectTasks, 0, len(counts))
	for _, c := range counts {
		out = append(out, models.ProjectTasks{ProjectID: c.ProjectID, Name: r.Name(c.ProjectID), Count: c.Count})
	}
	return out
}
