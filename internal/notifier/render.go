package notifier

import (
	"strings"
	"text/template"

	"task-monitor/pkg/models"
)

const (
	// TasksSubject is the subject of remaining-task alerts
	TasksSubject = "Projects With Remaining Tasks Available!"
	// MarketplaceSubject is the subject of monitored-project alerts
	MarketplaceSubject = "Monitored Projects Available!"
)

var tasksTemplate = template.Must(template.New("tasks").Parse(
	"Found {{len .}} projects with tasks:\n\n" +
		"{{range $i, $p := .}}{{if $i}}\n{{end}}" +
		"Project: {{$p.Name}}\n" +
		"Project ID: {{$p.ProjectID}}\n" +
		"Remaining Tasks: {{$p.Count}}\n" +
		"{{end}}"))

var marketplaceTemplate = template.Must(template.New("marketplace").Parse(
	"Found {{len .}} monitored projects:\n\n" +
		"{{range $i, $p := .}}{{if $i}}\n{{end}}" +
		"Project: {{$p.ProjectName}}\n" +
		"Description: {{$p.ProjectDescription}}\n" +
		"Latest Activity: {{$p.LatestActivity}}\n" +
		"{{end}}"))

// TasksAlert renders the alert for projects with remaining tasks
func TasksAlert(tasks []models.ProjectTasks) (models.Alert, error) {
	body, err := render(tasksTemplate, tasks)
	if err != nil {
		return models.Alert{}, err
	}
	return models.Alert{Subject: TasksSubject, Body: body}, nil
}

// MarketplaceAlert renders the alert for monitored projects found on the marketplace
func MarketplaceAlert(projects []models.MarketplaceProject) (models.Alert, error) {
	body, err := render(marketplaceTemplate, projects)
	if err != nil {
		return models.Alert{}, err
	}
	return models.Alert{Subject: MarketplaceSubject, Body: body}, nil
}

func render(t *template.Template, data any) (string, error) {
	var body strings.Builder
	if err := t.Execute(&body, data); err != nil {
		return "", err
	}
	return body.String(), nil
}
