// Package monitor runs one poll cycle: login, query remaining tasks, push the
// counts to the status display, then notify when the gate allows it.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"task-monitor/internal/gate"
	"task-monitor/internal/marketplace"
	"task-monitor/internal/notifier"
	"task-monitor/internal/registry"
	"task-monitor/pkg/models"

	"github.com/google/uuid"
)

// ErrNotDelivered is returned when every notifier failed
var ErrNotDelivered = errors.New("no notifier delivered the alert")

// TaskSource is the marketplace API used by a cycle
type TaskSource interface {
	Login(ctx context.Context) (*marketplace.Session, error)
	RemainingTasks(ctx context.Context, s *marketplace.Session, projectIDs []string) (*marketplace.TasksResult, error)
	ListMarketplace(ctx context.Context, s *marketplace.Session, q marketplace.ListingQuery) ([]models.MarketplaceProject, error)
}

// Pusher forwards raw task payloads to the status display
type Pusher interface {
	Push(ctx context.Context, payload json.RawMessage) error
}

// Options configures a Monitor
type Options struct {
	ProjectsFile      string
	Policy            gate.Policy
	Notifiers         []notifier.Notifier
	Display           Pusher
	WatchListing      bool
	MonitoredProjects []string
	Now               func() time.Time
}

// Snapshot describes the outcome of the latest cycle
type Snapshot struct {
	CycleID           string                `json:"cycle_id"`
	LastCycleAt       time.Time             `json:"last_cycle_at"`
	LastError         string                `json:"last_error,omitempty"`
	Cycles            int                   `json:"cycles"`
	ProjectsWithTasks []models.ProjectTasks `json:"projects_with_tasks"`
	LastNotified      map[string]time.Time  `json:"last_notified"`
}

// Monitor owns the notification state across cycles
type Monitor struct {
	source TaskSource
	opts   Options

	mu       sync.Mutex
	state    models.NotificationState
	snapshot Snapshot
}

// New creates a Monitor
func New(source TaskSource, opts Options) *Monitor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{
		source: source,
		opts:   opts,
		state:  models.NotificationState{},
	}
}

// State returns a copy of the last-sent map
func (m *Monitor) State() models.NotificationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Snapshot returns the outcome of the latest cycle
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.snapshot
	s.ProjectsWithTasks = append([]models.ProjectTasks(nil), s.ProjectsWithTasks...)
	s.LastNotified = m.state.Clone()
	return s
}

// RunCycle performs one full poll cycle. Errors are logged with context
// before being returned; they never affect the next cycle.
func (m *Monitor) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	log := slog.With("cycle_id", cycleID)
	started := m.opts.Now()

	tasks, err := m.runCycle(ctx, log)

	m.mu.Lock()
	m.snapshot.CycleID = cycleID
	m.snapshot.LastCycleAt = started
	m.snapshot.Cycles++
	m.snapshot.LastError = ""
	if err != nil {
		m.snapshot.LastError = err.Error()
	}
	if tasks != nil {
		m.snapshot.ProjectsWithTasks = tasks
	}
	m.mu.Unlock()

	return err
}

func (m *Monitor) runCycle(ctx context.Context, log *slog.Logger) ([]models.ProjectTasks, error) {
	reg, loadErr := registry.Load(m.opts.ProjectsFile)
	if loadErr != nil {
		log.Error("Error loading projects", "file", m.opts.ProjectsFile, "error", loadErr)
		reg = registry.Empty()
	}
	if reg.Len() == 0 && !m.opts.WatchListing {
		if loadErr == nil {
			log.Warn("No projects configured, skipping cycle", "file", m.opts.ProjectsFile)
		}
		return nil, loadErr
	}

	session, err := m.source.Login(ctx)
	if err != nil {
		logFailure(log, err)
		return nil, err
	}

	if m.opts.WatchListing {
		m.checkListing(ctx, log, session)
	}
	if reg.Len() == 0 {
		return nil, loadErr
	}
	return m.checkRemainingTasks(ctx, log, session, reg)
}

func (m *Monitor) checkRemainingTasks(ctx context.Context, log *slog.Logger, session *marketplace.Session, reg *registry.Registry) ([]models.ProjectTasks, error) {
	result, err := m.source.RemainingTasks(ctx, session, reg.IDs())
	if err != nil {
		logFailure(log, err)
		return nil, err
	}

	m.pushDisplay(ctx, log, result.Payload)

	positive := models.PositiveCounts(result.Counts)
	tasks := reg.Enrich(positive)
	if len(tasks) == 0 {
		log.Info("No projects with remaining tasks.", "projects_checked", reg.Len())
		return tasks, nil
	}

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ProjectID
	}

	now := m.opts.Now()
	decision := m.opts.Policy.Evaluate(now, m.State(), ids)
	if !decision.Allowed {
		if decision.Reason == gate.ReasonCooldown {
			log.Info("Email cooldown active", "until", decision.CooldownUntil)
		}
		log.Info("Found projects with tasks but outside email notification hours",
			"projects_with_tasks", len(tasks), "reason", decision.Reason)
		return tasks, nil
	}

	eligible := filterTasks(tasks, decision.Eligible)
	alert, err := notifier.TasksAlert(eligible)
	if err != nil {
		return tasks, fmt.Errorf("error rendering alert: %w", err)
	}
	if len(m.opts.Notifiers) == 0 {
		log.Warn("No notifiers configured, notification skipped", "projects_with_tasks", len(eligible))
		return tasks, nil
	}

	if sent := notifier.Dispatch(ctx, m.opts.Notifiers, alert); sent == 0 {
		return tasks, ErrNotDelivered
	}

	m.mu.Lock()
	m.state = gate.Record(m.state, now, decision.Eligible)
	m.mu.Unlock()

	log.Info(fmt.Sprintf("Found %d projects with tasks and sent email notification!", len(eligible)))
	return tasks, nil
}

// checkListing looks for monitored projects on the marketplace listing.
// It shares the notification window but not the cooldown map.
func (m *Monitor) checkListing(ctx context.Context, log *slog.Logger, session *marketplace.Session) {
	projects, err := m.source.ListMarketplace(ctx, session, marketplace.DefaultListingQuery)
	if err != nil {
		logFailure(log, err)
		return
	}

	found := marketplace.MatchMonitored(projects, m.opts.MonitoredProjects)
	if len(found) == 0 {
		log.Info("No monitored projects available.")
		return
	}
	if ok, reason := m.opts.Policy.InWindow(m.opts.Now()); !ok {
		log.Info("Found monitored projects but outside email notification hours", "found", len(found), "reason", reason)
		return
	}

	alert, err := notifier.MarketplaceAlert(found)
	if err != nil {
		log.Error("Error rendering marketplace alert", "error", err)
		return
	}
	if sent := notifier.Dispatch(ctx, m.opts.Notifiers, alert); sent > 0 {
		log.Info(fmt.Sprintf("Found %d monitored projects and sent email notification!", len(found)))
	}
}

func (m *Monitor) pushDisplay(ctx context.Context, log *slog.Logger, payload json.RawMessage) {
	if m.opts.Display == nil {
		log.Debug("WEB_APP_URL not set, skipping web interface update")
		return
	}
	if err := m.opts.Display.Push(ctx, payload); err != nil {
		log.Warn("Failed to update web interface", "error", err)
		return
	}
	log.Info("Successfully updated web interface")
}

func logFailure(log *slog.Logger, err error) {
	var authErr *marketplace.AuthError
	var decErr *marketplace.DecodeError
	var reqErr *marketplace.RequestError

	switch {
	case errors.As(err, &authErr):
		log.Error("Login failed. Check your credentials.", "status", authErr.StatusCode, "response", authErr.Body)
	case errors.Is(err, marketplace.ErrEmptyResponse):
		log.Warn("Empty response received")
	case errors.As(err, &decErr):
		log.Error("Failed to parse JSON response",
			"error", decErr.Err,
			"status", decErr.StatusCode,
			"headers", decErr.Header,
			"raw_prefix_hex", decErr.RawPrefix(200))
	case errors.As(err, &reqErr):
		log.Error("Request failed", "op", reqErr.Op, "status", reqErr.StatusCode, "error", err)
	case errors.Is(err, context.Canceled):
		log.Info("Cycle cancelled")
	default:
		log.Error("Cycle step failed", "error", err)
	}
}

func filterTasks(tasks []models.ProjectTasks, ids []string) []models.ProjectTasks {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	var out []models.ProjectTasks
	for _, t := range tasks {
		if _, ok := keep[t.ProjectID]; ok {
			out = append(out, t)
		}
	}
	return out
}
