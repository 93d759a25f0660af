// Package gate decides whether a task notification may be sent at a given moment.
//
// The decision depends on the weekday, the time of day and a last-sent map.
// The map is never mutated here: Evaluate reads a state and Record returns a
// new one, so callers own the state and tests only need to inject "now".
package gate

import (
	"fmt"
	"time"

	"task-monitor/internal/config"
	"task-monitor/pkg/models"
)

// Reason explains a decision
type Reason string

const (
	ReasonAllowed       Reason = "allowed"
	ReasonWeekend       Reason = "weekend"
	ReasonWorkHours     Reason = "work_hours"
	ReasonCooldown      Reason = "cooldown"
	ReasonOutsideWindow Reason = "outside_window"
)

// Scope selects how the cooldown is applied
type Scope string

const (
	// ScopeGlobal suppresses every project while any tracked project is cooling down.
	ScopeGlobal Scope = config.CooldownScopeGlobal
	// ScopeProject only suppresses the projects that are cooling down themselves.
	ScopeProject Scope = config.CooldownScopeProject
)

// Policy holds the notification window and cooldown settings.
// Clock values are offsets from local midnight.
type Policy struct {
	WorkStart time.Duration
	WorkEnd   time.Duration
	NightEnd  time.Duration
	Cooldown  time.Duration
	Scope     Scope
	Location  *time.Location
}

// Decision is the outcome of Evaluate
type Decision struct {
	Allowed bool
	Reason  Reason
	// Eligible lists the project IDs that may be notified and recorded.
	Eligible []string
	// CooldownUntil is set when the decision was denied by the cooldown.
	CooldownUntil time.Time
}

// NewPolicy builds a Policy from configuration
func NewPolicy(cfg *config.Config) (Policy, error) {
	workStart, err := config.ParseClock(cfg.Notification.WorkHoursStart)
	if err != nil {
		return Policy{}, err
	}
	workEnd, err := config.ParseClock(cfg.Notification.WorkHoursEnd)
	if err != nil {
		return Policy{}, err
	}
	nightEnd, err := config.ParseClock(cfg.Notification.NightHoursEnd)
	if err != nil {
		return Policy{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return Policy{}, err
	}

	scope := Scope(cfg.Notification.CooldownScope)
	if scope != ScopeGlobal && scope != ScopeProject {
		return Policy{}, fmt.Errorf("unknown cooldown scope %q", scope)
	}

	return Policy{
		WorkStart: workStart,
		WorkEnd:   workEnd,
		NightEnd:  nightEnd,
		Cooldown:  cfg.Cooldown(),
		Scope:     scope,
		Location:  loc,
	}, nil
}

// InWindow reports whether now falls in the allowed notification band,
// ignoring the cooldown.
func (p Policy) InWindow(now time.Time) (bool, Reason) {
	local := now.In(p.location())

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false, ReasonWeekend
	}

	tod := timeOfDay(local)
	if p.WorkStart <= tod && tod <= p.WorkEnd {
		return false, ReasonWorkHours
	}
	if p.WorkEnd <= tod && tod <= p.NightEnd {
		return true, ReasonAllowed
	}
	return false, ReasonOutsideWindow
}

// Evaluate decides whether the projects in projectIDs may be notified at now
func (p Policy) Evaluate(now time.Time, state models.NotificationState, projectIDs []string) Decision {
	if ok, reason := p.InWindow(now); !ok {
		return Decision{Reason: reason}
	}

	if p.Scope == ScopeProject {
		return p.evaluatePerProject(now, state, projectIDs)
	}

	// Any tracked project inside its cooldown suppresses all of them.
	var until time.Time
	for _, last := range state {
		if now.Sub(last) < p.Cooldown {
			if expiry := last.Add(p.Cooldown); expiry.After(until) {
				until = expiry
			}
		}
	}
	if !until.IsZero() {
		return Decision{Reason: ReasonCooldown, CooldownUntil: until}
	}

	return Decision{Allowed: true, Reason: ReasonAllowed, Eligible: append([]string(nil), projectIDs...)}
}

func (p Policy) evaluatePerProject(now time.Time, state models.NotificationState, projectIDs []string) Decision {
	var eligible []string
	var until time.Time
	for _, id := range projectIDs {
		last, ok := state[id]
		if !ok || now.Sub(last) >= p.Cooldown {
			eligible = append(eligible, id)
			continue
		}
		if expiry := last.Add(p.Cooldown); until.IsZero() || expiry.Before(until) {
			until = expiry
		}
	}

	if len(eligible) == 0 && len(projectIDs) > 0 {
		return Decision{Reason: ReasonCooldown, CooldownUntil: until}
	}
	return Decision{Allowed: true, Reason: ReasonAllowed, Eligible: eligible}
}

// Record returns a copy of state with now stored against every project in projectIDs
func Record(state models.NotificationState, now time.Time, projectIDs []string) models.NotificationState {
	next := state.Clone()
	for _, id := range projectIDs {
		next[id] = now
	}
	return next
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}
