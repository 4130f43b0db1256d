package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StateStale    = "stale"

	OverallIdle    = "idle"
	OverallUnknown = "unknown"
)

// Reporter is what long-running components (api, watcher, scheduler, model
// server) use to publish their state.
type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	LastBeatAtUnix int64  `json:"last_beat_at_unix,omitempty"`
	UpdatedAtUnix  int64  `json:"updated_at_unix"`
}

type Snapshot struct {
	GeneratedAtUnix int64             `json:"generated_at_unix"`
	Overall         string            `json:"overall"`
	Components      []ComponentStatus `json:"components"`
}

type entry struct {
	state    string
	message  string
	err      string
	lastBeat time.Time
	updated  time.Time
}

type Registry struct {
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{
		now:     func() time.Time { return time.Now().UTC() },
		entries: map[string]entry{},
	}
}

func (r *Registry) Starting(component, message string) {
	r.update(component, StateStarting, message, nil, false)
}

func (r *Registry) Beat(component, message string) {
	r.update(component, StateHealthy, message, nil, true)
}

func (r *Registry) Degrade(component, message string, err error) {
	r.update(component, StateDegraded, message, err, false)
}

func (r *Registry) Disabled(component, message string) {
	r.update(component, StateDisabled, message, nil, false)
}

func (r *Registry) Stopped(component, message string) {
	r.update(component, StateStopped, message, nil, false)
}

func (r *Registry) update(component, state, message string, err error, beat bool) {
	name := strings.ToLower(strings.TrimSpace(component))
	if r == nil || name == "" {
		return
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.entries[name]
	current.state = state
	current.message = strings.TrimSpace(message)
	current.err = ""
	if err != nil {
		current.err = strings.TrimSpace(err.Error())
	}
	current.updated = now
	if beat || current.lastBeat.IsZero() {
		current.lastBeat = now
	}
	r.entries[name] = current
}

// Snapshot reports every component sorted by name. Healthy or starting
// components that have not beaten within staleAfter are reported stale;
// a zero staleAfter disables that check.
func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	components := make([]ComponentStatus, 0, len(r.entries))
	for name, current := range r.entries {
		state := current.state
		if staleAfter > 0 && (state == StateHealthy || state == StateStarting) && now.Sub(current.lastBeat) > staleAfter {
			state = StateStale
		}
		components = append(components, ComponentStatus{
			Name:           name,
			State:          state,
			Message:        current.message,
			Error:          current.err,
			LastBeatAtUnix: current.lastBeat.Unix(),
			UpdatedAtUnix:  current.updated.Unix(),
		})
	}
	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })
	return Snapshot{
		GeneratedAtUnix: now.Unix(),
		Overall:         overall(components),
		Components:      components,
	}
}

func IsDegraded(state string) bool {
	return state == StateDegraded || state == StateStale
}

// overall is degraded if anything is, starting while anything starts,
// healthy once something runs, and idle when everything is disabled or
// stopped.
func overall(components []ComponentStatus) string {
	if len(components) == 0 {
		return OverallUnknown
	}
	starting, healthy := false, false
	for _, component := range components {
		switch component.State {
		case StateDegraded, StateStale:
			return StateDegraded
		case StateStarting:
			starting = true
		case StateHealthy:
			healthy = true
		}
	}
	switch {
	case starting:
		return StateStarting
	case healthy:
		return StateHealthy
	default:
		return OverallIdle
	}
}
