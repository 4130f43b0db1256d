package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

type Transition struct {
	Component string
	From      string
	To        string
	Message   string
	Error     string
}

// Monitor polls a registry and logs every component state change.
type Monitor struct {
	registry   *Registry
	interval   time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
	previous   map[string]string
}

func NewMonitor(registry *Registry, interval, staleAfter time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		registry:   registry,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger.With("component", "heartbeat"),
		previous:   map[string]string{},
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		for _, transition := range m.check() {
			m.log(transition)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// check returns the state changes since the previous call. The first sight
// of a component is not a transition.
func (m *Monitor) check() []Transition {
	snapshot := m.registry.Snapshot(m.staleAfter)
	transitions := []Transition{}
	for _, component := range snapshot.Components {
		before, seen := m.previous[component.Name]
		m.previous[component.Name] = component.State
		if !seen || before == component.State {
			continue
		}
		transitions = append(transitions, Transition{
			Component: component.Name,
			From:      before,
			To:        component.State,
			Message:   component.Message,
			Error:     component.Error,
		})
	}
	return transitions
}

func (m *Monitor) log(transition Transition) {
	attrs := []any{"target", transition.Component, "from", transition.From, "to", transition.To}
	if transition.Message != "" {
		attrs = append(attrs, "message", transition.Message)
	}
	if transition.Error != "" {
		attrs = append(attrs, "error", transition.Error)
	}
	if IsDegraded(transition.To) {
		m.logger.Warn("component degraded", attrs...)
		return
	}
	m.logger.Info("component state changed", attrs...)
}
