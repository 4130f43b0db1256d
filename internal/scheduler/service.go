package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/pmt-assistant/internal/ingest"
)

const (
	failureBackoffMin = 1 * time.Minute
	failureBackoffMax = 30 * time.Minute
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Reindexer interface {
	IndexDir(ctx context.Context, dir string) (ingest.Report, error)
}

// Service runs a full documents reindex on a cron schedule. Expressions use
// five fields or a descriptor such as "@hourly", and may carry a
// "CRON_TZ=Europe/Berlin" prefix.
type Service struct {
	expr      string
	schedule  cron.Schedule
	dir       string
	reindexer Reindexer
	logger    *slog.Logger
	now       func() time.Time
	failures  int
}

func New(expr, dir string, reindexer Reindexer, logger *slog.Logger) (*Service, error) {
	expr = normalizeCronExpr(expr)
	if expr == "" {
		return nil, fmt.Errorf("reindex schedule is empty")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		expr:      expr,
		schedule:  schedule,
		dir:       dir,
		reindexer: reindexer,
		logger:    logger.With("component", "scheduler"),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// NextRun resolves the next reindex time after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	expr = normalizeCronExpr(expr)
	if expr == "" {
		return time.Time{}, nil
	}
	if from.IsZero() {
		from = time.Now().UTC()
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression: %w", err)
	}
	return schedule.Next(from).UTC(), nil
}

func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "schedule", s.expr, "dir", s.dir)
	for {
		next := s.nextRun(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}
		s.runOnce(ctx)
	}
}

func (s *Service) runOnce(ctx context.Context) {
	report, err := s.reindexer.IndexDir(ctx, s.dir)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.failures++
		s.logger.Error("scheduled reindex failed", "error", err, "consecutive_failures", s.failures)
		return
	}
	s.failures = 0
	s.logger.Info("scheduled reindex completed",
		"documents", report.Documents,
		"indexed", report.Indexed,
		"removed", report.Removed,
		"failed", len(report.Failed),
	)
}

// nextRun follows the cron schedule, but after consecutive failures it waits
// at least an exponential backoff so a broken model server is not hammered by
// a frequent schedule.
func (s *Service) nextRun(now time.Time) time.Time {
	next := s.schedule.Next(now).UTC()
	if s.failures == 0 {
		return next
	}
	backoff := failureBackoffMin
	for attempt := 1; attempt < s.failures && backoff < failureBackoffMax; attempt++ {
		backoff *= 2
	}
	if backoff > failureBackoffMax {
		backoff = failureBackoffMax
	}
	if earliest := now.Add(backoff); next.Before(earliest) {
		return earliest
	}
	return next
}

func normalizeCronExpr(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.Join(strings.Fields(trimmed), " ")
}
