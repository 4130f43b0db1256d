package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dwizi/pmt-assistant/internal/ingest"
)

type fakeReindexer struct {
	calls int
	dir   string
	err   error
}

func (f *fakeReindexer) IndexDir(ctx context.Context, dir string) (ingest.Report, error) {
	f.calls++
	f.dir = dir
	if f.err != nil {
		return ingest.Report{}, f.err
	}
	return ingest.Report{Documents: 2, Indexed: 1}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRejectsInvalidSchedules(t *testing.T) {
	for _, expr := range []string{"", "   ", "not a cron", "* * *"} {
		if _, err := New(expr, "/docs", &fakeReindexer{}, testLogger()); err == nil {
			t.Fatalf("expected error for %q", expr)
		}
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 10, 19, 10, 7, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"*/15 * * * *":                    time.Date(2026, 10, 19, 10, 15, 0, 0, time.UTC),
		"@hourly":                         time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC),
		"0   2  * * *":                    time.Date(2026, 10, 20, 2, 0, 0, 0, time.UTC),
		"CRON_TZ=Europe/Berlin 0 9 * * *": time.Date(2026, 10, 20, 7, 0, 0, 0, time.UTC),
	}
	for expr, want := range cases {
		got, err := NextRun(expr, from)
		if err != nil {
			t.Fatalf("NextRun(%q) failed: %v", expr, err)
		}
		if !got.Equal(want) {
			t.Fatalf("NextRun(%q) = %s, want %s", expr, got, want)
		}
	}
	if got, err := NextRun("", from); err != nil || !got.IsZero() {
		t.Fatalf("expected zero time for empty schedule, got %s err=%v", got, err)
	}
}

func TestNextRunBacksOffAfterFailures(t *testing.T) {
	service, err := New("* * * * *", "/docs", &fakeReindexer{}, testLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	now := time.Date(2026, 10, 19, 10, 0, 30, 0, time.UTC)
	if got := service.nextRun(now); !got.Equal(time.Date(2026, 10, 19, 10, 1, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next run without failures: %s", got)
	}
	service.failures = 3
	if got := service.nextRun(now); !got.Equal(now.Add(4 * time.Minute)) {
		t.Fatalf("expected 4 minute backoff, got %s", got.Sub(now))
	}
	service.failures = 20
	if got := service.nextRun(now); !got.Equal(now.Add(failureBackoffMax)) {
		t.Fatalf("expected capped backoff, got %s", got.Sub(now))
	}
}

func TestRunOnceTracksFailures(t *testing.T) {
	reindexer := &fakeReindexer{err: errors.New("embedding model offline")}
	service, err := New("@daily", "/docs", reindexer, testLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	ctx := context.Background()
	service.runOnce(ctx)
	service.runOnce(ctx)
	if service.failures != 2 || reindexer.dir != "/docs" {
		t.Fatalf("expected two failures against /docs, got %d (%s)", service.failures, reindexer.dir)
	}
	reindexer.err = nil
	service.runOnce(ctx)
	if service.failures != 0 || reindexer.calls != 3 {
		t.Fatalf("expected failures reset after success, got failures=%d calls=%d", service.failures, reindexer.calls)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	service, err := New("@yearly", "/docs", &fakeReindexer{}, testLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
