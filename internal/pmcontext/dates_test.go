package pmcontext

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	today := time.Date(2026, 10, 19, 18, 30, 0, 0, time.UTC)
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: "2026-10-20", want: "2026-10-20", ok: true},
		{raw: "Oct 3, 2026", want: "2026-10-03", ok: true},
		{raw: "10/31/2026", want: "2026-10-31", ok: true},
		{raw: "tomorrow", want: "2026-10-20", ok: true},
		{raw: "Today", want: "2026-10-19", ok: true},
		{raw: "end of 2026-12-01 sprint", want: "2026-12-01", ok: true},
		{raw: "No date", ok: false},
		{raw: "someday", ok: false},
		{raw: "", ok: false},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.raw, today)
		if ok != tc.ok {
			t.Fatalf("ParseDate(%q) ok=%v, want %v", tc.raw, ok, tc.ok)
		}
		if ok && got.Format("2006-01-02") != tc.want {
			t.Fatalf("ParseDate(%q) = %s, want %s", tc.raw, got.Format("2006-01-02"), tc.want)
		}
	}
}

func TestDaysOverdue(t *testing.T) {
	today := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	days, ok := DaysOverdue(TaskRecord{DueAt: time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)}, today)
	if !ok || days != 7 {
		t.Fatalf("expected 7 days overdue, got %d ok=%v", days, ok)
	}

	if _, ok := DaysOverdue(TaskRecord{Due: "last sprint"}, today); ok {
		t.Fatal("expected unknown duration for unparseable due date")
	}

	days, ok = DaysOverdue(TaskRecord{DueAt: time.Date(2026, 10, 25, 0, 0, 0, 0, time.UTC)}, today)
	if !ok || days != 0 {
		t.Fatalf("future due date should not count as overdue, got %d", days)
	}
}

func TestRecencyForTimestamp(t *testing.T) {
	today := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	cases := map[string]Recency{
		"2026-10-19 10:00": RecencyToday,
		"2026-10-18":       RecencyYesterday,
		"2026-10-13":       RecencyThisWeek,
		"2026-10-12":       RecencyOlder,
	}
	for timestamp, want := range cases {
		got, ok := recencyForTimestamp(timestamp, today)
		if !ok || got != want {
			t.Fatalf("recencyForTimestamp(%q) = %s, want %s", timestamp, got, want)
		}
	}
	if _, ok := recencyForTimestamp("10:42 am", today); ok {
		t.Fatal("expected no recency without a date")
	}
}
