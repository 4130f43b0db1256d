package intent

import (
	"regexp"
	"strings"
	"time"
)

type PeriodKind string

const (
	PeriodToday     PeriodKind = "today"
	PeriodYesterday PeriodKind = "yesterday"
	PeriodThisWeek  PeriodKind = "this_week"
	PeriodLastWeek  PeriodKind = "last_week"
	PeriodDay       PeriodKind = "day"
)

// Period is a half-open UTC interval [Start, End).
type Period struct {
	Kind  PeriodKind
	Label string
	Start time.Time
	End   time.Time
}

func (p Period) Contains(value time.Time) bool {
	return !value.Before(p.Start) && value.Before(p.End)
}

var (
	isoDayPattern  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	weekdayPattern = regexp.MustCompile(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ResolvePeriod finds the time window a query refers to. Explicit dates win
// over weekday names, which win over relative words. Weeks start on Monday.
func ResolvePeriod(query string, now time.Time) (Period, bool) {
	lower := strings.ToLower(query)
	today := startOfDay(now)

	if match := isoDayPattern.FindString(lower); match != "" {
		if day, err := time.Parse("2006-01-02", match); err == nil {
			return Period{Kind: PeriodDay, Label: "on " + match, Start: day, End: day.AddDate(0, 0, 1)}, true
		}
	}
	if match := weekdayPattern.FindString(lower); match != "" {
		target := weekdays[match]
		offset := (int(today.Weekday()) - int(target) + 7) % 7
		if strings.Contains(lower, "last "+match) && offset == 0 {
			offset = 7
		}
		day := today.AddDate(0, 0, -offset)
		label := "on " + strings.ToUpper(match[:1]) + match[1:]
		return Period{Kind: PeriodDay, Label: label, Start: day, End: day.AddDate(0, 0, 1)}, true
	}
	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	switch {
	case strings.Contains(lower, "yesterday"):
		day := today.AddDate(0, 0, -1)
		return Period{Kind: PeriodYesterday, Label: "yesterday", Start: day, End: today}, true
	case strings.Contains(lower, "last week"):
		return Period{Kind: PeriodLastWeek, Label: "last week", Start: weekStart.AddDate(0, 0, -7), End: weekStart}, true
	case strings.Contains(lower, "this week"), strings.Contains(lower, "past week"), strings.Contains(lower, "since monday"):
		return Period{Kind: PeriodThisWeek, Label: "this week", Start: weekStart, End: today.AddDate(0, 0, 1)}, true
	case strings.Contains(lower, "today"), strings.Contains(lower, "tonight"), strings.Contains(lower, "this morning"):
		return Period{Kind: PeriodToday, Label: "today", Start: today, End: today.AddDate(0, 0, 1)}, true
	}
	return Period{}, false
}

func startOfDay(value time.Time) time.Time {
	utc := value.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
