package pmcontext

import (
	"regexp"
	"strings"
	"time"
)

var isoDatePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Mon, Jan 2, 2006",
}

// ParseDate resolves a loosely formatted due date or timestamp to a UTC
// calendar day. Relative words are resolved against today.
func ParseDate(raw string, today time.Time) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	value = strings.Trim(value, " .,;")
	if value == "" || strings.EqualFold(value, NoDueDate) {
		return time.Time{}, false
	}
	day := truncateDay(today)
	switch strings.ToLower(value) {
	case "today":
		return day, true
	case "tomorrow":
		return day.AddDate(0, 0, 1), true
	case "yesterday":
		return day.AddDate(0, 0, -1), true
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return truncateDay(parsed), true
		}
	}
	if match := isoDatePattern.FindString(value); match != "" {
		if parsed, err := time.Parse("2006-01-02", match); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// DaysOverdue returns how many whole days the task is past due. The second
// value is false when the due date could not be parsed.
func DaysOverdue(task TaskRecord, today time.Time) (int, bool) {
	if !task.HasDueDate() {
		return 0, false
	}
	days := int(truncateDay(today).Sub(truncateDay(task.DueAt)).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, true
}

func truncateDay(value time.Time) time.Time {
	utc := value.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

func urgencyForDate(due, today time.Time) Urgency {
	day := truncateDay(today)
	switch {
	case due.Before(day):
		return UrgencyOverdue
	case due.Equal(day):
		return UrgencyDueToday
	default:
		return UrgencyUpcoming
	}
}

func recencyForTimestamp(timestamp string, today time.Time) (Recency, bool) {
	match := isoDatePattern.FindString(timestamp)
	if match == "" {
		return "", false
	}
	parsed, err := time.Parse("2006-01-02", match)
	if err != nil {
		return "", false
	}
	day := truncateDay(today)
	switch {
	case parsed.Equal(day):
		return RecencyToday, true
	case parsed.Equal(day.AddDate(0, 0, -1)):
		return RecencyYesterday, true
	case parsed.After(day.AddDate(0, 0, -7)):
		return RecencyThisWeek, true
	default:
		return RecencyOlder, true
	}
}
