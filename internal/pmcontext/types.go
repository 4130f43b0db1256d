package pmcontext

import "time"

type Section string

const (
	SectionNone          Section = "none"
	SectionPersonalTasks Section = "personal_tasks"
	SectionTeamTasks     Section = "team_tasks"
	SectionMessages      Section = "messages"
)

type Urgency string

const (
	UrgencyOverdue  Urgency = "overdue"
	UrgencyDueToday Urgency = "due_today"
	UrgencyUpcoming Urgency = "upcoming"
	UrgencyUnknown  Urgency = "unknown"
)

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
	PriorityNormal Priority = "Normal"
)

type Recency string

const (
	RecencyToday     Recency = "today"
	RecencyYesterday Recency = "yesterday"
	RecencyThisWeek  Recency = "this_week"
	RecencyOlder     Recency = "older"
)

const NoDueDate = "No date"

type TaskRecord struct {
	Name       string
	Urgency    Urgency
	Priority   Priority
	Status     string
	Due        string
	DueAt      time.Time
	Created    string
	ID         string
	AssignedTo string
	// Line is the 1-based line of the context blob the record came from.
	Line int
}

// HasDueDate reports whether the raw due value was parsed into a calendar date.
func (t TaskRecord) HasDueDate() bool {
	return !t.DueAt.IsZero()
}

type MessageRecord struct {
	Sender    string
	Content   string
	Timestamp string
	Recency   Recency
	Count     int
	Line      int
}

type TaskBuckets struct {
	Overdue  []TaskRecord
	Today    []TaskRecord
	Upcoming []TaskRecord
}

func (b TaskBuckets) Len() int {
	return len(b.Overdue) + len(b.Today) + len(b.Upcoming)
}

// All returns the tasks in urgency order: overdue, due today, upcoming.
func (b TaskBuckets) All() []TaskRecord {
	out := make([]TaskRecord, 0, b.Len())
	out = append(out, b.Overdue...)
	out = append(out, b.Today...)
	out = append(out, b.Upcoming...)
	return out
}

func (b *TaskBuckets) add(task TaskRecord) {
	switch task.Urgency {
	case UrgencyOverdue:
		b.Overdue = append(b.Overdue, task)
	case UrgencyDueToday:
		b.Today = append(b.Today, task)
	default:
		b.Upcoming = append(b.Upcoming, task)
	}
}

type MessageBuckets struct {
	Today     []MessageRecord
	Yesterday []MessageRecord
	ThisWeek  []MessageRecord
	Older     []MessageRecord
	BySender  map[string][]MessageRecord
}

func (b MessageBuckets) Len() int {
	return len(b.Today) + len(b.Yesterday) + len(b.ThisWeek) + len(b.Older)
}

// All returns the messages newest bucket first.
func (b MessageBuckets) All() []MessageRecord {
	out := make([]MessageRecord, 0, b.Len())
	out = append(out, b.Today...)
	out = append(out, b.Yesterday...)
	out = append(out, b.ThisWeek...)
	out = append(out, b.Older...)
	return out
}

func (b *MessageBuckets) add(message MessageRecord) {
	switch message.Recency {
	case RecencyToday:
		b.Today = append(b.Today, message)
	case RecencyYesterday:
		b.Yesterday = append(b.Yesterday, message)
	case RecencyOlder:
		b.Older = append(b.Older, message)
	default:
		b.ThisWeek = append(b.ThisWeek, message)
	}
	if b.BySender == nil {
		b.BySender = map[string][]MessageRecord{}
	}
	b.BySender[message.Sender] = append(b.BySender[message.Sender], message)
}

// Aggregated is the per-request view of a context blob. It is rebuilt for
// every request and never shared.
type Aggregated struct {
	PersonalTasks TaskBuckets
	TeamTasks     map[string]TaskBuckets
	Messages      MessageBuckets
	TeamMembers   []string
	Today         time.Time
}

func (a Aggregated) TeamTaskCount() int {
	total := 0
	for _, buckets := range a.TeamTasks {
		total += buckets.Len()
	}
	return total
}

func (a Aggregated) Empty() bool {
	return a.PersonalTasks.Len() == 0 && a.TeamTaskCount() == 0 && a.Messages.Len() == 0
}
