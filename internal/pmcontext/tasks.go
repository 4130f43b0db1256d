package pmcontext

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

type taskFields struct {
	Tag   string
	Name  string
	Attrs map[string]string
}

// taskRule is one extraction strategy. Rules are tried in order and the
// first one whose match returns ok wins.
type taskRule struct {
	name  string
	match func(text string) (taskFields, bool)
}

var (
	taggedDetailedPattern = regexp.MustCompile(`^\[([^\]]+)\]\s*(.+?)\s*\(([^()]*:[^()]*)\)\s*$`)
	detailedPattern       = regexp.MustCompile(`^(.+?)\s*\(([^()]*:[^()]*)\)\s*$`)
	pipedPattern          = regexp.MustCompile(`^([^|]+?)\s*\|\s*(.+:.+)$`)
	dashDuePattern        = regexp.MustCompile(`(?i)^(.+?)\s+[-–—]\s+(?:due(?:\s+(?:on|by))?|deadline)\s*:?\s+(.+)$`)
	taggedPattern         = regexp.MustCompile(`^\[([^\]]+)\]\s*(.+)$`)
	attrKeyPattern        = regexp.MustCompile(`^\s*([^:]+?)\s*:\s*(.*?)\s*$`)
)

var taskRules = []taskRule{
	{name: "tagged_detailed", match: func(text string) (taskFields, bool) {
		groups := taggedDetailedPattern.FindStringSubmatch(text)
		if groups == nil {
			return taskFields{}, false
		}
		return taskFields{Tag: groups[1], Name: groups[2], Attrs: parseAttrs(groups[3], ",")}, true
	}},
	{name: "detailed", match: func(text string) (taskFields, bool) {
		groups := detailedPattern.FindStringSubmatch(text)
		if groups == nil {
			return taskFields{}, false
		}
		attrs := parseAttrs(groups[2], ",")
		if len(attrs) == 0 {
			return taskFields{}, false
		}
		return taskFields{Name: groups[1], Attrs: attrs}, true
	}},
	{name: "piped", match: func(text string) (taskFields, bool) {
		groups := pipedPattern.FindStringSubmatch(text)
		if groups == nil {
			return taskFields{}, false
		}
		attrs := parseAttrs(groups[2], "|")
		if len(attrs) == 0 {
			return taskFields{}, false
		}
		tag, name := splitTag(groups[1])
		return taskFields{Tag: tag, Name: name, Attrs: attrs}, true
	}},
	{name: "dash_due", match: func(text string) (taskFields, bool) {
		groups := dashDuePattern.FindStringSubmatch(text)
		if groups == nil {
			return taskFields{}, false
		}
		tag, name := splitTag(groups[1])
		return taskFields{Tag: tag, Name: name, Attrs: map[string]string{"due": strings.TrimSpace(groups[2])}}, true
	}},
	{name: "tagged", match: func(text string) (taskFields, bool) {
		groups := taggedPattern.FindStringSubmatch(text)
		if groups == nil {
			return taskFields{}, false
		}
		return taskFields{Tag: groups[1], Name: groups[2]}, true
	}},
}

type taskExtractor struct {
	now func() time.Time
}

// extract builds a task from one item line. It only fails for lines that are
// empty once bullets are stripped; anything else yields at least a minimal
// record.
func (e taskExtractor) extract(line string, state lineState) (TaskRecord, string, bool) {
	text := stripBullet(line)
	if text == "" {
		return TaskRecord{}, "", false
	}
	today := e.now()
	for _, rule := range taskRules {
		fields, ok := rule.match(text)
		if !ok || strings.TrimSpace(fields.Name) == "" {
			continue
		}
		return e.build(fields, state, today), rule.name, true
	}
	urgency := state.UrgencyHint
	if urgency == "" {
		urgency = UrgencyUnknown
	}
	status := state.StatusHint
	if status == "" {
		status = "Pending"
	}
	return TaskRecord{
		Name:       text,
		Urgency:    urgency,
		Priority:   PriorityNormal,
		Status:     status,
		Due:        NoDueDate,
		AssignedTo: state.User,
	}, "fallback", true
}

func (e taskExtractor) build(fields taskFields, state lineState, today time.Time) TaskRecord {
	task := TaskRecord{
		Name:       cleanTaskName(fields.Name),
		Priority:   PriorityMedium,
		Status:     defaultStatus(state),
		Due:        NoDueDate,
		AssignedTo: state.User,
	}
	for key, value := range fields.Attrs {
		if value == "" {
			continue
		}
		switch key {
		case "priority":
			task.Priority = normalizePriority(value)
		case "status":
			task.Status = value
		case "due":
			task.Due = value
		case "created":
			task.Created = value
		case "id":
			task.ID = value
		case "assigned":
			task.AssignedTo = value
		}
	}
	if parsed, ok := ParseDate(task.Due, today); ok {
		task.DueAt = parsed
	}
	task.Urgency = urgencyFromTag(fields.Tag)
	if task.Urgency == "" && task.HasDueDate() {
		task.Urgency = urgencyForDate(task.DueAt, today)
	}
	if task.Urgency == "" {
		task.Urgency = state.UrgencyHint
	}
	if task.Urgency == "" {
		task.Urgency = UrgencyUpcoming
	}
	return task
}

func defaultStatus(state lineState) string {
	if state.StatusHint != "" {
		return state.StatusHint
	}
	if state.Section == SectionTeamTasks {
		return "Pending"
	}
	return "Active"
}

func urgencyFromTag(tag string) Urgency {
	lower := strings.ToLower(strings.TrimSpace(tag))
	switch {
	case lower == "":
		return ""
	case strings.Contains(lower, "overdue") || strings.Contains(lower, "late"):
		return UrgencyOverdue
	case strings.Contains(lower, "today"):
		return UrgencyDueToday
	case strings.Contains(lower, "upcoming") || strings.Contains(lower, "soon") || strings.Contains(lower, "later"):
		return UrgencyUpcoming
	default:
		return ""
	}
}

func normalizePriority(value string) Priority {
	lower := strings.ToLower(value)
	switch {
	case strings.Contains(lower, "high") || strings.Contains(lower, "urgent") || strings.Contains(lower, "critical"):
		return PriorityHigh
	case strings.Contains(lower, "medium") || strings.Contains(lower, "moderate"):
		return PriorityMedium
	case strings.Contains(lower, "low") || strings.Contains(lower, "minor"):
		return PriorityLow
	default:
		return PriorityNormal
	}
}

var attrAliases = map[string]string{
	"priority":     "priority",
	"prio":         "priority",
	"status":       "status",
	"state":        "status",
	"due":          "due",
	"due date":     "due",
	"deadline":     "due",
	"due on":       "due",
	"created":      "created",
	"created date": "created",
	"created on":   "created",
	"created at":   "created",
	"id":           "id",
	"task id":      "id",
	"assigned":     "assigned",
	"assigned to":  "assigned",
	"assignee":     "assigned",
	"owner":        "assigned",
}

// parseAttrs reads "Key: Value" pairs separated by sep. Unknown keys are
// dropped; the result is empty when nothing recognisable was found.
func parseAttrs(raw, sep string) map[string]string {
	attrs := map[string]string{}
	for _, part := range strings.Split(raw, sep) {
		groups := attrKeyPattern.FindStringSubmatch(part)
		if groups == nil {
			continue
		}
		key := strings.ToLower(strings.TrimFunc(groups[1], func(r rune) bool {
			return !unicode.IsLetter(r)
		}))
		canonical, ok := attrAliases[strings.Join(strings.Fields(key), " ")]
		if !ok {
			continue
		}
		attrs[canonical] = strings.TrimSpace(groups[2])
	}
	return attrs
}

func splitTag(text string) (string, string) {
	groups := taggedPattern.FindStringSubmatch(strings.TrimSpace(text))
	if groups == nil {
		return "", strings.TrimSpace(text)
	}
	return groups[1], groups[2]
}

func cleanTaskName(name string) string {
	value := strings.TrimSpace(name)
	value = strings.Trim(value, `"'“”`)
	return strings.TrimSpace(strings.TrimRight(value, " -–—:"))
}

func stripBullet(line string) string {
	trimmed := strings.TrimSpace(line)
	// the trailing space lets a bare bullet strip to nothing
	trimmed = bulletPattern.ReplaceAllString(trimmed+" ", "")
	return strings.TrimSpace(trimmed)
}
