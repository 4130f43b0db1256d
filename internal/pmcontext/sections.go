package pmcontext

import (
	"regexp"
	"strings"
	"unicode"
)

type lineState struct {
	Section     Section
	User        string
	UrgencyHint Urgency
	RecencyHint Recency
	StatusHint  string
}

type lineKind int

const (
	lineBlank lineKind = iota
	lineUserMarker
	lineSubHeader
	lineHeader
	lineItem
	lineOther
)

var (
	bulletPattern      = regexp.MustCompile(`^\s*(?:[•\-\*·◦▪▸→]|\d{1,3}[.)])\s+`)
	headerCountPattern = regexp.MustCompile(`\s*\(\d+\)\s*$`)
)

var taskUrgencyHeaders = map[string]Urgency{
	"OVERDUE":         UrgencyOverdue,
	"OVERDUE TASKS":   UrgencyOverdue,
	"DUE TODAY":       UrgencyDueToday,
	"TODAY":           UrgencyDueToday,
	"TASKS DUE TODAY": UrgencyDueToday,
	"UPCOMING":        UrgencyUpcoming,
	"UPCOMING TASKS":  UrgencyUpcoming,
	"DUE SOON":        UrgencyUpcoming,
	"THIS WEEK":       UrgencyUpcoming,
	"LATER":           UrgencyUpcoming,
}

var messageRecencyHeaders = map[string]Recency{
	"TODAY":     RecencyToday,
	"YESTERDAY": RecencyYesterday,
	"THIS WEEK": RecencyThisWeek,
	"EARLIER":   RecencyOlder,
	"OLDER":     RecencyOlder,
}

var kanbanColumns = map[string]string{
	"TO DO":       "To Do",
	"TODO":        "To Do",
	"BACKLOG":     "Backlog",
	"IN PROGRESS": "In Progress",
	"DOING":       "In Progress",
	"REVIEW":      "Review",
	"IN REVIEW":   "Review",
	"DONE":        "Done",
	"COMPLETED":   "Done",
	"BLOCKED":     "Blocked",
}

type lineClassifier struct {
	lexicon Lexicon
}

// classify returns the updated state for line plus what kind of line it was.
// Unrecognised lines leave the state untouched.
func (c lineClassifier) classify(line string, state lineState) (lineState, lineKind) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return state, lineBlank
	}
	if name, ok := c.userMarker(trimmed); ok {
		state.Section = SectionTeamTasks
		state.User = name
		state.UrgencyHint = ""
		state.StatusHint = ""
		return state, lineUserMarker
	}
	if isItemLine(trimmed, state.Section) {
		return state, lineItem
	}
	key := normalizeHeader(trimmed)
	if next, ok := applySubHeader(key, state); ok {
		return next, lineSubHeader
	}
	if !isHeaderShaped(trimmed) {
		return state, lineOther
	}
	section := c.sectionFor(strings.ToLower(trimmed))
	if section == SectionNone {
		return state, lineOther
	}
	return lineState{Section: section}, lineHeader
}

func (c lineClassifier) userMarker(trimmed string) (string, bool) {
	for _, marker := range c.lexicon.UserMarkers {
		if marker == "" || !strings.HasPrefix(trimmed, marker) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, marker))
		if !strings.HasSuffix(rest, ":") {
			continue
		}
		name := strings.TrimSpace(strings.TrimSuffix(rest, ":"))
		name = headerCountPattern.ReplaceAllString(name, "")
		if name == "" || strings.Contains(name, ":") {
			continue
		}
		return name, true
	}
	return "", false
}

// sectionFor checks message phrases first, then team phrases, then personal
// phrases. "TEAM MESSAGES" therefore lands in messages, and "TECH TEAM -
// ACTIVE TASKS" in team tasks even though it also contains "active tasks".
func (c lineClassifier) sectionFor(lower string) Section {
	if containsAny(lower, c.lexicon.MessageHeaders) {
		return SectionMessages
	}
	if containsAny(lower, c.lexicon.TeamHeaders) {
		return SectionTeamTasks
	}
	if strings.Contains(lower, "team") && (strings.Contains(lower, "task") || strings.Contains(lower, "kanban") || strings.Contains(lower, "board")) {
		return SectionTeamTasks
	}
	if containsAny(lower, c.lexicon.PersonalHeaders) {
		return SectionPersonalTasks
	}
	return SectionNone
}

func applySubHeader(key string, state lineState) (lineState, bool) {
	if key == "" {
		return state, false
	}
	switch state.Section {
	case SectionMessages:
		if recency, ok := messageRecencyHeaders[key]; ok {
			state.RecencyHint = recency
			return state, true
		}
	case SectionPersonalTasks, SectionTeamTasks:
		if urgency, ok := taskUrgencyHeaders[key]; ok {
			state.UrgencyHint = urgency
			return state, true
		}
		if column, ok := kanbanColumns[key]; ok {
			state.StatusHint = column
			return state, true
		}
	}
	return state, false
}

func isItemLine(trimmed string, section Section) bool {
	if bulletPattern.MatchString(trimmed) {
		return true
	}
	if strings.HasPrefix(trimmed, "[") {
		return true
	}
	return section == SectionMessages && strings.HasPrefix(strings.ToLower(trimmed), "from ")
}

// proseWords mark a short line as a sentence ("No open tasks", "Tasks are
// blocked") rather than a title.
var proseWords = map[string]struct{}{
	"no": {}, "none": {}, "not": {}, "nothing": {}, "nobody": {}, "never": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"has": {}, "have": {}, "had": {}, "will": {}, "can": {}, "should": {}, "must": {},
	"i": {}, "i'm": {}, "we": {}, "you": {}, "he": {}, "she": {}, "they": {}, "please": {},
}

// isHeaderShaped accepts "HEADER:", markdown headings, all-caps lines and
// short colon-free titles such as "Recent Messages". Short lines that read
// as sentences are not titles.
func isHeaderShaped(trimmed string) bool {
	if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "==") {
		return true
	}
	body := strings.TrimRight(trimmed, " =")
	if strings.HasSuffix(body, ":") {
		return strings.Count(body, ":") == 1
	}
	if strings.Contains(body, ":") {
		return false
	}
	if isUpper(body) {
		return true
	}
	return isShortTitle(body)
}

func isShortTitle(body string) bool {
	if body == "" {
		return false
	}
	if strings.ContainsAny(body[len(body)-1:], ".!?") {
		return false
	}
	words := strings.Fields(body)
	if len(words) > 5 {
		return false
	}
	for _, word := range words {
		word = strings.ToLower(strings.Trim(word, ",;-–—()"))
		if _, ok := proseWords[word]; ok {
			return false
		}
	}
	return true
}

func normalizeHeader(trimmed string) string {
	value := strings.TrimFunc(trimmed, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ')'
	})
	value = headerCountPattern.ReplaceAllString(value, "")
	value = strings.TrimFunc(value, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.ToUpper(strings.Join(strings.Fields(value), " "))
}

func isUpper(value string) bool {
	hasLetter := false
	for _, r := range value {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func containsAny(lower string, phrases []string) bool {
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
