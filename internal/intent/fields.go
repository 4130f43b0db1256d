package intent

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

type Field string

const (
	FieldNone     Field = ""
	FieldCreated  Field = "created"
	FieldDue      Field = "due"
	FieldStatus   Field = "status"
	FieldPriority Field = "priority"
)

const fieldWords = `created date|creation date|date created|created|due date|deadline|due|status|priority`

// Patterns yield the field in the group named "field" and the task in the
// group named "task". A missing task group means "all of my tasks".
var fieldPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy\s+tasks?(?:'s|’s|s')?\s+(?P<field>` + fieldWords + `)\b`),
	regexp.MustCompile(`(?i)\b(?:what(?:'s|’s| is| was)|tell me|show me|give me)\s+(?:the\s+)?(?P<field>` + fieldWords + `)\s+(?:of|for)\s+(?:the\s+)?(?:task\s+)?["“']?(?P<task>.+?)["”']?\s*\??$`),
	regexp.MustCompile(`(?i)\bwhen\s+(?:was|is|were)\s+(?:the\s+)?(?:task\s+)?["“']?(?P<task>.+?)["”']?\s+(?P<field>created|due)\b`),
	regexp.MustCompile(`(?i)\b(?:what(?:'s|’s| is)|show me)\s+(?:the\s+)?(?:task\s+)?["“']?(?P<task>.+?)["”']?(?:'s|’s)\s+(?P<field>` + fieldWords + `)\b`),
	regexp.MustCompile(`(?i)\bwhat\s+(?P<field>priority|status)\s+(?:is|does)\s+(?:the\s+)?(?:task\s+)?["“']?(?P<task>.+?)["”']?(?:\s+have)?\s*\??$`),
}

// ExtractField reports which task attribute a query asks about and the task
// it names. taskName is empty when the question is about the user's own
// tasks in general.
func ExtractField(query string) (Field, string) {
	text := strings.TrimSpace(query)
	for _, pattern := range fieldPatterns {
		groups := pattern.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		field := normalizeField(groups[pattern.SubexpIndex("field")])
		task := ""
		if index := pattern.SubexpIndex("task"); index >= 0 {
			task = cleanTaskReference(groups[index])
			if isMessageReference(task) {
				continue
			}
			if task == "" || isGenericTaskReference(task) {
				task = ""
			}
		}
		return field, task
	}
	return FieldNone, ""
}

func normalizeField(raw string) Field {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "creat"):
		return FieldCreated
	case strings.Contains(lower, "due"), strings.Contains(lower, "deadline"):
		return FieldDue
	case strings.Contains(lower, "status"):
		return FieldStatus
	case strings.Contains(lower, "priority"):
		return FieldPriority
	default:
		return FieldNone
	}
}

func cleanTaskReference(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimRightFunc(value, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return strings.Trim(value, `"'“”`)
}

func isGenericTaskReference(task string) bool {
	switch strings.ToLower(task) {
	case "my task", "my tasks", "tasks", "task", "it", "this", "that", "my work":
		return true
	}
	return false
}

var messageNounPattern = regexp.MustCompile(`(?i)\b(messages?|msgs?|dms?|chats?|inbox|emails?|conversations?|notifications?)\b`)

// isMessageReference reports whether a captured task name is really about
// messages, as in "the status of my messages".
func isMessageReference(task string) bool {
	return messageNounPattern.MatchString(task)
}

var looseSenderPattern = regexp.MustCompile(`\b[Ff]rom\s+([A-Z][\p{L}'.-]*(?:\s+[A-Z][\p{L}'.-]*)?)`)

var notNames = map[string]struct{}{
	"today": {}, "yesterday": {}, "me": {}, "my": {}, "the": {}, "this": {}, "last": {},
	"team": {}, "everyone": {}, "anyone": {}, "someone": {}, "monday": {}, "tuesday": {},
	"wednesday": {}, "thursday": {}, "friday": {}, "saturday": {}, "sunday": {},
}

// MentionedMember finds the candidate named in query. Full names win over
// first names and longer names over shorter ones. When no candidate matches,
// a capitalised "from <Name>" phrase is accepted as a loose match.
func MentionedMember(query string, candidates []string) (string, bool) {
	lower := strings.ToLower(query)
	sorted := append([]string(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	for _, candidate := range sorted {
		name := strings.TrimSpace(candidate)
		if name == "" || strings.EqualFold(name, "Unknown") || strings.EqualFold(name, "Unassigned") {
			continue
		}
		if containsWord(lower, strings.ToLower(name)) {
			return name, true
		}
	}
	for _, candidate := range sorted {
		first := strings.Fields(strings.TrimSpace(candidate))
		if len(first) < 2 {
			continue
		}
		if containsWord(lower, strings.ToLower(first[0])) {
			return strings.TrimSpace(candidate), true
		}
	}
	groups := looseSenderPattern.FindStringSubmatch(query)
	if groups == nil {
		return "", false
	}
	words := strings.Fields(groups[1])
	kept := make([]string, 0, len(words))
	for _, word := range words {
		if _, skip := notNames[strings.ToLower(strings.Trim(word, "'.-"))]; skip {
			break
		}
		kept = append(kept, strings.TrimRight(word, "'.-"))
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, " "), true
}

func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	start := 0
	for {
		index := strings.Index(haystack[start:], needle)
		if index < 0 {
			return false
		}
		begin := start + index
		end := begin + len(needle)
		if boundary(haystack, begin-1) && boundary(haystack, end) {
			return true
		}
		start = begin + 1
	}
}

func boundary(value string, index int) bool {
	if index < 0 || index >= len(value) {
		return true
	}
	r := rune(value[index])
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}
