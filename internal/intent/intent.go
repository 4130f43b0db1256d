package intent

import (
	"regexp"
	"sort"
	"strings"
)

type Intent string

const (
	TaskQuery          Intent = "task_query"
	TeamTaskQuery      Intent = "team_task_query"
	MessageQuery       Intent = "message_query"
	FieldSpecificQuery Intent = "field_specific_query"
	KanbanQuery        Intent = "kanban_query"
	DateMessageQuery   Intent = "date_message_query"
	AttachmentQuery    Intent = "attachment_query"
	GeneralQuery       Intent = "general_query"
)

// Keywords feed the scoring step that runs after every explicit rule missed.
type Keywords struct {
	Task    []string `yaml:"task"`
	Message []string `yaml:"message"`
}

func DefaultKeywords() Keywords {
	return Keywords{
		Task: []string{
			"task", "tasks", "todo", "todos", "to-do", "deadline", "deadlines", "due", "overdue",
			"priority", "priorities", "assignment", "assignments", "project", "projects", "work",
			"complete", "finish", "sprint", "ticket", "tickets", "pending", "schedule",
		},
		Message: []string{
			"message", "messages", "msg", "msgs", "chat", "chats", "inbox", "dm", "dms", "reply",
			"replied", "said", "wrote", "mention", "mentioned", "ping", "pinged", "conversation",
			"email", "emails", "notification", "notifications", "texted",
		},
	}
}

type Classifier struct {
	taskWords    map[string]struct{}
	messageWords map[string]struct{}
}

// NewClassifier builds a classifier whose scoring vocabulary is the default
// keywords plus extra.
func NewClassifier(extra Keywords) *Classifier {
	defaults := DefaultKeywords()
	return &Classifier{
		taskWords:    wordSet(defaults.Task, extra.Task),
		messageWords: wordSet(defaults.Message, extra.Message),
	}
}

var defaultClassifier = NewClassifier(Keywords{})

// Classify runs the default classifier.
func Classify(query string, members []string) Intent {
	return defaultClassifier.Classify(query, members)
}

var (
	datedMessagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(messages?|msgs?|dms?|chats?|heard)\b.*\b(yesterday|this week|last week|since|on (mon|tues|wednes|thurs|fri|satur|sun)day|\d{4}-\d{2}-\d{2})\b`),
		regexp.MustCompile(`\b(yesterday|this week|last week|on (mon|tues|wednes|thurs|fri|satur|sun)day|\d{4}-\d{2}-\d{2})\b.*\b(messages?|msgs?|dms?|chats?)\b`),
		regexp.MustCompile(`\bwho\s+(messaged|texted|pinged|wrote to)\s+me\s+(yesterday|this week|last week)\b`),
	}
	kanbanPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bkanban\b`),
		regexp.MustCompile(`\b(board|columns?|swim ?lanes?)\b`),
		regexp.MustCompile(`\b(in progress|in review|backlog|to-?do column|done column)\b`),
		regexp.MustCompile(`\btasks?\s+by\s+status\b`),
	}
	attachmentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(attachments?|attached|attach)\b`),
		regexp.MustCompile(`\b(files?|docs?|documents?|pdfs?|screenshots?|images?)\b.*\b(shared|sent|uploaded)\b`),
		regexp.MustCompile(`\b(shared|sent|uploaded)\b.*\b(files?|docs?|documents?|pdfs?|screenshots?|images?)\b`),
		regexp.MustCompile(`📎`),
	}
	teamTaskPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(team|teams|team's|everyone|everyone's|everybody|colleagues|teammates)\s+(?:\w+\s+)?(tasks?|work|assignments?|working on|workload)\b`),
		regexp.MustCompile(`\b(tasks?|assignments?|workload)\s+(?:for|of|on|across|assigned to)\s+(?:the\s+|my\s+|our\s+|whole\s+)*(team|everyone|everybody|teammates)\b`),
		regexp.MustCompile(`\b(tasks?|assignments?)\s+(?:does|do|has|have)\s+(?:my|our|the)\s+(team|teammates)\b`),
		regexp.MustCompile(`\bwho\s+is\s+working\s+on\b`),
		regexp.MustCompile(`\bwho\s+has\s+(overdue|pending|the most)\b`),
	}
	taskPhrasePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(what|which)\b.*\b(should|do|must|can)\s+i\s+(do|work on|complete|finish|focus on|prioriti[sz]e|tackle|start)\b`),
		regexp.MustCompile(`\bmy\s+(tasks?|to-?dos?|work|assignments?|deadlines?|priorities|workload)\b`),
		regexp.MustCompile(`\b(overdue|due today|due tomorrow|upcoming tasks?|pending tasks?)\b`),
		regexp.MustCompile(`\bwhat'?s\s+on\s+my\s+(plate|list|agenda)\b`),
		regexp.MustCompile(`\b(am i|i am|i'm)\s+(behind|late)\b`),
	}
	messagePhrasePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(any|new|unread|recent|latest|last)\s+(messages?|dms?|msgs?|chats?)\b`),
		regexp.MustCompile(`\b(messages?|msgs?|dms?)\s+from\b`),
		regexp.MustCompile(`\bdid\s+(i|anyone|someone|anybody)\b.*\b(get|receive|send|message|write)\b.*\b(messages?|msgs?|dms?|me)\b`),
		regexp.MustCompile(`\bwho\s+(messaged|texted|pinged|wrote to|contacted)\s+me\b`),
		regexp.MustCompile(`\bmy\s+(messages|inbox|dms|chats)\b`),
		regexp.MustCompile(`\b(what|anything)\b.*\b(say|said|write|wrote)\b`),
	}
	wordPattern = regexp.MustCompile(`[a-z][a-z'-]*`)
)

// Classify walks the decision list in order and returns the first intent
// whose rule matches. Keyword scoring only runs when no rule fired.
func (c *Classifier) Classify(query string, members []string) Intent {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" {
		return GeneralQuery
	}
	if field, _ := ExtractField(query); field != FieldNone {
		return FieldSpecificQuery
	}
	if matchAny(lower, datedMessagePatterns) {
		return DateMessageQuery
	}
	if matchAny(lower, kanbanPatterns) {
		return KanbanQuery
	}
	if matchAny(lower, attachmentPatterns) {
		return AttachmentQuery
	}
	if matchAny(lower, teamTaskPatterns) || mentionsMemberTasks(lower, members) {
		return TeamTaskQuery
	}
	if matchAny(lower, taskPhrasePatterns) {
		return TaskQuery
	}
	if matchAny(lower, messagePhrasePatterns) {
		return MessageQuery
	}
	return c.score(lower)
}

func (c *Classifier) score(lower string) Intent {
	taskScore, messageScore := 0, 0
	for _, word := range wordPattern.FindAllString(lower, -1) {
		word = strings.TrimSuffix(strings.Trim(word, "'-"), "'s")
		if _, ok := c.taskWords[word]; ok {
			taskScore++
		}
		if _, ok := c.messageWords[word]; ok {
			messageScore++
		}
	}
	switch {
	case taskScore == 0 && messageScore == 0:
		return GeneralQuery
	case messageScore > taskScore:
		return MessageQuery
	default:
		return TaskQuery
	}
}

// mentionsMemberTasks catches "Alice's tasks", "tasks for Bob" and "what is
// Carol working on" for any known member.
// mentionsMemberTasks matches every member name with one compiled pattern.
func mentionsMemberTasks(lower string, members []string) bool {
	pattern := memberTaskPattern(members)
	return pattern != nil && pattern.MatchString(lower)
}

func memberTaskPattern(members []string) *regexp.Regexp {
	names := make([]string, 0, len(members))
	for _, member := range members {
		if name := strings.ToLower(strings.TrimSpace(member)); name != "" {
			names = append(names, regexp.QuoteMeta(name))
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	who := `(?:` + strings.Join(names, "|") + `)`
	return regexp.MustCompile(strings.Join([]string{
		`\b` + who + `(?:'s|’s|s')\s+(?:\w+\s+)?(?:tasks?|work|assignments?|workload|deadlines?)\b`,
		`\b(?:tasks?|assignments?|work)\s+(?:for|of|assigned to|owned by)\s+` + who + `\b`,
		`\bwhat\s+(?:is|are)\s+` + who + `\s+working\s+on\b`,
		`\bis\s+` + who + `\s+(?:behind|overdue|late)\b`,
	}, "|"))
}

func matchAny(value string, patterns []*regexp.Regexp) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

func wordSet(lists ...[]string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, list := range lists {
		for _, word := range list {
			value := strings.ToLower(strings.TrimSpace(word))
			if value != "" {
				set[value] = struct{}{}
			}
		}
	}
	return set
}
