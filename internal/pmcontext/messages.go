package pmcontext

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type messageFields struct {
	Sender    string
	Content   string
	Timestamp string
	Count     int
}

type messageRule struct {
	name  string
	match func(text string) (messageFields, bool)
}

var (
	groupedMessagePattern  = regexp.MustCompile(`(?i)^from\s+(.+?)\s*\((\d+)\s+messages?\)\s*.*?latest\s*\(([^)]*)\)\s*:\s*(.+)$`)
	fromWithTimePattern    = regexp.MustCompile(`(?i)^from\s+([^:]+?)\s*:\s*(.+?)\s*\(([^()]*)\)\s*$`)
	fromMessagePattern     = regexp.MustCompile(`(?i)^from\s+([^:]+?)\s*:\s*(.+)$`)
	senderMessagePattern   = regexp.MustCompile(`^([^:\d][^:]{0,59}?)\s*:\s*(.+)$`)
	recencyMarkerPattern   = regexp.MustCompile(`\b(TODAY|YESTERDAY|THIS WEEK):\s*`)
	bracketedMarkerPattern = regexp.MustCompile(`^\[(TODAY|YESTERDAY|THIS WEEK)\]\s*`)
)

var messageRules = []messageRule{
	{name: "grouped", match: func(text string) (messageFields, bool) {
		groups := groupedMessagePattern.FindStringSubmatch(text)
		if groups == nil {
			return messageFields{}, false
		}
		count, err := strconv.Atoi(groups[2])
		if err != nil {
			count = 1
		}
		return messageFields{Sender: groups[1], Count: count, Timestamp: groups[3], Content: groups[4]}, true
	}},
	{name: "from_with_time", match: func(text string) (messageFields, bool) {
		groups := fromWithTimePattern.FindStringSubmatch(text)
		if groups == nil || !looksLikeTimestamp(groups[3]) {
			return messageFields{}, false
		}
		return messageFields{Sender: groups[1], Content: groups[2], Timestamp: groups[3]}, true
	}},
	{name: "from", match: func(text string) (messageFields, bool) {
		groups := fromMessagePattern.FindStringSubmatch(text)
		if groups == nil {
			return messageFields{}, false
		}
		return messageFields{Sender: groups[1], Content: groups[2]}, true
	}},
	{name: "sender", match: func(text string) (messageFields, bool) {
		groups := senderMessagePattern.FindStringSubmatch(text)
		if groups == nil {
			return messageFields{}, false
		}
		content, timestamp := splitTrailingTimestamp(groups[2])
		return messageFields{Sender: groups[1], Content: content, Timestamp: timestamp}, true
	}},
}

var trailingTimestampPattern = regexp.MustCompile(`^(.+?)\s*\(([^()]*)\)\s*$`)

func splitTrailingTimestamp(content string) (string, string) {
	groups := trailingTimestampPattern.FindStringSubmatch(content)
	if groups == nil || !looksLikeTimestamp(groups[2]) {
		return content, ""
	}
	return groups[1], groups[2]
}

var timestampHintPattern = regexp.MustCompile(`(?i)\d{4}-\d{2}-\d{2}|\d{1,2}:\d{2}|\b(today|yesterday|ago|am|pm|mon|tue|wed|thu|fri|sat|sun)\b`)

func looksLikeTimestamp(value string) bool {
	return timestampHintPattern.MatchString(value)
}

type messageExtractor struct {
	now func() time.Time
}

func (e messageExtractor) extract(line string, state lineState) (MessageRecord, string, bool) {
	text := stripBullet(line)
	if text == "" {
		return MessageRecord{}, "", false
	}
	marker := ""
	if groups := bracketedMarkerPattern.FindStringSubmatch(text); groups != nil {
		marker = groups[1]
		text = strings.TrimSpace(text[len(groups[0]):])
	} else if groups := recencyMarkerPattern.FindStringSubmatch(text); groups != nil {
		marker = groups[1]
		text = strings.TrimSpace(recencyMarkerPattern.ReplaceAllString(text, ""))
	}
	if text == "" {
		return MessageRecord{}, "", false
	}

	fields := messageFields{Sender: "Unknown", Content: text}
	ruleName := "fallback"
	for _, rule := range messageRules {
		matched, ok := rule.match(text)
		if !ok || strings.TrimSpace(matched.Sender) == "" {
			continue
		}
		fields = matched
		ruleName = rule.name
		break
	}
	if fields.Count < 1 {
		fields.Count = 1
	}
	message := MessageRecord{
		Sender:    cleanSender(fields.Sender),
		Content:   strings.TrimSpace(fields.Content),
		Timestamp: strings.TrimSpace(fields.Timestamp),
		Count:     fields.Count,
	}
	message.Recency = e.recency(marker, message.Timestamp, state)
	return message, ruleName, true
}

// recency prefers a literal marker in the line, then an ISO date in the
// timestamp, then the enclosing sub-header, and finally "this week".
func (e messageExtractor) recency(marker, timestamp string, state lineState) Recency {
	switch marker {
	case "TODAY":
		return RecencyToday
	case "YESTERDAY":
		return RecencyYesterday
	case "THIS WEEK":
		return RecencyThisWeek
	}
	if recency, ok := recencyForTimestamp(timestamp, e.now()); ok {
		return recency
	}
	lowerTimestamp := strings.ToLower(timestamp)
	if strings.Contains(lowerTimestamp, "yesterday") {
		return RecencyYesterday
	}
	if strings.Contains(lowerTimestamp, "today") {
		return RecencyToday
	}
	if state.RecencyHint != "" {
		return state.RecencyHint
	}
	return RecencyThisWeek
}

func cleanSender(sender string) string {
	value := strings.TrimSpace(sender)
	value = strings.TrimPrefix(value, "@")
	value = strings.Trim(value, `*"'`)
	return strings.TrimSpace(value)
}
