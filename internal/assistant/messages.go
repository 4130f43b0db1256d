package assistant

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dwizi/pmt-assistant/internal/intent"
	"github.com/dwizi/pmt-assistant/internal/pmcontext"
)

const (
	NoMessagesMessage = "📭 You have no messages."
	maxListedMessages = 5
	maxTopSenders     = 3
)

func renderMessages(view answerView) string {
	messages := view.data.Messages.All()
	person, hasPerson := intent.MentionedMember(view.query, messageCandidates(view))
	if hasPerson {
		messages = filterBySender(messages, person)
	}
	window := ""
	switch {
	case strings.Contains(view.lower, "yesterday"):
		window = "yesterday"
		messages = filterByRecency(messages, pmcontext.RecencyYesterday)
	case strings.Contains(view.lower, "today"):
		window = "today"
		messages = filterByRecency(messages, pmcontext.RecencyToday)
	}

	if len(messages) == 0 {
		switch {
		case hasPerson && window != "":
			return fmt.Sprintf("📭 No messages from %s %s.", person, window)
		case hasPerson:
			return fmt.Sprintf("📭 No messages from %s.", person)
		case window != "":
			return fmt.Sprintf("📭 You have no messages %s.", window)
		default:
			return NoMessagesMessage
		}
	}

	if hasPerson {
		title := fmt.Sprintf("💬 **Messages from %s (%d)**", person, countMessages(messages))
		if window != "" {
			title = fmt.Sprintf("💬 **Messages from %s %s (%d)**", person, window, countMessages(messages))
		}
		return strings.Join(append([]string{title}, listMessages(messages, false)...), "\n")
	}
	if window != "" {
		title := fmt.Sprintf("💬 **Messages %s (%d)**", window, countMessages(messages))
		lines := append([]string{title}, listMessages(messages, true)...)
		return strings.Join(lines, "\n")
	}
	return summarizeMessages(view.data.Messages)
}

func summarizeMessages(buckets pmcontext.MessageBuckets) string {
	lines := []string{fmt.Sprintf("💬 **You have %d %s**", countMessages(buckets.All()), plural(countMessages(buckets.All()), "message", "messages"))}
	groups := []struct {
		label    string
		messages []pmcontext.MessageRecord
	}{
		{label: "Today", messages: buckets.Today},
		{label: "Yesterday", messages: buckets.Yesterday},
		{label: "Earlier this week", messages: buckets.ThisWeek},
		{label: "Older", messages: buckets.Older},
	}
	for _, group := range groups {
		if len(group.messages) == 0 {
			continue
		}
		lines = append(lines, "", fmt.Sprintf("**%s (%d)**", group.label, countMessages(group.messages)))
		lines = append(lines, listMessages(group.messages, true)...)
	}
	if top := topSenders(buckets); len(top) > 0 {
		lines = append(lines, "", "👥 Most active: "+strings.Join(top, ", "))
	}
	return strings.Join(lines, "\n")
}

func renderDatedMessages(view answerView) string {
	period, ok := intent.ResolvePeriod(view.query, view.data.Today)
	if !ok {
		return renderMessages(view)
	}
	messages := []pmcontext.MessageRecord{}
	for _, message := range view.data.Messages.All() {
		if messageInPeriod(message, period, view.data) {
			messages = append(messages, message)
		}
	}
	person, hasPerson := intent.MentionedMember(view.query, messageCandidates(view))
	if hasPerson {
		messages = filterBySender(messages, person)
	}
	if len(messages) == 0 {
		if hasPerson {
			return fmt.Sprintf("📭 No messages from %s %s.", person, period.Label)
		}
		return fmt.Sprintf("📭 No messages %s.", period.Label)
	}
	title := fmt.Sprintf("💬 **Messages %s (%d)**", period.Label, countMessages(messages))
	if hasPerson {
		title = fmt.Sprintf("💬 **Messages from %s %s (%d)**", person, period.Label, countMessages(messages))
	}
	return strings.Join(append([]string{title}, listMessages(messages, !hasPerson)...), "\n")
}

// messageInPeriod uses a parseable timestamp when there is one and falls back
// to the recency bucket the parser assigned.
func messageInPeriod(message pmcontext.MessageRecord, period intent.Period, data pmcontext.Aggregated) bool {
	if at, ok := pmcontext.ParseDate(message.Timestamp, data.Today); ok {
		return period.Contains(at)
	}
	switch period.Kind {
	case intent.PeriodToday:
		return message.Recency == pmcontext.RecencyToday
	case intent.PeriodYesterday:
		return message.Recency == pmcontext.RecencyYesterday
	case intent.PeriodThisWeek:
		return message.Recency != pmcontext.RecencyOlder
	case intent.PeriodDay:
		today, _ := pmcontext.ParseDate("today", data.Today)
		switch {
		case period.Start.Equal(today):
			return message.Recency == pmcontext.RecencyToday
		case period.Start.Equal(today.AddDate(0, 0, -1)):
			return message.Recency == pmcontext.RecencyYesterday
		}
	}
	return false
}

var attachmentPattern = regexp.MustCompile(`(?i)📎|\battach(ed|ment|ments)?\b|\.(pdf|docx?|xlsx?|pptx?|csv|png|jpe?g|gif|zip|txt)\b`)

func renderAttachments(view answerView) (string, bool) {
	messages := view.data.Messages.All()
	if len(messages) == 0 {
		return "", false
	}
	if person, ok := intent.MentionedMember(view.query, messageCandidates(view)); ok {
		messages = filterBySender(messages, person)
	}
	found := []pmcontext.MessageRecord{}
	for _, message := range messages {
		if attachmentPattern.MatchString(message.Content) {
			found = append(found, message)
		}
	}
	if len(found) == 0 {
		return "📎 No attachments found in your messages.", true
	}
	lines := []string{fmt.Sprintf("📎 **Messages with attachments (%d)**", len(found))}
	lines = append(lines, listMessages(found, true)...)
	return strings.Join(lines, "\n"), true
}

func messageCandidates(view answerView) []string {
	senders := make([]string, 0, len(view.data.Messages.BySender))
	for sender := range view.data.Messages.BySender {
		senders = append(senders, sender)
	}
	return mergeNames(view.members, senders)
}

func filterBySender(messages []pmcontext.MessageRecord, person string) []pmcontext.MessageRecord {
	out := []pmcontext.MessageRecord{}
	for _, message := range messages {
		if namesMatch(message.Sender, person) {
			out = append(out, message)
		}
	}
	return out
}

func filterByRecency(messages []pmcontext.MessageRecord, recency pmcontext.Recency) []pmcontext.MessageRecord {
	out := []pmcontext.MessageRecord{}
	for _, message := range messages {
		if message.Recency == recency {
			out = append(out, message)
		}
	}
	return out
}

// namesMatch treats "Alice" and "Alice Smith" as the same person.
func namesMatch(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	if strings.EqualFold(a, b) {
		return true
	}
	fieldsA, fieldsB := strings.Fields(a), strings.Fields(b)
	if len(fieldsA) == 1 || len(fieldsB) == 1 {
		return strings.EqualFold(fieldsA[0], fieldsB[0])
	}
	return false
}

func listMessages(messages []pmcontext.MessageRecord, withSender bool) []string {
	lines := []string{}
	for index, message := range messages {
		if index == maxListedMessages {
			lines = append(lines, fmt.Sprintf("• ...and %d more", len(messages)-maxListedMessages))
			break
		}
		line := "• "
		if withSender {
			line += message.Sender + ": "
		}
		line += message.Content
		if message.Count > 1 {
			line += fmt.Sprintf(" (+%d more)", message.Count-1)
		}
		if message.Timestamp != "" {
			line += " (" + message.Timestamp + ")"
		}
		lines = append(lines, line)
	}
	return lines
}

func countMessages(messages []pmcontext.MessageRecord) int {
	total := 0
	for _, message := range messages {
		total += message.Count
	}
	return total
}

func topSenders(buckets pmcontext.MessageBuckets) []string {
	type tally struct {
		sender string
		count  int
	}
	tallies := []tally{}
	for sender, messages := range buckets.BySender {
		tallies = append(tallies, tally{sender: sender, count: countMessages(messages)})
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].count != tallies[j].count {
			return tallies[i].count > tallies[j].count
		}
		return tallies[i].sender < tallies[j].sender
	})
	out := []string{}
	for index, item := range tallies {
		if index == maxTopSenders {
			break
		}
		out = append(out, fmt.Sprintf("%s (%d)", item.sender, item.count))
	}
	return out
}
