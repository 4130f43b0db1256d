package pmcontext

import (
	"testing"
	"time"
)

func TestMessageExtractorRules(t *testing.T) {
	extractor := messageExtractor{now: func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }}
	cases := []struct {
		line    string
		rule    string
		sender  string
		content string
		count   int
		recency Recency
	}{
		{line: "• From Alice (2 messages) - Latest (2026-10-19 08:00): ping", rule: "grouped", sender: "Alice", content: "ping", count: 2, recency: RecencyToday},
		{line: "• From Bob: lunch? (2026-10-18 12:30)", rule: "from_with_time", sender: "Bob", content: "lunch?", count: 1, recency: RecencyYesterday},
		{line: "• From Carol: notes (draft)", rule: "from", sender: "Carol", content: "notes (draft)", count: 1, recency: RecencyThisWeek},
		{line: "• @Dave: merged (2026-09-01)", rule: "sender", sender: "Dave", content: "merged", count: 1, recency: RecencyOlder},
		{line: "• just a loose note", rule: "fallback", sender: "Unknown", content: "just a loose note", count: 1, recency: RecencyThisWeek},
	}
	for _, tc := range cases {
		message, rule, ok := extractor.extract(tc.line, lineState{Section: SectionMessages})
		if !ok {
			t.Fatalf("expected a record for %q", tc.line)
		}
		if rule != tc.rule {
			t.Fatalf("line %q matched %s, want %s", tc.line, rule, tc.rule)
		}
		if message.Sender != tc.sender || message.Content != tc.content || message.Count != tc.count || message.Recency != tc.recency {
			t.Fatalf("unexpected message for %q: %+v", tc.line, message)
		}
	}
}

func TestMessageExtractorRecencyMarkers(t *testing.T) {
	extractor := messageExtractor{now: func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }}

	message, _, _ := extractor.extract("• [YESTERDAY] From Erin: retro notes", lineState{Section: SectionMessages, RecencyHint: RecencyToday})
	if message.Recency != RecencyYesterday || message.Sender != "Erin" {
		t.Fatalf("bracketed marker should win over the hint: %+v", message)
	}

	message, _, _ = extractor.extract("• TODAY: From Erin: standup", lineState{Section: SectionMessages})
	if message.Recency != RecencyToday || message.Content != "standup" {
		t.Fatalf("inline marker not applied: %+v", message)
	}

	message, _, _ = extractor.extract("• From Finn: hi", lineState{Section: SectionMessages, RecencyHint: RecencyYesterday})
	if message.Recency != RecencyYesterday {
		t.Fatalf("expected sub-header hint, got %s", message.Recency)
	}
}

func TestMessageExtractorRejectsEmptyLine(t *testing.T) {
	extractor := messageExtractor{now: time.Now}
	if _, _, ok := extractor.extract("  -  ", lineState{Section: SectionMessages}); ok {
		t.Fatal("expected no record for an empty bullet")
	}
}
