package grounded

import (
	"regexp"
	"strings"
)

type Strategy string

const (
	StrategyContext   Strategy = "context"
	StrategyDocuments Strategy = "documents"
)

type Decision struct {
	Strategy Strategy
	Reason   string
}

var nonAlphaNumPattern = regexp.MustCompile(`[^a-z0-9]+`)

// DecideStrategy chooses whether a fallback question should also consult the
// document store. Small talk never does; questions about process, policy or
// product usage do.
func DecideStrategy(query string) Decision {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" {
		return Decision{Strategy: StrategyContext, Reason: "empty"}
	}
	if looksLikeSmallTalk(lower) {
		return Decision{Strategy: StrategyContext, Reason: "small_talk"}
	}
	if containsAny(lower, documentCues) {
		return Decision{Strategy: StrategyDocuments, Reason: "document_cue"}
	}
	if isQuestion(lower) && len(strings.Fields(lower)) >= 4 {
		return Decision{Strategy: StrategyDocuments, Reason: "implicit_question"}
	}
	return Decision{Strategy: StrategyContext, Reason: "no_retrieval_cue"}
}

var documentCues = []string{
	"docs",
	"documentation",
	"faq",
	"policy",
	"process",
	"procedure",
	"guideline",
	"how do i",
	"how to",
	"how can i",
	"status report",
	"reference",
	"manual",
	"pmt pro",
	"feature",
}

func isQuestion(lower string) bool {
	if strings.Contains(lower, "?") {
		return true
	}
	for _, prefix := range []string{"how ", "what ", "why ", "when ", "where ", "which ", "who ", "can ", "could ", "does ", "is ", "are "} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func looksLikeSmallTalk(lower string) bool {
	compact := normalizeCueText(lower)
	if compact == "" {
		return true
	}
	phrases := []string{
		"hi",
		"hello",
		"hey",
		"thanks",
		"thank you",
		"ok",
		"okay",
		"cool",
		"good morning",
		"good afternoon",
		"how are you",
		"what's up",
		"whats up",
	}
	framed := " " + compact + " "
	for _, phrase := range phrases {
		if strings.Contains(framed, " "+normalizeCueText(phrase)+" ") && len(strings.Fields(compact)) <= 4 {
			return true
		}
	}
	words := strings.Fields(compact)
	return len(words) <= 2 && !strings.Contains(lower, "?")
}

func normalizeCueText(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	if lower == "" {
		return ""
	}
	lower = nonAlphaNumPattern.ReplaceAllString(lower, " ")
	return strings.Join(strings.Fields(lower), " ")
}

func containsAny(input string, values []string) bool {
	for _, value := range values {
		if value != "" && strings.Contains(input, value) {
			return true
		}
	}
	return false
}
