package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dwizi/pmt-assistant/internal/intent"
	"github.com/dwizi/pmt-assistant/internal/pmcontext"
)

const workspaceContext = `YOUR ACTIVE TASKS:
OVERDUE:
• [OVERDUE] Finish report (Priority: High, Status: Active, Due: 2024-01-01)
DUE TODAY:
• [DUE TODAY] Review PR (Priority: Medium, Status: In Progress, Due: 2026-10-19, Created: 2026-10-01)
UPCOMING:
• Plan sprint | Priority: Low | Due: 2026-10-25

TECH TEAM - ACTIVE TASKS:
👤 Alice:
  • [OVERDUE] Fix login bug (Priority: High, Status: Active, Due: 2026-10-10)
👤 Bob:
  • Write API docs - due 2026-10-22

Recent Messages:
TODAY:
• From Alice (3 messages) - Latest (2026-10-19 09:12): Can you review my PR?
YESTERDAY:
• From Bob: Standup moved to 10am (2026-10-18 10:00)
• Carol: shared the design doc 📎 (2026-10-15)
`

type fakeFallback struct {
	reply string
	err   error
	calls int
}

func (f *fakeFallback) Answer(ctx context.Context, query, rawContext string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func newTestService(fallback Fallback) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	parser := pmcontext.NewParser(logger, pmcontext.WithClock(func() time.Time { return now }))
	return New(parser, nil, fallback, logger)
}

func ask(t *testing.T, service *Service, query, raw string) Response {
	t.Helper()
	return service.Answer(context.Background(), Request{Query: query, Context: raw})
}

func TestAnswerListsOverdueBeforeToday(t *testing.T) {
	response := ask(t, newTestService(nil), "What should I complete today?", workspaceContext)
	if response.Intent != intent.TaskQuery || response.UsedFallback {
		t.Fatalf("unexpected response: %+v", response)
	}
	text := response.Text
	overdueAt := strings.Index(text, "Finish report")
	todayAt := strings.Index(text, "Review PR")
	upcomingAt := strings.Index(text, "Plan sprint")
	if overdueAt < 0 || todayAt < 0 || upcomingAt < 0 || !(overdueAt < todayAt && todayAt < upcomingAt) {
		t.Fatalf("expected overdue, today, upcoming order:\n%s", text)
	}
	if !strings.Contains(text, "Finish report (Priority: High") || !strings.Contains(text, "days overdue") {
		t.Fatalf("expected overdue details:\n%s", text)
	}
	if !strings.Contains(text, "secondary") {
		t.Fatalf("expected today's work to be marked secondary:\n%s", text)
	}
}

func TestAnswerOverdueLineWithoutHeader(t *testing.T) {
	response := ask(t, newTestService(nil), "What should I complete today?",
		"• [OVERDUE] Finish report (Priority: High, Status: Active, Due: 2024-01-01)")
	if response.Intent != intent.TaskQuery || response.UsedFallback {
		t.Fatalf("unexpected response: %+v", response)
	}
	if !strings.Contains(response.Text, "Overdue tasks (1)") || !strings.Contains(response.Text, "Finish report (Priority: High") {
		t.Fatalf("expected Finish report listed as overdue:\n%s", response.Text)
	}
}

func TestAnswerTeamTasksSurviveProseLines(t *testing.T) {
	fallback := &fakeFallback{reply: "model"}
	raw := "TECH TEAM - ACTIVE TASKS:\n👤 Bob:\nNo open tasks\n• Write API docs - due 2099-01-01"
	response := ask(t, newTestService(fallback), "Show all team tasks", raw)
	if response.Intent != intent.TeamTaskQuery || response.UsedFallback || fallback.calls != 0 {
		t.Fatalf("unexpected response: %+v", response)
	}
	if !strings.Contains(response.Text, "**Bob** (1)") || !strings.Contains(response.Text, "Write API docs") {
		t.Fatalf("expected Bob's task in the team summary:\n%s", response.Text)
	}
}

func TestAnswerTodayOnlyIsNotSecondary(t *testing.T) {
	raw := "YOUR ACTIVE TASKS:\n• [DUE TODAY] Review PR (Priority: Medium, Due: 2026-10-19)\n"
	response := ask(t, newTestService(nil), "What should I complete today?", raw)
	if strings.Contains(response.Text, "secondary") || !strings.Contains(response.Text, "Focus on \"Review PR\" today.") {
		t.Fatalf("unexpected text:\n%s", response.Text)
	}
}

func TestAnswerEmptyContextHasNoTasks(t *testing.T) {
	fallback := &fakeFallback{reply: "unused"}
	response := ask(t, newTestService(fallback), "What should I complete today?", "")
	if response.Text != NoTasksMessage {
		t.Fatalf("expected no-tasks message, got %q", response.Text)
	}
	if fallback.calls != 0 {
		t.Fatal("task queries must not consult the fallback")
	}
}

func TestAnswerOverdueWithUnparseableDate(t *testing.T) {
	raw := "YOUR ACTIVE TASKS:\n• [OVERDUE] Renew licence (Due: sometime soon)\n"
	response := ask(t, newTestService(nil), "What should I complete today?", raw)
	if !strings.Contains(response.Text, "overdue (duration unknown)") {
		t.Fatalf("expected unknown duration:\n%s", response.Text)
	}
}

func TestAnswerMessagesFromPersonToday(t *testing.T) {
	service := newTestService(nil)

	response := ask(t, service, "Did I get any message from Alice today?", workspaceContext)
	if response.Intent != intent.MessageQuery {
		t.Fatalf("expected message_query, got %s", response.Intent)
	}
	if !strings.Contains(response.Text, "Can you review my PR?") || strings.Contains(response.Text, "Standup") {
		t.Fatalf("expected only Alice's message:\n%s", response.Text)
	}

	response = ask(t, service, "Did I get any message from Bob today?", workspaceContext)
	if response.Text != "📭 No messages from Bob today." {
		t.Fatalf("unexpected zero-match text: %q", response.Text)
	}

	response = ask(t, service, "Did I get any message from Alice today?", "YOUR ACTIVE TASKS:\n• Plan sprint\n")
	if response.Text != "📭 No messages from Alice today." {
		t.Fatalf("unexpected text without messages: %q", response.Text)
	}
}

func TestAnswerMessageSummary(t *testing.T) {
	response := ask(t, newTestService(nil), "Who messaged me?", workspaceContext)
	for _, want := range []string{"You have 5 messages", "**Today (3)**", "**Yesterday (1)**", "Most active: Alice (3)"} {
		if !strings.Contains(response.Text, want) {
			t.Fatalf("expected %q in summary:\n%s", want, response.Text)
		}
	}

	response = ask(t, newTestService(nil), "Who messaged me?", "")
	if response.Text != NoMessagesMessage {
		t.Fatalf("expected no-messages text, got %q", response.Text)
	}
}

func TestAnswerDatedMessages(t *testing.T) {
	service := newTestService(nil)
	response := ask(t, service, "Show me messages from yesterday", workspaceContext)
	if response.Intent != intent.DateMessageQuery {
		t.Fatalf("expected date_message_query, got %s", response.Intent)
	}
	if !strings.Contains(response.Text, "Messages yesterday (1)") || !strings.Contains(response.Text, "Bob: Standup moved to 10am") {
		t.Fatalf("unexpected dated messages:\n%s", response.Text)
	}

	response = ask(t, service, "Any messages on 2026-10-01?", workspaceContext)
	if response.Text != "📭 No messages on 2026-10-01." {
		t.Fatalf("unexpected empty period text: %q", response.Text)
	}
}

func TestAnswerTeamTasks(t *testing.T) {
	service := newTestService(nil)
	response := ask(t, service, "Show all team tasks", workspaceContext)
	if response.Intent != intent.TeamTaskQuery || response.UsedFallback {
		t.Fatalf("unexpected response: %+v", response)
	}
	aliceAt := strings.Index(response.Text, "**Alice** (1)")
	bobAt := strings.Index(response.Text, "**Bob** (1)")
	if aliceAt < 0 || bobAt < aliceAt {
		t.Fatalf("expected members in order:\n%s", response.Text)
	}
	if !strings.Contains(response.Text, "1 overdue task across the team: Alice (1)") {
		t.Fatalf("expected overdue recommendation:\n%s", response.Text)
	}

	response = ask(t, service, "What are Alice's tasks?", workspaceContext)
	if !strings.Contains(response.Text, "Alice's tasks (1)") || strings.Contains(response.Text, "Write API docs") {
		t.Fatalf("expected Alice's tasks only:\n%s", response.Text)
	}
}

func TestAnswerTeamTasksWithoutDataFallsBack(t *testing.T) {
	fallback := &fakeFallback{reply: "No team data was shared."}
	response := ask(t, newTestService(fallback), "Show all team tasks", "YOUR ACTIVE TASKS:\n• Plan sprint\n")
	if !response.UsedFallback || response.Text != "No team data was shared." {
		t.Fatalf("expected fallback answer, got %+v", response)
	}
}

func TestAnswerFieldQueries(t *testing.T) {
	service := newTestService(nil)
	response := ask(t, service, "What is the due date of Finish report?", workspaceContext)
	if response.Intent != intent.FieldSpecificQuery || !strings.Contains(response.Text, "**Finish report** is due 2024-01-01") {
		t.Fatalf("unexpected field answer: %+v", response)
	}

	response = ask(t, service, "When was Review PR created?", workspaceContext)
	if !strings.Contains(response.Text, "created on 2026-10-01") {
		t.Fatalf("unexpected created answer: %q", response.Text)
	}

	response = ask(t, service, "What is my task's due date?", workspaceContext)
	for _, want := range []string{"Due dates of your tasks", "Finish report: 2024-01-01", "Plan sprint: 2026-10-25"} {
		if !strings.Contains(response.Text, want) {
			t.Fatalf("expected %q:\n%s", want, response.Text)
		}
	}
}

func TestAnswerFieldForUnknownTaskFallsBack(t *testing.T) {
	fallback := &fakeFallback{reply: "I can't find that task."}
	response := ask(t, newTestService(fallback), "What is the due date of Launch rocket?", workspaceContext)
	if !response.UsedFallback || fallback.calls != 1 {
		t.Fatalf("expected fallback, got %+v", response)
	}
}

func TestAnswerKanban(t *testing.T) {
	response := ask(t, newTestService(nil), "Show the kanban board", workspaceContext)
	text := response.Text
	pendingAt := strings.Index(text, "**Pending (1)**")
	activeAt := strings.Index(text, "**Active (")
	progressAt := strings.Index(text, "**In Progress (1)**")
	if pendingAt < 0 || activeAt < pendingAt || progressAt < activeAt {
		t.Fatalf("unexpected column order:\n%s", text)
	}
	if !strings.Contains(text, "Fix login bug (Alice, Priority: High, overdue)") {
		t.Fatalf("expected owner details:\n%s", text)
	}
}

func TestAnswerAttachments(t *testing.T) {
	service := newTestService(nil)
	response := ask(t, service, "Any attachments shared today?", workspaceContext)
	if !strings.Contains(response.Text, "Messages with attachments (1)") || !strings.Contains(response.Text, "Carol: shared the design doc") {
		t.Fatalf("unexpected attachments answer:\n%s", response.Text)
	}

	raw := "Recent Messages:\n• From Bob: lunch?\n"
	response = ask(t, service, "Any attachments shared today?", raw)
	if response.Text != "📎 No attachments found in your messages." {
		t.Fatalf("unexpected text: %q", response.Text)
	}
}

func TestAnswerGeneralUsesFallback(t *testing.T) {
	fallback := &fakeFallback{reply: "  Here is a joke.  "}
	response := ask(t, newTestService(fallback), "Tell me a joke", workspaceContext)
	if response.Intent != intent.GeneralQuery || !response.UsedFallback || response.Text != "Here is a joke." {
		t.Fatalf("unexpected response: %+v", response)
	}
}

func TestAnswerFallbackFailuresApologize(t *testing.T) {
	cases := map[string]Fallback{
		"error": &fakeFallback{err: errors.New("connection refused")},
		"empty": &fakeFallback{reply: "   "},
		"nil":   nil,
	}
	for name, fallback := range cases {
		response := ask(t, newTestService(fallback), "Tell me a joke", "")
		if response.Text != ApologyMessage {
			t.Fatalf("%s: expected apology, got %q", name, response.Text)
		}
	}
}

func TestAnswerMergesRequestMembers(t *testing.T) {
	service := newTestService(nil)
	raw := "Recent Messages:\n• From Dana Scully: report is filed\n"
	response := service.Answer(context.Background(), Request{
		Query:       "Any new messages from Dana?",
		Context:     raw,
		TeamMembers: []string{"Dana Scully"},
	})
	if !strings.Contains(response.Text, "Messages from Dana Scully (1)") {
		t.Fatalf("expected match on first name:\n%s", response.Text)
	}
}

func TestMergeNames(t *testing.T) {
	got := mergeNames([]string{"bob", " Alice "}, []string{"Bob", "", "Carol"})
	want := []string{"Alice", "Carol", "bob"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("mergeNames = %v, want %v", got, want)
	}
}
