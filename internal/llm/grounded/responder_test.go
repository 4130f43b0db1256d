package grounded

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dwizi/pmt-assistant/internal/docstore"
	"github.com/dwizi/pmt-assistant/internal/llm"
)

type fakeBase struct {
	lastPrompt llm.Prompt
	calls      int
	reply      string
	err        error
}

func (f *fakeBase) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeRetriever struct {
	results []docstore.SearchResult
	err     error
	queries []string
}

func (f *fakeRetriever) Search(ctx context.Context, query string, k int) ([]docstore.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > k {
		return f.results[:k], nil
	}
	return f.results, nil
}

func TestAnswerEmbedsContextAndQuery(t *testing.T) {
	base := &fakeBase{reply: "  Ship the report first.  "}
	responder := New(base, nil, Config{}, nil)

	reply, err := responder.Answer(context.Background(), "hello", "YOUR ACTIVE TASKS:\n• Finish report")
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if reply != "Ship the report first." {
		t.Fatalf("expected trimmed reply, got %q", reply)
	}
	if !strings.Contains(base.lastPrompt.User, "Finish report") || !strings.Contains(base.lastPrompt.User, "--- QUESTION ---\nhello") {
		t.Fatalf("unexpected prompt: %s", base.lastPrompt.User)
	}
	if !strings.Contains(base.lastPrompt.System, "PMT Pro") {
		t.Fatalf("expected product name in system prompt, got %s", base.lastPrompt.System)
	}
}

func TestAnswerAddsDocumentsForProcessQuestions(t *testing.T) {
	base := &fakeBase{reply: "ok"}
	retriever := &fakeRetriever{results: []docstore.SearchResult{{Title: "PMT_FAQ", Content: "Sprints last two weeks.", Score: 0.8}}}
	responder := New(base, retriever, Config{}, nil)

	if _, err := responder.Answer(context.Background(), "How long is a sprint in our process?", ""); err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if len(retriever.queries) != 1 {
		t.Fatalf("expected one retrieval, got %d", len(retriever.queries))
	}
	if !strings.Contains(base.lastPrompt.User, "--- REFERENCE DOCUMENTS ---") || !strings.Contains(base.lastPrompt.User, "[PMT_FAQ] Sprints last two weeks.") {
		t.Fatalf("expected documents in prompt, got %s", base.lastPrompt.User)
	}
}

func TestAnswerSkipsRetrievalForSmallTalk(t *testing.T) {
	base := &fakeBase{reply: "hi"}
	retriever := &fakeRetriever{}
	responder := New(base, retriever, Config{}, nil)
	if _, err := responder.Answer(context.Background(), "thanks!", ""); err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if len(retriever.queries) != 0 {
		t.Fatalf("expected no retrieval for small talk, got %v", retriever.queries)
	}
}

func TestAnswerIgnoresRetrievalErrors(t *testing.T) {
	base := &fakeBase{reply: "ok"}
	retriever := &fakeRetriever{err: errors.New("boom")}
	responder := New(base, retriever, Config{}, nil)
	if _, err := responder.Answer(context.Background(), "How do I file a status report?", ""); err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if strings.Contains(base.lastPrompt.User, "REFERENCE DOCUMENTS") {
		t.Fatalf("expected no documents after retrieval error: %s", base.lastPrompt.User)
	}
}

func TestAnswerReturnsCompleterError(t *testing.T) {
	base := &fakeBase{err: fmt.Errorf("%w: not ready", llm.ErrUnavailable)}
	responder := New(base, nil, Config{}, nil)
	if _, err := responder.Answer(context.Background(), "anything", ""); !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAnswerFromDocuments(t *testing.T) {
	base := &fakeBase{reply: "Use the reset link."}
	retriever := &fakeRetriever{results: []docstore.SearchResult{
		{Source: "documents/PMT_FAQ.docx", Content: "Reset passwords from the login page."},
		{Source: "documents/Status_15MAY.docx", Content: "Release is on track."},
	}}
	responder := New(base, retriever, Config{}, nil)

	reply, err := responder.AnswerFromDocuments(context.Background(), "How do I reset my password?")
	if err != nil {
		t.Fatalf("answer from documents failed: %v", err)
	}
	if reply != "Use the reset link." {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if !strings.Contains(base.lastPrompt.User, "Use ONLY the below documents") || !strings.Contains(base.lastPrompt.User, "\n---\n") {
		t.Fatalf("unexpected document prompt: %s", base.lastPrompt.User)
	}
}

func TestAnswerFromDocumentsFixedMessages(t *testing.T) {
	ctx := context.Background()

	noDocs := New(&fakeBase{reply: "unused"}, &fakeRetriever{}, Config{}, nil)
	if reply, err := noDocs.AnswerFromDocuments(ctx, "anything"); err != nil || reply != NoDocumentsMessage {
		t.Fatalf("expected no-documents message, got %q err=%v", reply, err)
	}

	failing := &fakeBase{err: errors.New("connection refused")}
	withDocs := New(failing, &fakeRetriever{results: []docstore.SearchResult{{Content: "x"}}}, Config{}, nil)
	if reply, err := withDocs.AnswerFromDocuments(ctx, "anything"); err != nil || reply != LLMFailedMessage {
		t.Fatalf("expected llm-failed message, got %q err=%v", reply, err)
	}

	broken := New(&fakeBase{}, &fakeRetriever{err: errors.New("db locked")}, Config{}, nil)
	if _, err := broken.AnswerFromDocuments(ctx, "anything"); err == nil {
		t.Fatal("expected retrieval error to surface")
	}
}

func TestDecideStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"":                                        StrategyContext,
		"hello":                                   StrategyContext,
		"thank you so much":                       StrategyContext,
		"where is the FAQ":                        StrategyDocuments,
		"what does the latest release include?":   StrategyDocuments,
		"summarize":                               StrategyContext,
		"please write a short standup update now": StrategyContext,
	}
	for query, want := range cases {
		if got := DecideStrategy(query).Strategy; got != want {
			t.Fatalf("DecideStrategy(%q) = %s, want %s", query, got, want)
		}
	}
}

func TestClipToTokenBudget(t *testing.T) {
	long := strings.Repeat("word ", 400)
	clipped := clipToTokenBudget(long, 50)
	if len(clipped) > 210 || !strings.HasSuffix(clipped, "...") {
		t.Fatalf("unexpected clip result (%d bytes): %q", len(clipped), clipped)
	}
	if clipToTokenBudget("short text", 50) != "short text" {
		t.Fatal("short text should not be clipped")
	}
}
