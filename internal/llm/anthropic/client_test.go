package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dwizi/pmt-assistant/internal/llm"
)

func TestCompleteJoinsTextBlocks(t *testing.T) {
	var receivedKey, receivedSystem string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		receivedKey = req.Header.Get("x-api-key")
		var body struct {
			System string `json:"system"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		receivedSystem = body.System
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "first"},
				{"type": "tool_use"},
				{"type": "text", "text": "second"},
			},
		})
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", BaseURL: server.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	reply, err := client.Complete(context.Background(), llm.Prompt{System: "be brief", User: "hi"})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if reply != "first\n\nsecond" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if receivedKey != "k" || receivedSystem != "be brief" {
		t.Fatalf("unexpected request: key=%s system=%s", receivedKey, receivedSystem)
	}
}

func TestCompleteWithoutKeyIsUnavailable(t *testing.T) {
	client := New(Config{}, nil)
	if _, err := client.Complete(context.Background(), llm.Prompt{User: "hi"}); !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCompleteMapsOverloadToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(529)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]string{"type": "overloaded_error", "message": "Overloaded"},
		})
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", BaseURL: server.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := client.Complete(context.Background(), llm.Prompt{User: "hi"}); !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCompleteReportsBadRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]string{"type": "invalid_request_error", "message": "max_tokens: too large"},
		})
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", BaseURL: server.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := client.Complete(context.Background(), llm.Prompt{User: "hi"})
	if err == nil || errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected a plain request error, got %v", err)
	}
	if !strings.Contains(err.Error(), "max_tokens: too large") {
		t.Fatalf("expected api message in error, got %v", err)
	}
}

func TestCompleteSendsTemperatureOnlyWhenSet(t *testing.T) {
	var bodies []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		bodies = append(bodies, body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": "ok"}},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, temperature := range []float64{0, 0.3} {
		client := New(Config{APIKey: "k", BaseURL: server.URL, Temperature: temperature}, logger)
		if _, err := client.Complete(context.Background(), llm.Prompt{User: "hi"}); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	if _, ok := bodies[0]["temperature"]; ok {
		t.Fatalf("expected no temperature by default, got %v", bodies[0])
	}
	if bodies[1]["temperature"] != 0.3 {
		t.Fatalf("expected temperature 0.3, got %v", bodies[1]["temperature"])
	}
	if _, ok := bodies[0]["system"]; ok {
		t.Fatalf("expected system to be omitted when empty, got %v", bodies[0])
	}
}

func TestJoinSystem(t *testing.T) {
	cases := []struct{ base, extra, want string }{
		{"", "", ""},
		{"base", "", "base"},
		{"", " extra ", "extra"},
		{"base", "extra", "base\n\nextra"},
	}
	for _, tc := range cases {
		if got := joinSystem(tc.base, tc.extra); got != tc.want {
			t.Fatalf("joinSystem(%q, %q) = %q, want %q", tc.base, tc.extra, got, tc.want)
		}
	}
}
