package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dwizi/pmt-assistant/internal/assistant"
)

const internalErrorResult = "Internal error"

type queryRequest struct {
	Query       string   `json:"query"`
	Context     string   `json:"context"`
	TeamMembers []string `json:"team_members"`
}

type queryResponse struct {
	Response  string `json:"response"`
	Intent    string `json:"intent"`
	RequestID string `json:"request_id"`
}

func (q queryRequest) toAssistant() assistant.Request {
	return assistant.Request{
		Query:       strings.TrimSpace(q.Query),
		Context:     q.Context,
		TeamMembers: q.TeamMembers,
	}
}

func (r *router) handleQuery(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Assistant == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "assistant is unavailable"})
		return
	}

	var payload queryRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	answer := r.deps.Assistant.Answer(req.Context(), payload.toAssistant())
	writeJSON(w, http.StatusOK, queryResponse{
		Response:  answer.Text,
		Intent:    string(answer.Intent),
		RequestID: requestIDFrom(req.Context()),
	})
}

type insightRequest struct {
	Prompt string `json:"prompt"`
}

// handleGenerateInsight keeps the frontend contract: failures still answer
// 200 with a fixed result string.
func (r *router) handleGenerateInsight(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var payload insightRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		r.logger.Warn("insight request rejected", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"result": internalErrorResult})
		return
	}
	if r.deps.Documents == nil {
		writeJSON(w, http.StatusOK, map[string]string{"result": internalErrorResult})
		return
	}
	result, err := r.deps.Documents.AnswerFromDocuments(req.Context(), payload.Prompt)
	if err != nil {
		r.logger.Error("insight request failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"result": internalErrorResult})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

type runRequest struct {
	Input struct {
		Prompt string `json:"prompt"`
	} `json:"input"`
}

func (r *router) handleRun(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var payload runRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if r.deps.Documents == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "document answers are unavailable"})
		return
	}
	output, err := r.deps.Documents.AnswerFromDocuments(req.Context(), payload.Input.Prompt)
	if err != nil {
		r.logger.Error("run request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": output})
}
