package httpapi

import "net/http"

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once the document store answers. An unreachable
// model server does not fail readiness; template answers still work.
func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	notReady := func(reason string) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": reason})
	}
	if r.deps.Store == nil {
		notReady("document store is unavailable")
		return
	}
	if err := r.deps.Store.Ping(req.Context()); err != nil {
		r.logger.Warn("readiness check failed", "error", err)
		notReady(err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if r.deps.Heartbeat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat is disabled",
		})
		return
	}
	writeJSON(w, http.StatusOK, r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter))
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	payload := map[string]any{
		"name":        "pmt-assistant",
		"version":     r.deps.Version,
		"environment": r.deps.Config.Environment,
		"provider":    r.deps.Config.LLMProvider,
		"model":       r.deps.Config.LLMModel,
		"embed_model": r.deps.Config.EmbedModel,
	}
	if r.deps.Store != nil {
		documents, chunks, err := r.deps.Store.Stats(req.Context())
		if err != nil {
			r.logger.Warn("document stats unavailable", "error", err)
		} else {
			payload["documents"] = documents
			payload["chunks"] = chunks
		}
	}
	writeJSON(w, http.StatusOK, payload)
}
