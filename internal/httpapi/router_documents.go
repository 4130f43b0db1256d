package httpapi

import "net/http"

func (r *router) handleReindex(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Indexer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "document indexing is unavailable"})
		return
	}
	report, err := r.deps.Indexer.IndexDir(req.Context(), r.deps.Config.DocumentsDir)
	if err != nil {
		r.logger.Error("reindex failed", "dir", r.deps.Config.DocumentsDir, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	failed := report.Failed
	if failed == nil {
		failed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents":   report.Documents,
		"indexed":     report.Indexed,
		"unchanged":   report.Unchanged,
		"removed":     report.Removed,
		"chunks":      report.Chunks,
		"failed":      failed,
		"duration_ms": report.Duration.Milliseconds(),
	})
}
