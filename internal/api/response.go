package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSONResponse writes v as JSON with the given status. Encoding failures
// fall back to a pre-marshaled error body so the client always gets JSON.
func writeJSONResponse(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("writeJSONResponse: failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","message":"internal server error"}`))
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("writeJSONResponse: failed to write response", "error", err)
	}
}
