package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// writeJSONError writes the same {"error","code"} body the controllers use.
func writeJSONError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  code,
	})
}

// routePattern returns chi's matched pattern, or "unmatched" so unknown paths
// do not become metric labels or span names.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
