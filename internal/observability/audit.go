package observability

import (
	"log/slog"
	"net/http"
)

// Audit emits a structured security-audit log line tied to the request.
// Token failure kinds belong here, never in response bodies.
func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Header.Get("X-Request-Id"),
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}
