package response

import (
	"encoding/json"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/storekit/storefront-backend/internal/i18n"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
	Meta    meta        `json:"meta"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Path    string      `json:"path"`
	Details interface{} `json:"details,omitempty"`
}

type meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Meta: buildMeta(r)})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &apiError{Code: code, Message: message, Path: r.URL.Path, Details: details},
		Meta:    buildMeta(r),
	})
}

// Unauthorized is the single translation point from "no valid authenticated
// identity" to the wire. Every root cause (missing, expired, malformed,
// tampered, vanished subject) produces this same body; the distinction
// lives in audit logs only.
func Unauthorized(w http.ResponseWriter, r *http.Request, messages *i18n.Resolver) {
	Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", localize(r, messages, "error.unauthorized"), nil)
}

// RefreshFailed collapses every refresh-verification failure into one
// re-authenticate outcome.
func RefreshFailed(w http.ResponseWriter, r *http.Request, messages *i18n.Resolver) {
	Error(w, r, http.StatusUnauthorized, "REFRESH_FAILED", localize(r, messages, "error.refresh_failed"), nil)
}

func InvalidCredentials(w http.ResponseWriter, r *http.Request, messages *i18n.Resolver) {
	Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", localize(r, messages, "error.invalid_credentials"), nil)
}

func Internal(w http.ResponseWriter, r *http.Request, messages *i18n.Resolver) {
	Error(w, r, http.StatusInternalServerError, "INTERNAL", localize(r, messages, "error.internal"), nil)
}

func localize(r *http.Request, messages *i18n.Resolver, key string) string {
	if messages == nil {
		return key
	}
	locale := messages.PickLocale(r.Header.Get("Accept-Language"))
	return messages.Resolve(locale, key)
}

// Localize resolves a message key against the request's Accept-Language.
func Localize(r *http.Request, messages *i18n.Resolver, key string) string {
	return localize(r, messages, key)
}

func buildMeta(r *http.Request) meta {
	id := chimiddleware.GetReqID(r.Context())
	if id == "" {
		id = r.Header.Get("X-Request-Id")
	}
	if id == "" {
		id = "req-unknown"
	}
	return meta{RequestID: id, Timestamp: time.Now().UTC()}
}
