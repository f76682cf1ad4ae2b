package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Failure taxonomy. Every kind is distinct here for audit logging; the HTTP
// boundary collapses them into the uniform unauthorized/refresh-failed
// responses.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrRefreshNotFound = errors.New("refresh token not found")
	ErrRefreshRevoked  = errors.New("refresh token revoked")
	ErrRefreshExpired  = errors.New("refresh token expired")

	// Reuse of an already-rotated token. Satisfies errors.Is(err,
	// ErrRefreshRevoked) so callers that only care about usability need one
	// check.
	ErrRefreshReuseDetected = fmt.Errorf("%w: reuse detected", ErrRefreshRevoked)

	// The subject behind a syntactically valid token no longer exists.
	ErrSubjectVanished = errors.New("subject no longer exists")
)

// RegistrationError carries per-field failures for register. Both duplicate
// fields are reported together when both collide.
type RegistrationError struct {
	Fields map[string]string
}

func (e *RegistrationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "registration rejected: " + strings.Join(parts, "; ")
}

const (
	RegistrationReasonWeakPassword   = "password_compromised"
	RegistrationReasonDuplicateEmail = "email_taken"
	RegistrationReasonDuplicatePhone = "phone_taken"
)
