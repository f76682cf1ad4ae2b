package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/storekit/storefront-backend/internal/http/response"
	"github.com/storekit/storefront-backend/internal/i18n"
	"github.com/storekit/storefront-backend/internal/observability"
	"github.com/storekit/storefront-backend/internal/security"
	"github.com/storekit/storefront-backend/internal/service"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the request-scoped authenticated context: the resolved
// subject and its authorization tags. It lives only on the request context
// and is never shared across requests.
type Identity struct {
	CustomerID uint
	Email      string
	Tags       []string
	TokenID    string
}

func (id *Identity) HasTag(tag string) bool {
	for _, t := range id.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Authenticate is the request gate. It extracts and validates a bearer
// token and, on success, attaches the Identity to the request context. It
// never rejects: on any failure the request continues unauthenticated and
// the enforcement middleware downstream produces the uniform response.
// Paths matching a public prefix bypass the gate entirely.
func Authenticate(codec *security.TokenCodec, resolver service.TagResolver, publicPrefixes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path, publicPrefixes) {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := IdentityFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			raw := bearerToken(r)
			if raw == "" {
				observability.RecordAccessTokenValidation(r.Context(), "missing")
				next.ServeHTTP(w, r)
				return
			}
			claims, err := codec.Validate(raw)
			if err != nil {
				kind := validationFailureKind(err)
				observability.RecordAccessTokenValidation(r.Context(), kind)
				observability.Audit(r, "access_token_rejected", "reason", kind)
				next.ServeHTTP(w, r)
				return
			}
			customerID, err := claims.SubjectID()
			if err != nil {
				observability.RecordAccessTokenValidation(r.Context(), "malformed")
				observability.Audit(r, "access_token_rejected", "reason", "malformed_subject")
				next.ServeHTTP(w, r)
				return
			}
			tags := claims.Tags
			if resolver != nil {
				resolved, err := resolver.ResolveTags(r.Context(), customerID, claims.ID)
				if err != nil {
					if errors.Is(err, service.ErrSubjectVanished) {
						// Externally indistinguishable from a tampered token.
						observability.RecordAccessTokenValidation(r.Context(), "subject_vanished")
						observability.Audit(r, "access_token_rejected", "reason", "subject_vanished", "customer_id", customerID)
						next.ServeHTTP(w, r)
						return
					}
					observability.RecordAccessTokenValidation(r.Context(), "resolver_error")
					observability.Audit(r, "access_token_rejected", "reason", "resolver_error")
					next.ServeHTTP(w, r)
					return
				}
				tags = resolved
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid")
			identity := &Identity{
				CustomerID: customerID,
				Tags:       tags,
				TokenID:    claims.ID,
			}
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticated rejects requests that reached a protected operation
// without an Identity. This is the only place the unauthorized response is
// produced for protected routes.
func RequireAuthenticated(messages *i18n.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				response.Unauthorized(w, r, messages)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireTag additionally demands one authorization tag from the closed
// catalog.
func RequireTag(messages *i18n.Resolver, tag string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				response.Unauthorized(w, r, messages)
				return
			}
			if !identity.HasTag(tag) {
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN",
					response.Localize(r, messages, "error.forbidden"), map[string]string{"required": tag})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok
}

// WithIdentity is a test seam for handlers that expect a populated context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func isPublicPath(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func validationFailureKind(err error) string {
	switch {
	case errors.Is(err, security.ErrTokenExpired):
		return "expired"
	case errors.Is(err, security.ErrTokenTampered):
		return "tampered"
	default:
		return "malformed"
	}
}
