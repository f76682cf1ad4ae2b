package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/storekit/storefront-backend/internal/i18n"
	"github.com/storekit/storefront-backend/internal/security"
	"github.com/storekit/storefront-backend/internal/service"
)

type staticResolver struct {
	tags map[uint][]string
}

func (r *staticResolver) ResolveTags(_ context.Context, customerID uint, _ string) ([]string, error) {
	tags, ok := r.tags[customerID]
	if !ok {
		return nil, service.ErrSubjectVanished
	}
	return tags, nil
}

func newGateFixture(t *testing.T) (*security.TokenCodec, *staticResolver, *i18n.Resolver) {
	t.Helper()
	codec := security.NewTokenCodec("storefront-backend", "storefront-clients", "0123456789abcdef0123456789abcdef", time.Minute)
	resolver := &staticResolver{tags: map[uint][]string{1: {"customer"}, 2: {"customer", "admin"}}}
	messages, err := i18n.NewResolver("en")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	return codec, resolver, messages
}

func identityProbe(captured **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := IdentityFromContext(r.Context()); ok {
			*captured = id
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestGateAttachesIdentityForValidToken(t *testing.T) {
	codec, resolver, _ := newGateFixture(t)
	raw, err := codec.Issue(1, []string{"stale-tag"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var captured *Identity
	handler := Authenticate(codec, resolver, nil)(identityProbe(&captured))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if captured == nil {
		t.Fatal("expected identity on context")
	}
	if captured.CustomerID != 1 {
		t.Fatalf("customer id=%d want 1", captured.CustomerID)
	}
	// The resolver's current tags win over the token snapshot.
	if len(captured.Tags) != 1 || captured.Tags[0] != "customer" {
		t.Fatalf("tags=%v want [customer]", captured.Tags)
	}
}

func TestGateContinuesUnauthenticatedOnFailures(t *testing.T) {
	codec, resolver, _ := newGateFixture(t)
	expiredCodec := security.NewTokenCodec("storefront-backend", "storefront-clients", "0123456789abcdef0123456789abcdef", -time.Minute)
	expired, _ := expiredCodec.Issue(1, nil)
	foreign, _ := security.NewTokenCodec("storefront-backend", "storefront-clients", "ffffffffffffffffffffffffffffffff", time.Minute).Issue(1, nil)
	vanished, _ := codec.Issue(99, nil)

	cases := map[string]string{
		"no header":        "",
		"garbage":          "Bearer not-a-jwt",
		"expired":          "Bearer " + expired,
		"wrong key":        "Bearer " + foreign,
		"vanished subject": "Bearer " + vanished,
	}
	for name, header := range cases {
		var captured *Identity
		handler := Authenticate(codec, resolver, nil)(identityProbe(&captured))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: gate must never reject, status=%d", name, rec.Code)
		}
		if captured != nil {
			t.Fatalf("%s: expected no identity, got %+v", name, captured)
		}
	}
}

func TestGateSkipsPublicPrefixes(t *testing.T) {
	codec, _, _ := newGateFixture(t)
	// A resolver that fails loudly if consulted.
	resolver := &staticResolver{tags: map[uint][]string{}}
	raw, _ := codec.Issue(1, nil)

	var captured *Identity
	handler := Authenticate(codec, resolver, []string{"/api/v1/auth"})(identityProbe(&captured))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if captured != nil {
		t.Fatal("public path must bypass the gate entirely")
	}
}

func TestRequireAuthenticatedRejectsWithUniformBody(t *testing.T) {
	codec, resolver, messages := newGateFixture(t)
	handler := Authenticate(codec, resolver, nil)(
		RequireAuthenticated(messages)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

	expiredCodec := security.NewTokenCodec("storefront-backend", "storefront-clients", "0123456789abcdef0123456789abcdef", -time.Minute)
	expired, _ := expiredCodec.Issue(1, nil)

	var bodies []string
	for _, header := range []string{"", "Bearer garbage", "Bearer " + expired} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status=%d want 401", rec.Code)
		}
		var payload struct {
			Success bool `json:"success"`
			Error   struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.Success || payload.Error.Code != "UNAUTHORIZED" {
			t.Fatalf("unexpected body: %s", rec.Body.String())
		}
		bodies = append(bodies, payload.Error.Code+"|"+payload.Error.Message)
	}
	// Every root cause produces the identical external response.
	for _, b := range bodies[1:] {
		if b != bodies[0] {
			t.Fatalf("failure responses differ: %v", bodies)
		}
	}
}

func TestRequireTag(t *testing.T) {
	codec, resolver, messages := newGateFixture(t)
	handler := Authenticate(codec, resolver, nil)(
		RequireTag(messages, "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

	customerToken, _ := codec.Issue(1, nil)
	adminToken, _ := codec.Issue(2, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer: status=%d want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: status=%d want 200", rec.Code)
	}
}

func TestRateLimiterEnforcesWindow(t *testing.T) {
	_, _, messages := newGateFixture(t)
	limiter := NewRateLimiter(2, time.Minute, messages)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status=%d", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// A different client has its own window.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client: status=%d want 200", rec.Code)
	}
}
