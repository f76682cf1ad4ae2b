package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/storekit/storefront-backend/internal/config"
	"github.com/storekit/storefront-backend/internal/health"
	"github.com/storekit/storefront-backend/internal/http/handler"
	appmiddleware "github.com/storekit/storefront-backend/internal/http/middleware"
	"github.com/storekit/storefront-backend/internal/http/response"
	"github.com/storekit/storefront-backend/internal/i18n"
	"github.com/storekit/storefront-backend/internal/security"
	"github.com/storekit/storefront-backend/internal/service"
)

const maxBodyBytes = 1 << 20

// Dependencies carries everything the router wires together. The router
// itself holds no state.
type Dependencies struct {
	Config    *config.Config
	Logger    *slog.Logger
	Codec     *security.TokenCodec
	Resolver  service.TagResolver
	Auth      *handler.AuthHandler
	Account   *handler.AccountHandler
	Messages  *i18n.Resolver
	Readiness *health.ProbeRunner
}

func New(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.SecurityHeaders)
	r.Use(appmiddleware.BodyLimit(maxBodyBytes))
	if deps.Logger != nil {
		r.Use(appmiddleware.StructuredRequestLogger(deps.Logger))
	}
	if deps.Config.APIRateLimitRPM > 0 {
		r.Use(appmiddleware.NewRateLimiter(deps.Config.APIRateLimitRPM, time.Minute, deps.Messages).Middleware)
	}

	r.Get("/health/live", func(w http.ResponseWriter, req *http.Request) {
		response.JSON(w, req, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		ready, results := deps.Readiness.Ready(req.Context())
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		response.JSON(w, req, status, map[string]interface{}{"ready": ready, "checks": results})
	})

	// The gate runs on every non-public request; it attaches identity but
	// never rejects. Enforcement happens per route group below.
	gate := appmiddleware.Authenticate(deps.Codec, deps.Resolver, deps.Config.PublicPathPrefixes)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(gate)

		api.Route("/auth", func(auth chi.Router) {
			if deps.Config.AuthRateLimitRPM > 0 {
				auth.Use(appmiddleware.NewRateLimiter(deps.Config.AuthRateLimitRPM, time.Minute, deps.Messages).Middleware)
			}
			auth.Post("/register", deps.Auth.Register)
			auth.Post("/login", deps.Auth.Login)
			auth.Post("/refresh", deps.Auth.Refresh)

			// Logout is the one auth route that needs an identity, so it
			// runs the gate explicitly despite the public prefix.
			auth.Group(func(protected chi.Router) {
				protected.Use(appmiddleware.Authenticate(deps.Codec, deps.Resolver, nil))
				protected.Use(appmiddleware.RequireAuthenticated(deps.Messages))
				protected.Post("/logout", deps.Auth.Logout)
			})
		})

		api.Route("/me", func(me chi.Router) {
			me.Use(appmiddleware.RequireAuthenticated(deps.Messages))
			me.Get("/", deps.Account.Me)
			me.Get("/sessions", deps.Account.ListSessions)
			me.Delete("/sessions/{sessionID}", deps.Account.RevokeSession)
			me.Post("/sessions/revoke-others", deps.Account.RevokeOtherSessions)
		})
	})

	var root http.Handler = r
	if deps.Config.EnableOTelHTTP {
		root = otelhttp.NewHandler(root, "http.server")
	}
	return root
}
