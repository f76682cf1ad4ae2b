package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/storekit/storefront-backend/internal/http/middleware"
	"github.com/storekit/storefront-backend/internal/http/response"
	"github.com/storekit/storefront-backend/internal/i18n"
	"github.com/storekit/storefront-backend/internal/repository"
	"github.com/storekit/storefront-backend/internal/service"
)

// AccountHandler serves the authenticated customer's own profile and
// session management. Routes mounting it must sit behind the
// RequireAuthenticated middleware.
type AccountHandler struct {
	customers repository.CustomerRepository
	sessions  *service.SessionService
	messages  *i18n.Resolver
}

func NewAccountHandler(customers repository.CustomerRepository, sessions *service.SessionService, messages *i18n.Resolver) *AccountHandler {
	return &AccountHandler{customers: customers, sessions: sessions, messages: messages}
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, h.messages)
		return
	}
	customer, err := h.customers.FindByID(identity.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			response.Unauthorized(w, r, h.messages)
			return
		}
		response.Internal(w, r, h.messages)
		return
	}
	response.JSON(w, r, http.StatusOK, service.CustomerSummary{
		ID:    customer.ID,
		Email: customer.Email,
		Name:  customer.Name,
		Tags:  identity.Tags,
	})
}

// ListSessions returns the customer's active sessions. The optional
// X-Refresh-Token header marks which row is the caller's own session.
func (h *AccountHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, h.messages)
		return
	}
	views, err := h.sessions.ListActiveSessions(identity.CustomerID, r.Header.Get("X-Refresh-Token"))
	if err != nil {
		response.Internal(w, r, h.messages)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{"sessions": views})
}

func (h *AccountHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, h.messages)
		return
	}
	sessionID, err := strconv.ParseUint(chi.URLParam(r, "sessionID"), 10, 64)
	if err != nil {
		badRequest(w, r, h.messages)
		return
	}
	outcome, err := h.sessions.RevokeSession(identity.CustomerID, uint(sessionID))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			response.Error(w, r, http.StatusNotFound, "SESSION_NOT_FOUND",
				response.Localize(r, h.messages, "error.bad_request"), nil)
			return
		}
		response.Internal(w, r, h.messages)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"status": outcome})
}

func (h *AccountHandler) RevokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, h.messages)
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		badRequest(w, r, h.messages)
		return
	}
	revoked, err := h.sessions.RevokeOtherSessions(identity.CustomerID, req.RefreshToken)
	if err != nil {
		response.Internal(w, r, h.messages)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]int64{"revoked": revoked})
}
