package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/storekit/storefront-backend/internal/http/middleware"
	"github.com/storekit/storefront-backend/internal/http/response"
	"github.com/storekit/storefront-backend/internal/i18n"
	"github.com/storekit/storefront-backend/internal/service"
)

// AuthHandler exposes the credential and token lifecycle endpoints. It owns
// no policy: every decision lives in the services, every failure shape in
// the response package.
type AuthHandler struct {
	auth     service.AuthServiceInterface
	messages *i18n.Resolver
}

func NewAuthHandler(auth service.AuthServiceInterface, messages *i18n.Resolver) *AuthHandler {
	return &AuthHandler{auth: auth, messages: messages}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Password == "" {
		badRequest(w, r, h.messages)
		return
	}
	result, err := h.auth.Login(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.InvalidCredentials(w, r, h.messages)
			return
		}
		response.Internal(w, r, h.messages)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		badRequest(w, r, h.messages)
		return
	}
	result, err := h.auth.Refresh(r.Context(), req.RefreshToken, clientIP(r), r.UserAgent())
	if err != nil {
		if isRefreshFailure(err) {
			response.RefreshFailed(w, r, h.messages)
			return
		}
		response.Internal(w, r, h.messages)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegistrationInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, h.messages)
		return
	}
	if missing := missingRegistrationFields(req); len(missing) > 0 {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED",
			response.Localize(r, h.messages, "error.bad_request"), missing)
		return
	}
	if err := h.auth.Register(r.Context(), req); err != nil {
		var regErr *service.RegistrationError
		if errors.As(err, &regErr) {
			details := make(map[string]string, len(regErr.Fields))
			for field, reason := range regErr.Fields {
				details[field] = response.Localize(r, h.messages, "error."+reason)
			}
			response.Error(w, r, http.StatusUnprocessableEntity, "REGISTRATION_REJECTED",
				response.Localize(r, h.messages, "error.registration_invalid"), details)
			return
		}
		response.Internal(w, r, h.messages)
		return
	}
	response.JSON(w, r, http.StatusCreated, map[string]string{"status": "registered"})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, h.messages)
		return
	}
	if err := h.auth.Logout(r.Context(), identity.CustomerID); err != nil {
		response.Internal(w, r, h.messages)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

// isRefreshFailure covers every refresh-verification outcome that must
// collapse into the single re-authenticate response.
func isRefreshFailure(err error) bool {
	return errors.Is(err, service.ErrRefreshNotFound) ||
		errors.Is(err, service.ErrRefreshRevoked) ||
		errors.Is(err, service.ErrRefreshExpired) ||
		errors.Is(err, service.ErrSubjectVanished)
}

func missingRegistrationFields(req service.RegistrationInput) map[string]string {
	missing := map[string]string{}
	if strings.TrimSpace(req.Email) == "" {
		missing["email"] = "required"
	}
	if strings.TrimSpace(req.Password) == "" {
		missing["password"] = "required"
	}
	if strings.TrimSpace(req.Name) == "" {
		missing["name"] = "required"
	}
	if len(missing) == 0 {
		return nil
	}
	return missing
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func badRequest(w http.ResponseWriter, r *http.Request, messages *i18n.Resolver) {
	response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST",
		response.Localize(r, messages, "error.bad_request"), nil)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
