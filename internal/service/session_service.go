package service

import (
	"time"

	"github.com/storekit/storefront-backend/internal/repository"
	"github.com/storekit/storefront-backend/internal/security"
)

// SessionView is the customer-facing projection of a refresh-token row.
// The token material itself never leaves the store.
type SessionView struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
	IsCurrent bool      `json:"is_current"`
}

type SessionService struct {
	tokens repository.RefreshTokenRepository
	pepper string
}

func NewSessionService(tokens repository.RefreshTokenRepository, pepper string) *SessionService {
	return &SessionService{tokens: tokens, pepper: pepper}
}

func (s *SessionService) ListActiveSessions(customerID uint, currentRefreshToken string) ([]SessionView, error) {
	tokens, err := s.tokens.ListActiveByCustomerID(customerID)
	if err != nil {
		return nil, err
	}
	currentHash := ""
	if currentRefreshToken != "" {
		currentHash = security.HashRefreshToken(currentRefreshToken, s.pepper)
	}
	views := make([]SessionView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, SessionView{
			ID:        t.ID,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
			UserAgent: t.UserAgent,
			IP:        t.IP,
			IsCurrent: currentHash != "" && t.TokenHash == currentHash,
		})
	}
	return views, nil
}

// RevokeSession revokes one of the caller's sessions. Revoking an
// already-revoked session reports already_revoked without touching the row.
func (s *SessionService) RevokeSession(customerID, sessionID uint) (string, error) {
	changed, err := s.tokens.RevokeByIDForCustomer(customerID, sessionID, repository.RevokedReasonUserRevoked)
	if err != nil {
		return "", err
	}
	if !changed {
		return "already_revoked", nil
	}
	return "revoked", nil
}

// RevokeOtherSessions revokes everything except the session backing the
// presented refresh token.
func (s *SessionService) RevokeOtherSessions(customerID uint, currentRefreshToken string) (int64, error) {
	keepID := uint(0)
	if currentRefreshToken != "" {
		hash := security.HashRefreshToken(currentRefreshToken, s.pepper)
		if row, err := s.tokens.FindByHash(hash); err == nil && row.CustomerID == customerID {
			keepID = row.ID
		}
	}
	return s.tokens.RevokeOthersByCustomer(customerID, keepID, repository.RevokedReasonRevokeOthers)
}
