package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storekit/storefront-backend/internal/domain"
	"github.com/storekit/storefront-backend/internal/events"
	"github.com/storekit/storefront-backend/internal/observability"
	"github.com/storekit/storefront-backend/internal/repository"
	"github.com/storekit/storefront-backend/internal/security"
)

// TokenService owns the token pair lifecycle: signed access tokens from the
// codec, opaque refresh tokens in the store, rotation with reuse detection.
type TokenService struct {
	codec      *security.TokenCodec
	tokens     repository.RefreshTokenRepository
	publisher  events.Publisher
	pepper     string
	refreshTTL time.Duration
}

func NewTokenService(codec *security.TokenCodec, tokens repository.RefreshTokenRepository, publisher events.Publisher, pepper string, refreshTTL time.Duration) *TokenService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &TokenService{
		codec:      codec,
		tokens:     tokens,
		publisher:  publisher,
		pepper:     pepper,
		refreshTTL: refreshTTL,
	}
}

func (s *TokenService) AccessTTL() time.Duration { return s.codec.TTL() }

// Issue mints a fresh access/refresh pair for a verified customer. The
// refresh token starts a new family.
func (s *TokenService) Issue(ctx context.Context, customer *domain.Customer, tags []string, ip, userAgent string) (access, refresh string, err error) {
	access, err = s.codec.Issue(customer.ID, tags)
	if err != nil {
		return "", "", err
	}
	refresh, err = security.NewRefreshToken()
	if err != nil {
		return "", "", err
	}
	row := &domain.RefreshToken{
		CustomerID: customer.ID,
		TokenHash:  security.HashRefreshToken(refresh, s.pepper),
		FamilyID:   uuid.NewString(),
		IP:         ip,
		UserAgent:  userAgent,
		ExpiresAt:  time.Now().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(row); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Rotate verifies the presented refresh token, atomically revokes it and
// creates its successor, and mints a new access token for the bound subject.
// Presenting an already-rotated token revokes the whole family.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string, lookup CustomerLookup, ip, userAgent string) (access, newRefresh string, customerID uint, err error) {
	hash := security.HashRefreshToken(refreshToken, s.pepper)
	row, err := s.tokens.FindByHash(hash)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return "", "", 0, ErrRefreshNotFound
		}
		return "", "", 0, err
	}
	if row.Revoked {
		reason := ""
		if row.RevokedReason != nil {
			reason = *row.RevokedReason
		}
		if reason == repository.RevokedReasonRotated || reason == repository.RevokedReasonReuse {
			count, revokeErr := s.tokens.RevokeByFamilyID(row.FamilyID, repository.RevokedReasonReuse)
			if revokeErr != nil {
				slog.ErrorContext(ctx, "revoke family after reuse", "family_id", row.FamilyID, "error", revokeErr)
			}
			observability.RecordSecurityEvent("refresh_reuse_detected")
			s.publish(ctx, events.KindRefreshReuseDetected, row.CustomerID, ip, userAgent, map[string]any{
				"family_id":       row.FamilyID,
				"revoked_in_fam":  count,
				"original_reason": reason,
			})
			return "", "", 0, ErrRefreshReuseDetected
		}
		return "", "", 0, ErrRefreshRevoked
	}
	if !time.Now().Before(row.ExpiresAt) {
		return "", "", 0, ErrRefreshExpired
	}

	customer, tags, err := lookup.GetByID(ctx, row.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return "", "", 0, ErrSubjectVanished
		}
		return "", "", 0, err
	}

	newRefresh, err = security.NewRefreshToken()
	if err != nil {
		return "", "", 0, err
	}
	parent := row.TokenHash
	next := &domain.RefreshToken{
		CustomerID:    row.CustomerID,
		TokenHash:     security.HashRefreshToken(newRefresh, s.pepper),
		FamilyID:      row.FamilyID,
		ParentTokenID: &parent,
		IP:            ip,
		UserAgent:     userAgent,
		ExpiresAt:     time.Now().Add(s.refreshTTL),
	}
	if _, err := s.tokens.Rotate(hash, next); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// Lost the race against a concurrent rotation of the same token.
			return "", "", 0, ErrRefreshNotFound
		}
		return "", "", 0, err
	}

	access, err = s.codec.Issue(customer.ID, tags)
	if err != nil {
		return "", "", 0, err
	}
	return access, newRefresh, customer.ID, nil
}

// RevokeAll revokes every live refresh token of the subject. Idempotent.
func (s *TokenService) RevokeAll(ctx context.Context, customerID uint, reason string) error {
	if err := s.tokens.RevokeByCustomerID(customerID, reason); err != nil {
		return err
	}
	s.publish(ctx, events.KindTokensRevoked, customerID, "", "", map[string]any{"reason": reason})
	return nil
}

func (s *TokenService) publish(ctx context.Context, kind string, customerID uint, ip, userAgent string, detail map[string]any) {
	evt := events.SecurityEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		CustomerID: customerID,
		IP:         ip,
		UserAgent:  userAgent,
		At:         time.Now().UTC(),
		Detail:     detail,
	}
	if err := s.publisher.PublishSecurityEvent(ctx, evt); err != nil {
		slog.WarnContext(ctx, "publish security event", "kind", kind, "error", err)
	}
}
