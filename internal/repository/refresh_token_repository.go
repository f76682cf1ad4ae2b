package repository

import (
	"context"
	"errors"
	"time"

	"github.com/storekit/storefront-backend/internal/domain"
	"github.com/storekit/storefront-backend/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

const (
	RevokedReasonRotated      = "rotated"
	RevokedReasonReuse        = "reuse_detected"
	RevokedReasonLogout       = "logout"
	RevokedReasonUserRevoked  = "user_session_revoked"
	RevokedReasonRevokeOthers = "user_revoke_others"
)

type RefreshTokenRepository interface {
	Create(t *domain.RefreshToken) error
	FindByHash(hash string) (*domain.RefreshToken, error)
	FindByIDForCustomer(customerID, tokenID uint) (*domain.RefreshToken, error)
	ListActiveByCustomerID(customerID uint) ([]domain.RefreshToken, error)
	// Rotate revokes the row matching oldHash and inserts next in one
	// transaction. The old row is locked first, so two concurrent rotations
	// of the same token produce exactly one success; the loser sees
	// ErrRefreshTokenNotFound.
	Rotate(oldHash string, next *domain.RefreshToken) (*domain.RefreshToken, error)
	RevokeByHash(hash, reason string) error
	RevokeByIDForCustomer(customerID, tokenID uint, reason string) (bool, error)
	RevokeOthersByCustomer(customerID, keepTokenID uint, reason string) (int64, error)
	RevokeByFamilyID(familyID, reason string) (int64, error)
	RevokeByCustomerID(customerID uint, reason string) error
	DeleteExpired() (int64, error)
}

type GormRefreshTokenRepository struct{ db *gorm.DB }

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

func (r *GormRefreshTokenRepository) Create(t *domain.RefreshToken) error {
	err := r.db.Create(t).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "create", "success")
	return nil
}

func (r *GormRefreshTokenRepository) FindByHash(hash string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.Where("token_hash = ?", hash).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_hash", "not_found")
			return nil, ErrRefreshTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_hash", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_hash", "success")
	return &t, nil
}

func (r *GormRefreshTokenRepository) FindByIDForCustomer(customerID, tokenID uint) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.Where("customer_id = ? AND id = ?", customerID, tokenID).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_id_for_customer", "not_found")
			return nil, ErrRefreshTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_id_for_customer", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_id_for_customer", "success")
	return &t, nil
}

func (r *GormRefreshTokenRepository) ListActiveByCustomerID(customerID uint) ([]domain.RefreshToken, error) {
	var tokens []domain.RefreshToken
	err := r.db.Where("customer_id = ? AND revoked = ? AND expires_at > ?", customerID, false, time.Now()).
		Order("created_at DESC").
		Find(&tokens).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "list_active_by_customer_id", "error")
		return tokens, err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "list_active_by_customer_id", "success")
	return tokens, nil
}

func (r *GormRefreshTokenRepository) Rotate(oldHash string, next *domain.RefreshToken) (*domain.RefreshToken, error) {
	var rotated *domain.RefreshToken
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var t domain.RefreshToken
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ? AND revoked = ? AND expires_at > ?", oldHash, false, time.Now()).
			First(&t).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRefreshTokenNotFound
			}
			return err
		}
		now := time.Now().UTC()
		reason := RevokedReasonRotated
		if err := tx.Model(&domain.RefreshToken{}).
			Where("id = ?", t.ID).
			Updates(map[string]any{"revoked": true, "revoked_at": now, "revoked_reason": reason}).Error; err != nil {
			return err
		}
		if err := tx.Create(next).Error; err != nil {
			return err
		}
		t.Revoked = true
		t.RevokedAt = &now
		t.RevokedReason = &reason
		rotated = &t
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "rotate", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "rotate", "error")
		}
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "rotate", "success")
	return rotated, nil
}

// RevokeByHash is idempotent: revoking an already-revoked row matches
// nothing and leaves revoked_at untouched.
func (r *GormRefreshTokenRepository) RevokeByHash(hash, reason string) error {
	now := time.Now().UTC()
	err := r.db.Model(&domain.RefreshToken{}).
		Where("token_hash = ? AND revoked = ?", hash, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now, "revoked_reason": reason}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_by_hash", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_by_hash", "success")
	return nil
}

func (r *GormRefreshTokenRepository) RevokeByIDForCustomer(customerID, tokenID uint, reason string) (bool, error) {
	token, err := r.FindByIDForCustomer(customerID, tokenID)
	if err != nil {
		return false, err
	}
	if token.Revoked {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_by_id_for_customer", "success")
		return false, nil
	}
	now := time.Now().UTC()
	res := r.db.Model(&domain.RefreshToken{}).
		Where("customer_id = ? AND id = ? AND revoked = ?", customerID, tokenID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_by_id_for_customer", "error")
		return res.RowsAffected > 0, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_by_id_for_customer", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormRefreshTokenRepository) RevokeOthersByCustomer(customerID, keepTokenID uint, reason string) (int64, error) {
	now := time.Now().UTC()
	res := r.db.Model(&domain.RefreshToken{}).
		Where("customer_id = ? AND id <> ? AND revoked = ?", customerID, keepTokenID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_others_by_customer", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_others_by_customer", "success")
	return res.RowsAffected, nil
}

func (r *GormRefreshTokenRepository) RevokeByFamilyID(familyID, reason string) (int64, error) {
	now := time.Now().UTC()
	res := r.db.Model(&domain.RefreshToken{}).
		Where("family_id = ? AND revoked = ?", familyID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_by_family_id", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_by_family_id", "success")
	return res.RowsAffected, nil
}

func (r *GormRefreshTokenRepository) RevokeByCustomerID(customerID uint, reason string) error {
	now := time.Now().UTC()
	err := r.db.Model(&domain.RefreshToken{}).
		Where("customer_id = ? AND revoked = ?", customerID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now, "revoked_reason": reason}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_by_customer_id", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_by_customer_id", "success")
	return nil
}

// DeleteExpired removes rows past their expiry regardless of revoked state.
// Those rows are already unusable, so the sweep can run concurrently with
// request handling and tolerates interruption.
func (r *GormRefreshTokenRepository) DeleteExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&domain.RefreshToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "delete_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "delete_expired", "success")
	return res.RowsAffected, nil
}
