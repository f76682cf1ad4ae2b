package service

import (
	"context"

	"github.com/storekit/storefront-backend/internal/domain"
)

type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken, ip, userAgent string) (*LoginResult, error)
	Register(ctx context.Context, input RegistrationInput) error
	Logout(ctx context.Context, customerID uint) error
}

type CustomerLookup interface {
	GetByID(ctx context.Context, id uint) (*domain.Customer, []string, error)
}

// TagResolver turns validated access-token claims into the subject's current
// authorization tags, consulting persistence (via cache) rather than
// trusting the token snapshot alone.
type TagResolver interface {
	ResolveTags(ctx context.Context, customerID uint, tokenID string) ([]string, error)
}

// BreachChecker reports whether a plaintext secret appears in a known
// breach corpus.
type BreachChecker interface {
	IsCompromised(ctx context.Context, password string) (bool, error)
}
