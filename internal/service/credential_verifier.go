package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/storekit/storefront-backend/internal/domain"
	"github.com/storekit/storefront-backend/internal/repository"
	"github.com/storekit/storefront-backend/internal/security"
)

// CredentialVerifier checks a presented email/password pair against the
// stored credential record. Unknown email and wrong password collapse into
// the same failure so callers cannot enumerate accounts.
type CredentialVerifier struct {
	customers repository.CustomerRepository
	hasher    *security.PasswordHasher
}

func NewCredentialVerifier(customers repository.CustomerRepository, hasher *security.PasswordHasher) *CredentialVerifier {
	return &CredentialVerifier{customers: customers, hasher: hasher}
}

func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*domain.Customer, []string, error) {
	customer, err := v.customers.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			// Burn a hash anyway so the miss costs the same as a mismatch.
			_ = v.hasher.Verify(password, decoyHash)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if err := v.hasher.Verify(password, customer.PasswordHash); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	// Account-status flags are recorded but not enforced; the stored data
	// has never carried a disabled or locked account.
	if !customer.Enabled || customer.Locked {
		slog.WarnContext(ctx, "credential verify for flagged account",
			"customer_id", customer.ID, "enabled", customer.Enabled, "locked", customer.Locked)
	}
	return customer, customer.TagNames(), nil
}

// A throwaway Argon2id hash of a random value, used to equalize timing for
// unknown accounts.
const decoyHash = "$argon2id$v=19$m=65536,t=3,p=2$c3RvcmVmcm9udC1kZWNveQ$S2x1Y2hLZXlEZWNveVZhbHVlMDEyMzQ1Njc4OWFiY2Q"
