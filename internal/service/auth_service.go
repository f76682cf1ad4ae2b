package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storekit/storefront-backend/internal/domain"
	"github.com/storekit/storefront-backend/internal/events"
	"github.com/storekit/storefront-backend/internal/observability"
	"github.com/storekit/storefront-backend/internal/repository"
	"github.com/storekit/storefront-backend/internal/security"
)

type LoginResult struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    int64           `json:"expires_in"`
	Customer     CustomerSummary `json:"customer"`
}

type CustomerSummary struct {
	ID    uint     `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
}

type RegistrationInput struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// AuthService drives login, refresh, registration and logout, delegating
// credential checks to the verifier and token lifecycle to the token
// service.
type AuthService struct {
	verifier  *CredentialVerifier
	tokenSvc  *TokenService
	customers repository.CustomerRepository
	roles     repository.RoleRepository
	hasher    *security.PasswordHasher
	breach    BreachChecker
	publisher events.Publisher
}

func NewAuthService(
	verifier *CredentialVerifier,
	tokenSvc *TokenService,
	customers repository.CustomerRepository,
	roles repository.RoleRepository,
	hasher *security.PasswordHasher,
	breach BreachChecker,
	publisher events.Publisher,
) *AuthService {
	if breach == nil {
		breach = NewNoopBreachChecker()
	}
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &AuthService{
		verifier:  verifier,
		tokenSvc:  tokenSvc,
		customers: customers,
		roles:     roles,
		hasher:    hasher,
		breach:    breach,
		publisher: publisher,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	customer, tags, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			observability.RecordAuthLogin("invalid_credentials")
			return nil, err
		}
		observability.RecordAuthLogin("error")
		return nil, err
	}
	access, refresh, err := s.tokenSvc.Issue(ctx, customer, tags, ip, userAgent)
	if err != nil {
		observability.RecordAuthLogin("error")
		return nil, err
	}
	observability.RecordAuthLogin("success")
	s.publishEvent(ctx, events.KindLogin, customer.ID, ip, userAgent, nil)
	return s.loginResult(access, refresh, customer, tags), nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken, ip, userAgent string) (*LoginResult, error) {
	access, newRefresh, customerID, err := s.tokenSvc.Rotate(ctx, refreshToken, s, ip, userAgent)
	if err != nil {
		observability.RecordAuthRefresh(refreshFailureLabel(err))
		return nil, err
	}
	customer, tags, err := s.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			observability.RecordAuthRefresh("subject_vanished")
			return nil, ErrSubjectVanished
		}
		observability.RecordAuthRefresh("error")
		return nil, err
	}
	observability.RecordAuthRefresh("success")
	return s.loginResult(access, newRefresh, customer, tags), nil
}

// Register validates the password against the breach corpus and the
// identifiers against existing records before anything is persisted. All
// failing fields are reported together.
func (s *AuthService) Register(ctx context.Context, input RegistrationInput) error {
	fields := map[string]string{}

	compromised, err := s.breach.IsCompromised(ctx, input.Password)
	if err != nil {
		// The corpus is an external collaborator; treat outage as
		// not-compromised rather than blocking registration.
		slog.WarnContext(ctx, "breach corpus check failed", "error", err)
	} else if compromised {
		fields["password"] = RegistrationReasonWeakPassword
	}

	existing, err := s.customers.FindByEmailOrPhone(input.Email, input.Phone)
	if err != nil {
		observability.RecordAuthRegister("error")
		return err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Email, input.Email) {
			fields["email"] = RegistrationReasonDuplicateEmail
		}
		if input.Phone != "" && c.Phone != nil && *c.Phone == input.Phone {
			fields["phone"] = RegistrationReasonDuplicatePhone
		}
	}
	if len(fields) > 0 {
		observability.RecordAuthRegister("rejected")
		return &RegistrationError{Fields: fields}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		observability.RecordAuthRegister("error")
		return err
	}
	customer := &domain.Customer{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hash,
		Enabled:      true,
	}
	if phone := strings.TrimSpace(input.Phone); phone != "" {
		customer.Phone = &phone
	}
	if role, err := s.roles.FindByName(domain.TagCustomer); err == nil {
		customer.Roles = []domain.Role{*role}
	} else if !errors.Is(err, repository.ErrRoleNotFound) {
		observability.RecordAuthRegister("error")
		return err
	}
	if err := s.customers.Create(customer); err != nil {
		observability.RecordAuthRegister("error")
		return err
	}
	observability.RecordAuthRegister("success")
	s.publishEvent(ctx, events.KindRegister, customer.ID, "", "", nil)
	return nil
}

func (s *AuthService) Logout(ctx context.Context, customerID uint) error {
	if err := s.tokenSvc.RevokeAll(ctx, customerID, repository.RevokedReasonLogout); err != nil {
		observability.RecordAuthLogout("error")
		return err
	}
	observability.RecordAuthLogout("success")
	return nil
}

// GetByID implements CustomerLookup for the rotation path.
func (s *AuthService) GetByID(ctx context.Context, id uint) (*domain.Customer, []string, error) {
	customer, err := s.customers.FindByID(id)
	if err != nil {
		return nil, nil, err
	}
	return customer, customer.TagNames(), nil
}

func (s *AuthService) AccessTTL() time.Duration { return s.tokenSvc.AccessTTL() }

func (s *AuthService) loginResult(access, refresh string, customer *domain.Customer, tags []string) *LoginResult {
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokenSvc.AccessTTL().Seconds()),
		Customer: CustomerSummary{
			ID:    customer.ID,
			Email: customer.Email,
			Name:  customer.Name,
			Tags:  tags,
		},
	}
}

func (s *AuthService) publishEvent(ctx context.Context, kind string, customerID uint, ip, userAgent string, detail map[string]any) {
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

func refreshFailureLabel(err error) string {
	switch {
	case errors.Is(err, ErrRefreshReuseDetected):
		return "reuse_detected"
	case errors.Is(err, ErrRefreshRevoked):
		return "revoked"
	case errors.Is(err, ErrRefreshExpired):
		return "expired"
	case errors.Is(err, ErrRefreshNotFound):
		return "not_found"
	case errors.Is(err, ErrSubjectVanished):
		return "subject_vanished"
	default:
		return "error"
	}
}
