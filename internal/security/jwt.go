package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Validation failures are distinguished for logging and metrics; callers
// translating them for the wire must collapse them into a single generic
// unauthorized outcome.
var (
	ErrTokenExpired   = errors.New("access token expired")
	ErrTokenMalformed = errors.New("access token malformed")
	ErrTokenTampered  = errors.New("access token signature invalid")
)

type Claims struct {
	Tags []string `json:"tags,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID parses the subject claim back into a customer ID.
func (c *Claims) SubjectID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenMalformed
	}
	return uint(id), nil
}

// TokenCodec creates and parses the signed, self-contained access tokens.
// It holds no state beyond the signing key and is safe for concurrent use.
type TokenCodec struct {
	issuer   string
	audience string
	secret   []byte
	ttl      time.Duration
}

func NewTokenCodec(issuer, audience, secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{
		issuer:   issuer,
		audience: audience,
		secret:   []byte(secret),
		ttl:      ttl,
	}
}

func (c *TokenCodec) TTL() time.Duration { return c.ttl }

func (c *TokenCodec) Issue(customerID uint, tags []string) (string, error) {
	return c.IssueWithJTI(customerID, tags, uuid.NewString())
}

func (c *TokenCodec) IssueWithJTI(customerID uint, tags []string, jti string) (string, error) {
	if jti == "" {
		jti = uuid.NewString()
	}
	now := time.Now()
	claims := Claims{
		Tags: tags,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   strconv.FormatUint(uint64(customerID), 10),
			Audience:  []string{c.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Validate verifies signature and expiry. Expiry is compared against
// wall-clock time with zero leeway; clock skew is not compensated for.
func (c *TokenCodec) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenTampered
		}
		return c.secret, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithAudience(c.audience))
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !tok.Valid {
		return nil, ErrTokenTampered
	}
	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrTokenTampered):
		return ErrTokenTampered
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrTokenTampered
	default:
		return ErrTokenMalformed
	}
}
