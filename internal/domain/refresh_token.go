package domain

import "time"

// RefreshToken is the persisted half of a login: the opaque token handed to
// the client is never stored, only its peppered hash. A customer may hold
// several live rows at once, one per device.
type RefreshToken struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CustomerID    uint       `gorm:"index;not null" json:"customer_id"`
	TokenHash     string     `gorm:"size:128;uniqueIndex;not null" json:"-"`
	FamilyID      string     `gorm:"size:64;index;not null" json:"-"`
	ParentTokenID *string    `gorm:"size:64;index" json:"-"`
	IP            string     `gorm:"size:64" json:"ip,omitempty"`
	UserAgent     string     `gorm:"size:512" json:"user_agent,omitempty"`
	ExpiresAt     time.Time  `gorm:"index;not null" json:"expires_at"`
	Revoked       bool       `gorm:"not null;default:false" json:"revoked"`
	RevokedAt     *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	RevokedReason *string    `gorm:"size:64" json:"revoked_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Usable reports whether the row can still mint access tokens.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
