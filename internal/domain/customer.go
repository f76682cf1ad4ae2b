package domain

import "time"

type Customer struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Email string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	// Phone is optional; NULL rather than empty string so the unique index
	// does not collide across phoneless accounts.
	Phone        *string   `gorm:"size:32;uniqueIndex" json:"phone,omitempty"`
	Name         string    `gorm:"size:255" json:"name"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Roles        []Role    `gorm:"many2many:customer_roles;" json:"roles,omitempty"`
	Enabled      bool      `gorm:"not null;default:true" json:"enabled"`
	Locked       bool      `gorm:"not null;default:false" json:"locked"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TagNames flattens the loaded roles into the plain set of authorization
// tags consumed by capability checks.
func (c *Customer) TagNames() []string {
	tags := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		tags = append(tags, r.Name)
	}
	return tags
}
