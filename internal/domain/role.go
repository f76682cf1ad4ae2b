package domain

import "time"

// Authorization tags form a closed catalog; rows are seeded at startup and
// referenced by name everywhere else.
const (
	TagCustomer = "customer"
	TagAdmin    = "admin"
	TagSupport  = "support"
)

type Role struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
