package repository

import (
	"context"
	"errors"

	"github.com/storekit/storefront-backend/internal/domain"
	"github.com/storekit/storefront-backend/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrRoleNotFound = errors.New("role not found")

type RoleRepository interface {
	FindByName(name string) (*domain.Role, error)
	List() ([]domain.Role, error)
	// Seed inserts the closed role catalog, ignoring names already present.
	Seed(roles []domain.Role) error
}

type GormRoleRepository struct{ db *gorm.DB }

func NewRoleRepository(db *gorm.DB) RoleRepository { return &GormRoleRepository{db: db} }

func (r *GormRoleRepository) FindByName(name string) (*domain.Role, error) {
	var role domain.Role
	err := r.db.Where("name = ?", name).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "role", "find_by_name", "not_found")
			return nil, ErrRoleNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "role", "find_by_name", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "find_by_name", "success")
	return &role, nil
}

func (r *GormRoleRepository) List() ([]domain.Role, error) {
	var roles []domain.Role
	err := r.db.Find(&roles).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "role", "list", "error")
		return roles, err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "list", "success")
	return roles, nil
}

func (r *GormRoleRepository) Seed(roles []domain.Role) error {
	if len(roles) == 0 {
		return nil
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&roles).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "role", "seed", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "seed", "success")
	return nil
}
