package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/storekit/storefront-backend/internal/domain"
	"github.com/storekit/storefront-backend/internal/observability"

	"gorm.io/gorm"
)

var ErrCustomerNotFound = errors.New("customer not found")

type CustomerRepository interface {
	FindByID(id uint) (*domain.Customer, error)
	// FindByEmail matches case-insensitively and eager-loads roles so the
	// caller gets credentials and authorization tags in one round trip.
	FindByEmail(email string) (*domain.Customer, error)
	// FindByEmailOrPhone backs the duplicate-registration check; it returns
	// every record colliding on either field.
	FindByEmailOrPhone(email, phone string) ([]domain.Customer, error)
	Create(customer *domain.Customer) error
}

type GormCustomerRepository struct{ db *gorm.DB }

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &GormCustomerRepository{db: db}
}

func (r *GormCustomerRepository) FindByID(id uint) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.Preload("Roles").First(&c, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "customer", "find_by_id", "not_found")
			return nil, ErrCustomerNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "customer", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "customer", "find_by_id", "success")
	return &c, nil
}

func (r *GormCustomerRepository) FindByEmail(email string) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.Preload("Roles").Where("LOWER(email) = ?", strings.ToLower(email)).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "customer", "find_by_email", "not_found")
			return nil, ErrCustomerNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "customer", "find_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "customer", "find_by_email", "success")
	return &c, nil
}

func (r *GormCustomerRepository) FindByEmailOrPhone(email, phone string) ([]domain.Customer, error) {
	var customers []domain.Customer
	q := r.db.Where("LOWER(email) = ?", strings.ToLower(email))
	if phone != "" {
		q = q.Or("phone = ?", phone)
	}
	err := q.Find(&customers).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "customer", "find_by_email_or_phone", "error")
		return customers, err
	}
	observability.RecordRepositoryOperation(context.Background(), "customer", "find_by_email_or_phone", "success")
	return customers, nil
}

func (r *GormCustomerRepository) Create(customer *domain.Customer) error {
	err := r.db.Create(customer).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "customer", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "customer", "create", "success")
	return nil
}
