package identity

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gpuoptimizer/revenue-core/pkg/db/models"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

// Repository exposes persistence helpers for customers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, customer *models.Customer) error
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*models.Customer, error)
	APIKeyExists(ctx context.Context, apiKey string) (bool, error)
	UpdateTierAndLastPayment(ctx context.Context, email string, tier enums.Tier, paidAt time.Time) (int64, error)
	UpdateUsageAggregates(ctx context.Context, email string, gpuCount int, addedMonthlySavings float64) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a customer repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repositoryImpl{db: conn}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *repositoryImpl) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&customer).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repositoryImpl) FindByAPIKey(ctx context.Context, apiKey string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("api_key = ?", apiKey).First(&customer).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repositoryImpl) APIKeyExists(ctx context.Context, apiKey string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("api_key = ?", apiKey).
		Count(&count).Error
	return count > 0, err
}

func (r *repositoryImpl) UpdateTierAndLastPayment(ctx context.Context, email string, tier enums.Tier, paidAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("email = ?", email).
		Updates(map[string]any{"tier": tier, "last_payment": paidAt})
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) UpdateUsageAggregates(ctx context.Context, email string, gpuCount int, addedMonthlySavings float64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("email = ?", email).
		Updates(map[string]any{
			"gpu_count":       gpuCount,
			"monthly_savings": gorm.Expr("monthly_savings + ?", addedMonthlySavings),
		})
	return result.RowsAffected, result.Error
}
