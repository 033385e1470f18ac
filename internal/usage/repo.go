package usage

import (
	"context"

	"gorm.io/gorm"

	"github.com/gpuoptimizer/revenue-core/pkg/db/models"
)

// Repository persists telemetry batches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, records []models.UsageRecord) error
	CountForCustomer(ctx context.Context, email string) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a usage repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repositoryImpl{db: conn}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateBatch(ctx context.Context, records []models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(records, 100).Error
}

func (r *repositoryImpl) CountForCustomer(ctx context.Context, email string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("customer_email = ?", email).
		Count(&count).Error
	return count, err
}
