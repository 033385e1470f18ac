package revenue

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gpuoptimizer/revenue-core/pkg/db/models"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

// Repository persists and aggregates revenue audit events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, event *models.RevenueEvent) error
	CustomersByTier(ctx context.Context) (map[enums.Tier]int64, error)
	TotalSavings(ctx context.Context) (float64, error)
	DailySignups(ctx context.Context, days int) ([]DailyCount, error)
}

// DailyCount is one day's signup total.
type DailyCount struct {
	Date    string `json:"date"`
	Signups int64  `json:"signups"`
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a revenue repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repositoryImpl{db: conn}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Append(ctx context.Context, event *models.RevenueEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repositoryImpl) CustomersByTier(ctx context.Context) (map[enums.Tier]int64, error) {
	type row struct {
		Tier  enums.Tier
		Count int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Select("tier, COUNT(*) AS count").
		Group("tier").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[enums.Tier]int64, len(rows))
	for _, rw := range rows {
		out[rw.Tier] = rw.Count
	}
	return out, nil
}

func (r *repositoryImpl) TotalSavings(ctx context.Context) (float64, error) {
	var total *float64
	err := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Select("SUM(monthly_savings)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repositoryImpl) DailySignups(ctx context.Context, days int) ([]DailyCount, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var rows []DailyCount
	err := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Select("DATE(created_at) AS date, COUNT(*) AS signups").
		Where("created_at >= ?", cutoff).
		Group("DATE(created_at)").
		Order("date").
		Scan(&rows).Error
	return rows, err
}
