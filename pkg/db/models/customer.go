package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

// Customer is the single source of truth for a paying account. Tier and
// LastPayment change only through payment completion; GPUCount and
// MonthlySavings change only through usage ingestion. Rows are never
// hard-deleted.
type Customer struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email          string     `gorm:"column:email;not null;unique"`
	APIKey         string     `gorm:"column:api_key;not null;unique"`
	Tier           enums.Tier `gorm:"column:tier;not null;default:'free'"`
	GPUCount       int        `gorm:"column:gpu_count;not null;default:0"`
	MonthlySavings float64    `gorm:"column:monthly_savings;not null;default:0"`
	LastPayment    *time.Time `gorm:"column:last_payment"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the id client-side so the model works on both
// Postgres and the embedded sqlite engine.
func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
