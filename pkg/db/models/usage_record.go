package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageRecord is one GPU utilization sample attributed to a customer.
// Append-only; nothing updates or deletes these rows.
type UsageRecord struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CustomerEmail    string    `gorm:"column:customer_email;not null;index"`
	GPUIndex         int       `gorm:"column:gpu_index;not null"`
	GPUName          string    `gorm:"column:gpu_name"`
	GPUUtil          float64   `gorm:"column:gpu_util;not null"`
	MemUsed          float64   `gorm:"column:mem_used;not null"`
	MemTotal         float64   `gorm:"column:mem_total;not null"`
	CostPerHour      float64   `gorm:"column:cost_per_hour;not null"`
	PotentialSavings float64   `gorm:"column:potential_savings;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (u *UsageRecord) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
