package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

// RevenueEvent is an immutable audit entry for the revenue lifecycle
// (signups, upgrades, payment completions).
type RevenueEvent struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	CustomerEmail string                 `gorm:"column:customer_email;not null;index"`
	EventType     enums.RevenueEventType `gorm:"column:event_type;not null"`
	Amount        float64                `gorm:"column:amount;not null;default:0"`
	Metadata      json.RawMessage        `gorm:"column:metadata"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (r *RevenueEvent) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
