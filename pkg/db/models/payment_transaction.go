package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

// PaymentTransaction mirrors one gateway-side payment. The composite
// unique index on (gateway, payment_id) makes webhook replays idempotent.
type PaymentTransaction struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CustomerEmail string              `gorm:"column:customer_email;not null;index"`
	PaymentID     string              `gorm:"column:payment_id;not null;uniqueIndex:idx_gateway_payment,priority:2"`
	Gateway       enums.Gateway       `gorm:"column:gateway;not null;uniqueIndex:idx_gateway_payment,priority:1"`
	Amount        float64             `gorm:"column:amount;not null"`
	Currency      string              `gorm:"column:currency;not null;default:'USD'"`
	Status        enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Metadata      json.RawMessage     `gorm:"column:metadata"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PaymentTransaction) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
