package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlockedIP is the persisted backing row for the guard's IP block-list.
// A nil ExpiresAt means the block is permanent.
type BlockedIP struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	IPAddress string     `gorm:"column:ip_address;not null;unique"`
	Reason    string     `gorm:"column:reason"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (b *BlockedIP) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
