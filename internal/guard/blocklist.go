package guard

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gpuoptimizer/revenue-core/pkg/db"
	"github.com/gpuoptimizer/revenue-core/pkg/db/models"
	pkgerrors "github.com/gpuoptimizer/revenue-core/pkg/errors"
)

// BlocklistRepository persists IP blocks.
type BlocklistRepository interface {
	Upsert(ctx context.Context, block *models.BlockedIP) error
	FindByIP(ctx context.Context, ip string) (*models.BlockedIP, error)
	Delete(ctx context.Context, ip string) error
}

type blocklistRepo struct {
	db *gorm.DB
}

// NewBlocklistRepository returns a repository bound to the provided database.
func NewBlocklistRepository(conn *gorm.DB) BlocklistRepository {
	return &blocklistRepo{db: conn}
}

func (r *blocklistRepo) Upsert(ctx context.Context, block *models.BlockedIP) error {
	err := r.db.WithContext(ctx).Create(block).Error
	if err == nil {
		return nil
	}
	if !db.IsUniqueViolation(err, "ip_address") {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.BlockedIP{}).
		Where("ip_address = ?", block.IPAddress).
		Updates(map[string]any{"reason": block.Reason, "expires_at": block.ExpiresAt}).Error
}

func (r *blocklistRepo) FindByIP(ctx context.Context, ip string) (*models.BlockedIP, error) {
	var block models.BlockedIP
	err := r.db.WithContext(ctx).Where("ip_address = ?", ip).First(&block).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &block, nil
}

func (r *blocklistRepo) Delete(ctx context.Context, ip string) error {
	return r.db.WithContext(ctx).Where("ip_address = ?", ip).Delete(&models.BlockedIP{}).Error
}

// Blocklist enforces persisted IP blocks. Expired entries are treated
// as absent; a nil expiry is a permanent block.
type Blocklist struct {
	repo BlocklistRepository
	now  func() time.Time
}

// NewBlocklist wires the blocklist against its repository.
func NewBlocklist(repo BlocklistRepository) (*Blocklist, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "blocklist repository required")
	}
	return &Blocklist{repo: repo, now: time.Now}, nil
}

// IsBlocked reports whether ip has an active block.
func (b *Blocklist) IsBlocked(ctx context.Context, ip string) (bool, error) {
	block, err := b.repo.FindByIP(ctx, ip)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "blocklist lookup")
	}
	if block == nil {
		return false, nil
	}
	if block.ExpiresAt != nil && !block.ExpiresAt.After(b.now()) {
		return false, nil
	}
	return true, nil
}

// Block records an active block for ip. A zero duration blocks
// permanently.
func (b *Blocklist) Block(ctx context.Context, ip, reason string, duration time.Duration) error {
	if ip == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "ip address required")
	}

	block := &models.BlockedIP{IPAddress: ip, Reason: reason}
	if duration > 0 {
		expires := b.now().Add(duration)
		block.ExpiresAt = &expires
	}

	if err := b.repo.Upsert(ctx, block); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist ip block")
	}
	return nil
}

// Unblock removes any block for ip.
func (b *Blocklist) Unblock(ctx context.Context, ip string) error {
	if err := b.repo.Delete(ctx, ip); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove ip block")
	}
	return nil
}
