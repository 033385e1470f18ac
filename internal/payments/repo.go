package payments

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/gpuoptimizer/revenue-core/pkg/db"
	"github.com/gpuoptimizer/revenue-core/pkg/db/models"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

// Repository persists payment transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, txn *models.PaymentTransaction) error
	FindByGatewayAndPaymentID(ctx context.Context, gw enums.Gateway, paymentID string) (*models.PaymentTransaction, error)
	TransitionStatus(ctx context.Context, gw enums.Gateway, paymentID string, from, to enums.PaymentStatus, metadata json.RawMessage) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repositoryImpl{db: conn}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// Upsert inserts the transaction or refreshes an existing row keyed by
// (gateway, payment_id). Retried gateway calls and replayed webhook
// deliveries land on the same row.
func (r *repositoryImpl) Upsert(ctx context.Context, txn *models.PaymentTransaction) error {
	err := r.db.WithContext(ctx).Create(txn).Error
	if err == nil {
		return nil
	}
	if !db.IsUniqueViolation(err, "idx_gateway_payment") {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("gateway = ? AND payment_id = ?", txn.Gateway, txn.PaymentID).
		Updates(map[string]any{
			"amount":   txn.Amount,
			"currency": txn.Currency,
			"metadata": txn.Metadata,
		}).Error
}

func (r *repositoryImpl) FindByGatewayAndPaymentID(ctx context.Context, gw enums.Gateway, paymentID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND payment_id = ?", gw, paymentID).
		First(&txn).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// TransitionStatus applies a guarded status update; the WHERE clause
// on the current status makes concurrent confirmations race-safe.
func (r *repositoryImpl) TransitionStatus(ctx context.Context, gw enums.Gateway, paymentID string, from, to enums.PaymentStatus, metadata json.RawMessage) (int64, error) {
	updates := map[string]any{"status": to}
	if len(metadata) > 0 {
		updates["metadata"] = metadata
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("gateway = ? AND payment_id = ? AND status = ?", gw, paymentID, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}
