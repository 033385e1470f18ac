// Package payments orchestrates the payment lifecycle across the
// registered gateways: deterministic selection, transaction
// persistence, and the monotone pending-to-terminal confirmation path
// that ultimately upgrades the customer.
package payments

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/gpuoptimizer/revenue-core/internal/identity"
	"github.com/gpuoptimizer/revenue-core/internal/payments/gateway"
	"github.com/gpuoptimizer/revenue-core/pkg/db/models"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
	pkgerrors "github.com/gpuoptimizer/revenue-core/pkg/errors"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
	"github.com/gpuoptimizer/revenue-core/pkg/metrics"
	"github.com/gpuoptimizer/revenue-core/pkg/pricing"
	"github.com/gpuoptimizer/revenue-core/pkg/redis"
)

// ipnDedupTTL bounds how long a processed webhook event id is
// remembered for replay suppression.
const ipnDedupTTL = 24 * time.Hour

// Service is the payment orchestrator.
type Service interface {
	CreatePayment(ctx context.Context, params CreateParams) (*gateway.Result, error)
	AvailableGateways(countryCode string) []GatewayInfo
	ConfirmTransaction(ctx context.Context, gw enums.Gateway, paymentID string, verified enums.PaymentStatus) error
	HandleNOWPaymentsIPN(ctx context.Context, payload map[string]any, signature string) error
	VerifyFlutterwaveCallback(ctx context.Context, transactionID, txRef string) error
}

// CreateParams describe one payment creation.
type CreateParams struct {
	CustomerEmail string
	Plan          enums.Tier
	Currency      string
	Gateway       enums.Gateway
	CountryCode   string
}

// GatewayInfo is the public listing entry for one provider.
type GatewayInfo struct {
	ID          enums.Gateway `json:"id"`
	Name        string        `json:"name"`
	Currencies  []string      `json:"currencies"`
	Fees        string        `json:"fees"`
	Recommended bool          `json:"recommended"`
}

// ServiceParams wires payment dependencies.
type ServiceParams struct {
	Repo        Repository
	Identity    identity.Service
	Registry    *gateway.Registry
	NOWPayments *gateway.NOWPayments
	Idempotency redis.IdempotencyStore
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
}

type service struct {
	repo        Repository
	identity    identity.Service
	registry    *gateway.Registry
	nowpayments *gateway.NOWPayments
	idempotency redis.IdempotencyStore
	metrics     *metrics.Metrics
	logg        *logger.Logger
}

// NewService validates and wires the payment orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if params.Identity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity service required")
	}
	if params.Registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway registry required")
	}
	return &service{
		repo:        params.Repo,
		identity:    params.Identity,
		registry:    params.Registry,
		nowpayments: params.NOWPayments,
		idempotency: params.Idempotency,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

func (s *service) CreatePayment(ctx context.Context, params CreateParams) (*gateway.Result, error) {
	customer, err := s.identity.GetByEmail(ctx, params.CustomerEmail)
	if err != nil {
		return nil, err
	}

	plan, ok := pricing.PlanFor(params.Plan)
	if !ok || !params.Plan.IsPaid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan")
	}

	currency := params.Currency
	if currency == "" {
		currency = "USD"
	}

	gatewayID := params.Gateway
	if gatewayID == "" {
		gatewayID = SelectGateway(s.registry, params.CountryCode)
	} else if !gatewayID.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown gateway")
	}

	adapter, ok := s.registry.Get(gatewayID)
	if !ok || !adapter.Configured() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway not configured")
	}

	price, _ := plan.PriceUSD.Float64()
	result := adapter.Create(ctx, gateway.CreateRequest{
		Amount:        price,
		Currency:      currency,
		Plan:          params.Plan,
		PlanName:      plan.Name,
		CustomerEmail: customer.Email,
	})

	s.metrics.IncPayment(string(result.Gateway), string(result.Status))

	if !result.Success {
		if s.logg != nil {
			logCtx := s.logg.WithGateway(ctx, string(result.Gateway))
			logCtx = s.logg.WithCustomerEmail(logCtx, customer.Email)
			s.logg.Warn(logCtx, "gateway payment creation failed")
		}
		return result, nil
	}

	metadata, _ := json.Marshal(map[string]any{
		"plan":        string(params.Plan),
		"gateway":     string(result.Gateway),
		"payment_url": result.PaymentURL,
	})
	txn := &models.PaymentTransaction{
		CustomerEmail: customer.Email,
		PaymentID:     result.TransactionID,
		Gateway:       result.Gateway,
		Amount:        result.Amount,
		Currency:      result.Currency,
		Status:        enums.PaymentStatusPending,
		Metadata:      metadata,
	}
	if err := s.repo.Upsert(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment transaction")
	}

	return result, nil
}

// AvailableGateways lists the configured providers serving the
// country, the demo provider when nothing real is configured, ordered
// by listing preference.
func (s *service) AvailableGateways(countryCode string) []GatewayInfo {
	var available []GatewayInfo
	for _, id := range listingOrder {
		if id == enums.GatewayDemo {
			continue
		}
		adapter, ok := s.registry.Get(id)
		if !ok || !adapter.Configured() || !adapter.SupportsCountry(countryCode) {
			continue
		}
		available = append(available, GatewayInfo{
			ID:          id,
			Name:        adapter.DisplayName(),
			Currencies:  adapter.Currencies(),
			Fees:        adapter.Fees(),
			Recommended: id == enums.GatewayNOWPayments,
		})
	}

	if len(available) == 0 {
		if demo, ok := s.registry.Get(enums.GatewayDemo); ok {
			available = append(available, GatewayInfo{
				ID:          enums.GatewayDemo,
				Name:        demo.DisplayName(),
				Currencies:  demo.Currencies(),
				Fees:        demo.Fees(),
				Recommended: true,
			})
		}
	}
	return available
}

func (s *service) ConfirmTransaction(ctx context.Context, gw enums.Gateway, paymentID string, verified enums.PaymentStatus) error {
	if !verified.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "confirmation requires a terminal status")
	}

	txn, err := s.repo.FindByGatewayAndPaymentID(ctx, gw, paymentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transaction lookup")
	}
	if txn == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}

	if !txn.Status.CanTransitionTo(verified) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not pending").
			WithDetails(map[string]string{"current": string(txn.Status), "requested": string(verified)})
	}

	transition := func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).TransitionStatus(ctx, gw, paymentID, enums.PaymentStatusPending, verified, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition payment status")
		}
		if affected == 0 {
			// Lost the race to a concurrent confirmation.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not pending")
		}
		return nil
	}

	if verified != enums.PaymentStatusCompleted {
		return transition(nil)
	}

	plan := planFromMetadata(txn.Metadata)
	if plan == "" {
		if s.logg != nil {
			s.logg.Error(ctx, "completed transaction has no plan metadata", nil)
		}
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction metadata missing plan")
	}

	// The status transition rides the upgrade transaction: a failed tier
	// update leaves the row pending so the confirmation can be retried.
	return s.identity.ApplyPaymentCompletion(ctx, txn.CustomerEmail, plan, paymentID, transition)
}

func (s *service) HandleNOWPaymentsIPN(ctx context.Context, payload map[string]any, signature string) error {
	if s.nowpayments == nil || !s.nowpayments.VerifyIPN(payload, signature) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid IPN signature")
	}

	paymentID := stringField(payload, "payment_id")
	if paymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "IPN payload missing payment_id")
	}

	var dedupKey string
	if s.idempotency != nil {
		dedupKey = s.idempotency.IdempotencyKey("nowpayments", paymentID+":"+stringField(payload, "payment_status"))
		fresh, err := s.idempotency.SetNX(ctx, dedupKey, "1", ipnDedupTTL)
		if err == nil && !fresh {
			// Replayed delivery, already processed.
			return nil
		}
	}

	var verified enums.PaymentStatus
	switch stringField(payload, "payment_status") {
	case "finished", "confirmed":
		verified = enums.PaymentStatusCompleted
	case "failed", "refunded", "expired":
		verified = enums.PaymentStatusFailed
	default:
		// Intermediate states carry no transition.
		return nil
	}

	if err := s.ConfirmTransaction(ctx, enums.GatewayNOWPayments, paymentID, verified); err != nil {
		// A failed confirmation releases the mark; the gateway's retry
		// must be processed, not suppressed.
		if s.idempotency != nil {
			if delErr := s.idempotency.Del(ctx, dedupKey); delErr != nil && s.logg != nil {
				logCtx := s.logg.WithField(ctx, "error", delErr.Error())
				s.logg.Warn(logCtx, "failed to release IPN dedup mark")
			}
		}
		return err
	}
	return nil
}

// VerifyFlutterwaveCallback re-verifies the redirect against the
// provider before transitioning; redirect parameters alone are never
// trusted.
func (s *service) VerifyFlutterwaveCallback(ctx context.Context, transactionID, txRef string) error {
	adapter, ok := s.registry.Get(enums.GatewayFlutterwave)
	if !ok || !adapter.Configured() {
		return pkgerrors.New(pkgerrors.CodeValidation, "flutterwave not configured")
	}

	verified, err := adapter.Verify(ctx, transactionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flutterwave verification")
	}
	if !verified.IsTerminal() {
		return nil
	}

	return s.ConfirmTransaction(ctx, enums.GatewayFlutterwave, txRef, verified)
}

func planFromMetadata(raw json.RawMessage) enums.Tier {
	if len(raw) == 0 {
		return ""
	}
	var meta struct {
		Plan string `json:"plan"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	tier, err := enums.ParseTier(meta.Plan)
	if err != nil {
		return ""
	}
	return tier
}

func stringField(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		// NOWPayments sends payment_id as a bare number.
		raw, _ := json.Marshal(v)
		return string(raw)
	default:
		return ""
	}
}
