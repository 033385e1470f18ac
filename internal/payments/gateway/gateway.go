// Package gateway defines the payment provider adapter surface and
// the concrete NOWPayments, Flutterwave, Paddle and demo adapters. A
// registry of adapters replaces per-provider branching in the
// orchestrator.
package gateway

import (
	"context"

	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

// CreateRequest carries everything an adapter needs to start a payment.
type CreateRequest struct {
	Amount        float64
	Currency      string
	Plan          enums.Tier
	PlanName      string
	CustomerEmail string
}

// Result is the uniform outcome of a create call. Adapter failures are
// expressed as Success=false results, never as raw errors escaping the
// adapter boundary.
type Result struct {
	Success       bool                `json:"success"`
	TransactionID string              `json:"payment_id,omitempty"`
	Amount        float64             `json:"amount"`
	Currency      string              `json:"currency"`
	Gateway       enums.Gateway       `json:"gateway"`
	Status        enums.PaymentStatus `json:"status"`
	Message       string              `json:"message"`
	PaymentURL    string              `json:"payment_url,omitempty"`
}

// Adapter is one payment provider behind the orchestrator.
type Adapter interface {
	// Name returns the stable gateway identifier.
	Name() enums.Gateway

	// DisplayName returns the human-readable provider name.
	DisplayName() string

	// Configured reports whether every mandatory credential is set.
	Configured() bool

	// SupportsCountry reports whether the provider serves the ISO
	// country code. Empty code means "anywhere".
	SupportsCountry(code string) bool

	// Currencies lists the provider's settlement currencies.
	Currencies() []string

	// Fees is the provider's advertised fee line.
	Fees() string

	// Create starts a payment. Provider-side failures come back as a
	// failed Result with a nil error.
	Create(ctx context.Context, req CreateRequest) *Result

	// Verify fetches the provider-side status for a transaction.
	Verify(ctx context.Context, transactionID string) (enums.PaymentStatus, error)
}

// Registry holds the configured adapters keyed by gateway id.
type Registry struct {
	adapters map[enums.Gateway]Adapter
}

// NewRegistry indexes the provided adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	indexed := make(map[enums.Gateway]Adapter, len(adapters))
	for _, adapter := range adapters {
		indexed[adapter.Name()] = adapter
	}
	return &Registry{adapters: indexed}
}

// Get returns the adapter for id.
func (r *Registry) Get(id enums.Gateway) (Adapter, bool) {
	adapter, ok := r.adapters[id]
	return adapter, ok
}

// IsConfigured reports whether the gateway exists and has credentials.
func (r *Registry) IsConfigured(id enums.Gateway) bool {
	adapter, ok := r.adapters[id]
	return ok && adapter.Configured()
}

func failedResult(name enums.Gateway, req CreateRequest, message string) *Result {
	return &Result{
		Success:  false,
		Amount:   req.Amount,
		Currency: req.Currency,
		Gateway:  name,
		Status:   enums.PaymentStatusFailed,
		Message:  message,
	}
}
