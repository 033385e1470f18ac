package gateway

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

// Demo simulates a provider when nothing real is configured, so the
// full payment flow stays testable in development.
type Demo struct{}

// NewDemo returns the demo adapter.
func NewDemo() *Demo { return &Demo{} }

func (d *Demo) Name() enums.Gateway         { return enums.GatewayDemo }
func (d *Demo) DisplayName() string         { return "Demo Payment (Testing)" }
func (d *Demo) Configured() bool            { return true }
func (d *Demo) Fees() string                { return "0% (Demo)" }
func (d *Demo) SupportsCountry(string) bool { return true }

func (d *Demo) Currencies() []string {
	return []string{"USD", "EUR", "GBP"}
}

func (d *Demo) Create(_ context.Context, req CreateRequest) *Result {
	txID := "demo_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return &Result{
		Success:       true,
		TransactionID: txID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Gateway:       d.Name(),
		Status:        enums.PaymentStatusPending,
		Message:       "Demo payment created - this is for testing only",
		PaymentURL:    "https://demo-payment.gpuoptimizer.com/pay/" + txID,
	}
}

func (d *Demo) Verify(context.Context, string) (enums.PaymentStatus, error) {
	// Demo payments complete instantly on verification.
	return enums.PaymentStatusCompleted, nil
}
