package controllers

import (
	"net/http"

	"github.com/gpuoptimizer/revenue-core/api/responses"
	"github.com/gpuoptimizer/revenue-core/api/validators"
	"github.com/gpuoptimizer/revenue-core/internal/payments"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
	pkgerrors "github.com/gpuoptimizer/revenue-core/pkg/errors"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
)

type paymentCreateRequest struct {
	CustomerEmail string `json:"customer_email" validate:"required"`
	Plan          string `json:"plan" validate:"required"`
	Currency      string `json:"currency,omitempty"`
	Gateway       string `json:"gateway,omitempty"`
	CountryCode   string `json:"country_code,omitempty"`
}

func PaymentCreate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req paymentCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := enums.ParseTier(req.Plan)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan"))
			return
		}

		result, err := svc.CreatePayment(ctx, payments.CreateParams{
			CustomerEmail: req.CustomerEmail,
			Plan:          plan,
			Currency:      req.Currency,
			Gateway:       enums.Gateway(req.Gateway),
			CountryCode:   req.CountryCode,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusCreated
		if !result.Success {
			status = http.StatusBadGateway
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func GatewayList(svc payments.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		country := r.URL.Query().Get("country")
		responses.WriteSuccess(w, map[string]any{
			"gateways": svc.AvailableGateways(country),
		})
	}
}

// FlutterwaveCallback lands the customer's redirect. The transaction
// is re-verified against the provider; the query parameters are never
// trusted on their own.
func FlutterwaveCallback(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		transactionID := r.URL.Query().Get("transaction_id")
		txRef := r.URL.Query().Get("tx_ref")
		if transactionID == "" || txRef == "" {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "transaction_id and tx_ref are required"))
			return
		}

		if err := svc.VerifyFlutterwaveCallback(ctx, transactionID, txRef); err != nil {
			// Repeated redirects after completion are expected.
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				responses.WriteSuccess(w, map[string]string{"status": "already processed"})
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "verified"})
	}
}
