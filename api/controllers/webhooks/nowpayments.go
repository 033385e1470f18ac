package webhooks

import (
	"encoding/json"
	"net/http"

	"github.com/gpuoptimizer/revenue-core/api/responses"
	"github.com/gpuoptimizer/revenue-core/internal/payments"
	pkgerrors "github.com/gpuoptimizer/revenue-core/pkg/errors"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
)

const nowpaymentsSigHeader = "x-nowpayments-sig"

// NOWPaymentsIPN receives instant payment notifications. The payload
// is decoded with UseNumber so numeric fields survive the canonical
// re-serialization the signature check performs.
func NOWPaymentsIPN(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		decoder := json.NewDecoder(r.Body)
		decoder.UseNumber()

		var payload map[string]any
		if err := decoder.Decode(&payload); err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid IPN payload"))
			return
		}

		signature := r.Header.Get(nowpaymentsSigHeader)
		if err := svc.HandleNOWPaymentsIPN(ctx, payload, signature); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
