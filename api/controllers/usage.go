package controllers

import (
	"net/http"

	"github.com/gpuoptimizer/revenue-core/api/middleware"
	"github.com/gpuoptimizer/revenue-core/api/responses"
	"github.com/gpuoptimizer/revenue-core/api/validators"
	"github.com/gpuoptimizer/revenue-core/internal/usage"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
)

type usageRequest struct {
	// APIKey is the body-field fallback for agents that cannot set
	// headers; the Authorization header wins when both are present.
	APIKey  string         `json:"api_key,omitempty"`
	GPUData []usage.Sample `json:"gpu_data" validate:"required,dive"`
}

func Usage(svc usage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req usageRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		key := middleware.APIKeyFromContext(ctx)
		if key == "" {
			key = req.APIKey
		}

		report, err := svc.Ingest(ctx, key, req.GPUData)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}
