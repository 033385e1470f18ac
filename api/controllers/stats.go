package controllers

import (
	"net/http"

	"github.com/gpuoptimizer/revenue-core/api/responses"
	"github.com/gpuoptimizer/revenue-core/internal/revenue"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
)

func Stats(svc revenue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		stats, err := svc.Stats(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, stats)
	}
}
