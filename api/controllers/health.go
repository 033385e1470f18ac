package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gpuoptimizer/revenue-core/api/responses"
	"github.com/gpuoptimizer/revenue-core/pkg/config"
	pkgerrors "github.com/gpuoptimizer/revenue-core/pkg/errors"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
)

// Pinger is the health-check surface a dependency must expose.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-GPUOptimizer-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the hard dependencies. Redis is optional wiring;
// a nil client is simply reported as disabled.
func HealthReady(cfg *config.Config, logg *logger.Logger, database, redisClient Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-GPUOptimizer-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}

		if err := database.Ping(ctx); err != nil {
			checks["database"] = "unreachable"
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable").WithDetails(checks))
			return
		}
		checks["database"] = "ok"

		if redisClient == nil {
			checks["redis"] = "disabled"
		} else if err := redisClient.Ping(ctx); err != nil {
			checks["redis"] = "unreachable"
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable").WithDetails(checks))
			return
		} else {
			checks["redis"] = "ok"
		}

		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
