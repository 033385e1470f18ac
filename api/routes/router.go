package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gpuoptimizer/revenue-core/api/controllers"
	webhookcontrollers "github.com/gpuoptimizer/revenue-core/api/controllers/webhooks"
	"github.com/gpuoptimizer/revenue-core/api/middleware"
	"github.com/gpuoptimizer/revenue-core/internal/guard"
	"github.com/gpuoptimizer/revenue-core/internal/identity"
	"github.com/gpuoptimizer/revenue-core/internal/payments"
	"github.com/gpuoptimizer/revenue-core/internal/revenue"
	"github.com/gpuoptimizer/revenue-core/internal/usage"
	"github.com/gpuoptimizer/revenue-core/pkg/config"
	"github.com/gpuoptimizer/revenue-core/pkg/db"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
	"github.com/gpuoptimizer/revenue-core/pkg/metrics"
	"github.com/gpuoptimizer/revenue-core/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Redis     *redis.Client
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Limiter   *guard.RateLimiter
	Blocklist *guard.Blocklist

	Identity identity.Service
	Usage    usage.Service
	Payments payments.Service
	Revenue  revenue.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(),
	)

	// A nil *redis.Client must reach the handler as a nil interface.
	var redisPinger controllers.Pinger
	if deps.Redis != nil {
		redisPinger = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.IPBlock(deps.Blocklist, deps.Metrics, logg))

		r.With(middleware.RateLimit(deps.Limiter, "signup",
			cfg.RateLimit.SignupLimit, cfg.RateLimit.SignupWindow, deps.Metrics, logg)).
			Post("/signup", controllers.Signup(deps.Identity, logg))

		r.With(
			middleware.APIKeyAuth(logg),
			middleware.RateLimit(deps.Limiter, "usage",
				cfg.RateLimit.UsageLimit, cfg.RateLimit.UsageWindow, deps.Metrics, logg),
		).Post("/usage", controllers.Usage(deps.Usage, logg))

		r.Route("/payments", func(r chi.Router) {
			r.With(middleware.RateLimit(deps.Limiter, "payment",
				cfg.RateLimit.PaymentLimit, cfg.RateLimit.PaymentWindow, deps.Metrics, logg)).
				Post("/", controllers.PaymentCreate(deps.Payments, logg))
			r.Get("/gateways", controllers.GatewayList(deps.Payments))
			r.Get("/flutterwave/callback", controllers.FlutterwaveCallback(deps.Payments, logg))
		})

		r.Post("/webhooks/nowpayments", webhookcontrollers.NOWPaymentsIPN(deps.Payments, logg))

		r.Get("/stats", controllers.Stats(deps.Revenue, logg))
	})

	return r
}
