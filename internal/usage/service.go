// Package usage ingests GPU telemetry batches and maintains the
// customer savings aggregates derived from them.
package usage

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/gpuoptimizer/revenue-core/internal/identity"
	"github.com/gpuoptimizer/revenue-core/pkg/db/models"
	"github.com/gpuoptimizer/revenue-core/pkg/db/pool"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
	pkgerrors "github.com/gpuoptimizer/revenue-core/pkg/errors"
	"github.com/gpuoptimizer/revenue-core/pkg/metrics"
	"github.com/gpuoptimizer/revenue-core/pkg/pricing"
)

const (
	// idleThreshold is the utilization percentage below which a GPU is
	// classified idle for the sample.
	idleThreshold = 15.0

	// idleSavingsFactor is the share of the hourly cost recoverable by
	// shutting down or right-sizing an idle GPU.
	idleSavingsFactor = 0.5

	// defaultCostPerHour is assumed when the agent omits the cost
	// field (AWS p3.2xlarge on-demand, the most common fleet member).
	defaultCostPerHour = 3.0

	hoursPerMonth = 24 * 30
)

// Sample is one GPU's reported telemetry.
type Sample struct {
	GPUIndex    int     `json:"gpu_index" validate:"gte=0"`
	GPUName     string  `json:"gpu_name"`
	GPUUtil     float64 `json:"gpu_util" validate:"gte=0,lte=100"`
	MemUsed     float64 `json:"mem_used" validate:"gte=0"`
	MemTotal    float64 `json:"mem_total" validate:"gte=0"`
	CostPerHour float64 `json:"cost_per_hour" validate:"gte=0"`
}

// Report summarizes one accepted batch.
type Report struct {
	GPUsMonitored          int        `json:"gpus_monitored"`
	PotentialHourlySavings float64    `json:"potential_hourly_savings"`
	MonthlyProjection      float64    `json:"monthly_projection"`
	Tier                   enums.Tier `json:"tier"`
}

// Service validates and persists telemetry batches.
type Service interface {
	Ingest(ctx context.Context, apiKey string, samples []Sample) (*Report, error)
}

// ServiceParams wires usage dependencies.
type ServiceParams struct {
	Pool         *pool.Pool
	Repo         Repository
	Identity     identity.Service
	IdentityRepo identity.Repository
	Metrics      *metrics.Metrics
}

type service struct {
	pool         *pool.Pool
	repo         Repository
	identity     identity.Service
	identityRepo identity.Repository
	metrics      *metrics.Metrics
}

// NewService validates and wires the usage service.
func NewService(params ServiceParams) (Service, error) {
	if params.Pool == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "storage pool required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "usage repository required")
	}
	if params.Identity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity service required")
	}
	if params.IdentityRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity repository required")
	}
	return &service{
		pool:         params.Pool,
		repo:         params.Repo,
		identity:     params.Identity,
		identityRepo: params.IdentityRepo,
		metrics:      params.Metrics,
	}, nil
}

func (s *service) Ingest(ctx context.Context, apiKey string, samples []Sample) (*Report, error) {
	customer, err := s.identity.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid API key")
		}
		return nil, err
	}

	if len(samples) == 0 {
		s.metrics.IncUsageRejected("empty_batch")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "empty telemetry batch")
	}

	limit := pricing.GPULimit(customer.Tier)
	if len(samples) > limit {
		s.metrics.IncUsageRejected("tier_limit")
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("%s tier is limited to %d GPUs per batch", customer.Tier, limit))
	}

	for _, sample := range samples {
		if sample.GPUUtil < 0 || sample.GPUUtil > 100 {
			s.metrics.IncUsageRejected("bad_utilization")
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "gpu_util must be between 0 and 100")
		}
	}

	records := make([]models.UsageRecord, 0, len(samples))
	hourlySavings := 0.0
	for _, sample := range samples {
		costPerHour := sample.CostPerHour
		if costPerHour <= 0 {
			costPerHour = defaultCostPerHour
		}

		potential := 0.0
		if sample.GPUUtil < idleThreshold {
			potential = costPerHour * idleSavingsFactor
			hourlySavings += potential
		}

		records = append(records, models.UsageRecord{
			CustomerEmail:    customer.Email,
			GPUIndex:         sample.GPUIndex,
			GPUName:          sample.GPUName,
			GPUUtil:          sample.GPUUtil,
			MemUsed:          sample.MemUsed,
			MemTotal:         sample.MemTotal,
			CostPerHour:      costPerHour,
			PotentialSavings: potential,
		})
	}

	monthlyProjection := hourlySavings * hoursPerMonth

	client, pooled, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(client, pooled)

	// One transaction covers the batch insert and the aggregate
	// update; a crash mid-operation applies neither.
	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateBatch(ctx, records); err != nil {
			return err
		}
		affected, err := s.identityRepo.WithTx(tx).
			UpdateUsageAggregates(ctx, customer.Email, len(records), monthlyProjection)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist telemetry batch")
	}

	// GPU count and savings changed; drop cached copies.
	s.identity.InvalidateCache(customer)
	s.metrics.IncUsageIngested(len(records))

	return &Report{
		GPUsMonitored:          len(records),
		PotentialHourlySavings: hourlySavings,
		MonthlyProjection:      monthlyProjection,
		Tier:                   customer.Tier,
	}, nil
}
