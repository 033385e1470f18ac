// Package revenue keeps the append-only revenue audit log and serves
// the business stats endpoint from it.
package revenue

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/gpuoptimizer/revenue-core/pkg/enums"
	pkgerrors "github.com/gpuoptimizer/revenue-core/pkg/errors"
	"github.com/gpuoptimizer/revenue-core/pkg/pricing"
)

// Service exposes revenue reporting.
type Service interface {
	Stats(ctx context.Context) (*Stats, error)
}

// Stats is the aggregate business snapshot.
type Stats struct {
	CustomersByTier         map[enums.Tier]int64 `json:"customers_by_tier"`
	MonthlyRecurringRevenue decimal.Decimal      `json:"monthly_recurring_revenue"`
	TotalCustomerSavings    float64              `json:"total_customer_savings"`
	DailySignups            []DailyCount         `json:"daily_signups"`
	ConversionRate          float64              `json:"conversion_rate"`
}

type service struct {
	repo Repository
}

// NewService wires revenue reporting dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "revenue repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	byTier, err := s.repo.CustomersByTier(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count customers by tier")
	}

	savings, err := s.repo.TotalSavings(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum customer savings")
	}

	signups, err := s.repo.DailySignups(ctx, 30)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list daily signups")
	}

	// MRR counts professional and enterprise subscriptions; custom
	// contracts are invoiced out of band.
	mrr := decimal.Zero
	for _, tier := range []enums.Tier{enums.TierProfessional, enums.TierEnterprise} {
		if price, ok := pricing.PriceUSD(tier); ok {
			mrr = mrr.Add(price.Mul(decimal.NewFromInt(byTier[tier])))
		}
	}

	total := int64(0)
	for _, count := range byTier {
		total += count
	}
	paid := byTier[enums.TierProfessional] + byTier[enums.TierEnterprise]
	conversion := 0.0
	if total > 0 {
		conversion = float64(paid) / float64(total) * 100
	}

	return &Stats{
		CustomersByTier:         byTier,
		MonthlyRecurringRevenue: mrr,
		TotalCustomerSavings:    savings,
		DailySignups:            signups,
		ConversionRate:          conversion,
	}, nil
}
