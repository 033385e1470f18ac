// Package pricing holds the subscription plan catalog: USD monthly
// prices and the per-batch GPU ceiling each tier buys.
package pricing

import (
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
	"github.com/shopspring/decimal"
)

// Plan describes one purchasable subscription level.
type Plan struct {
	Tier     enums.Tier
	Name     string
	PriceUSD decimal.Decimal
	GPULimit int
}

var plans = map[enums.Tier]Plan{
	enums.TierFree: {
		Tier:     enums.TierFree,
		Name:     "Free Plan",
		PriceUSD: decimal.Zero,
		GPULimit: 2,
	},
	enums.TierProfessional: {
		Tier:     enums.TierProfessional,
		Name:     "Professional Plan",
		PriceUSD: decimal.NewFromInt(49),
		GPULimit: 10,
	},
	enums.TierEnterprise: {
		Tier:     enums.TierEnterprise,
		Name:     "Enterprise Plan",
		PriceUSD: decimal.NewFromInt(199),
		GPULimit: 100,
	},
	enums.TierCustom: {
		Tier:     enums.TierCustom,
		Name:     "Custom Plan",
		PriceUSD: decimal.NewFromInt(499),
		GPULimit: 1000,
	},
}

// PlanFor returns the catalog entry for the tier.
func PlanFor(tier enums.Tier) (Plan, bool) {
	plan, ok := plans[tier]
	return plan, ok
}

// GPULimit returns the per-batch ceiling for the tier. Unknown tiers
// fall back to the free ceiling so a corrupted row never grants an
// unbounded batch.
func GPULimit(tier enums.Tier) int {
	if plan, ok := plans[tier]; ok {
		return plan.GPULimit
	}
	return plans[enums.TierFree].GPULimit
}

// PriceUSD returns the monthly USD price for the tier.
func PriceUSD(tier enums.Tier) (decimal.Decimal, bool) {
	plan, ok := plans[tier]
	return plan.PriceUSD, ok
}

// PaidPlans lists the purchasable tiers in ascending price order.
func PaidPlans() []Plan {
	return []Plan{
		plans[enums.TierProfessional],
		plans[enums.TierEnterprise],
		plans[enums.TierCustom],
	}
}
