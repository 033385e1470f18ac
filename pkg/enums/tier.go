package enums

import "fmt"

// Tier describes the allowed subscription levels for a customer.
type Tier string

const (
	TierFree         Tier = "free"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
	TierCustom       Tier = "custom"
)

var validTiers = []Tier{
	TierFree,
	TierProfessional,
	TierEnterprise,
	TierCustom,
}

// IsValid reports whether the value matches the canonical tier enum.
func (t Tier) IsValid() bool {
	for _, candidate := range validTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsPaid reports whether the tier is anything beyond the free plan.
func (t Tier) IsPaid() bool {
	return t.IsValid() && t != TierFree
}

// ParseTier converts the raw string to Tier.
func ParseTier(value string) (Tier, error) {
	for _, candidate := range validTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tier %q", value)
}
