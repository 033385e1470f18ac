package enums

import "fmt"

// RevenueEventType is the canonical event_type for the revenue audit log.
type RevenueEventType string

const (
	RevenueEventSignup  RevenueEventType = "signup"
	RevenueEventUpgrade RevenueEventType = "upgrade"
	RevenueEventPayment RevenueEventType = "payment"
	RevenueEventChurn   RevenueEventType = "churn"
)

var validRevenueEventTypes = []RevenueEventType{
	RevenueEventSignup,
	RevenueEventUpgrade,
	RevenueEventPayment,
	RevenueEventChurn,
}

// IsValid reports whether the value matches the canonical revenue event enum.
func (r RevenueEventType) IsValid() bool {
	for _, candidate := range validRevenueEventTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRevenueEventType converts the raw string to RevenueEventType.
func ParseRevenueEventType(value string) (RevenueEventType, error) {
	for _, candidate := range validRevenueEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid revenue event type %q", value)
}
