package payments

import (
	"github.com/gpuoptimizer/revenue-core/internal/payments/gateway"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

var (
	africanMarkets = map[string]struct{}{
		"NG": {}, "GH": {}, "KE": {}, "UG": {}, "ZA": {}, "TZ": {}, "RW": {}, "ZM": {},
	}
	developedMarkets = map[string]struct{}{
		"US": {}, "GB": {}, "CA": {}, "AU": {}, "FR": {}, "DE": {}, "IT": {}, "ES": {},
		"NL": {}, "BE": {}, "CH": {}, "SE": {}, "DK": {}, "NO": {}, "FI": {}, "BR": {}, "MX": {},
	}

	// globalPriority orders the fallback when no regional rule applies.
	globalPriority = []enums.Gateway{
		enums.GatewayFlutterwave,
		enums.GatewayNOWPayments,
		enums.GatewayPaddle,
	}

	// listingOrder ranks the public gateway listing.
	listingOrder = []enums.Gateway{
		enums.GatewayNOWPayments,
		enums.GatewayPaddle,
		enums.GatewayFlutterwave,
		enums.GatewayDemo,
	}
)

// SelectGateway picks the preferred configured gateway for the
// country, deterministically: regional rules first, then the global
// priority order, and the demo gateway when nothing is configured.
func SelectGateway(registry *gateway.Registry, countryCode string) enums.Gateway {
	if countryCode != "" {
		if _, ok := africanMarkets[countryCode]; ok {
			if registry.IsConfigured(enums.GatewayFlutterwave) {
				return enums.GatewayFlutterwave
			}
		}
		if _, ok := developedMarkets[countryCode]; ok {
			if registry.IsConfigured(enums.GatewayFlutterwave) {
				return enums.GatewayFlutterwave
			}
			if registry.IsConfigured(enums.GatewayPaddle) {
				return enums.GatewayPaddle
			}
		}
	}

	for _, id := range globalPriority {
		if registry.IsConfigured(id) {
			return id
		}
	}

	return enums.GatewayDemo
}
