package enums

import "fmt"

// Gateway identifies a payment provider behind the orchestrator.
type Gateway string

const (
	GatewayNOWPayments Gateway = "nowpayments"
	GatewayFlutterwave Gateway = "flutterwave"
	GatewayPaddle      Gateway = "paddle"
	GatewayDemo        Gateway = "demo"
)

var validGateways = []Gateway{
	GatewayNOWPayments,
	GatewayFlutterwave,
	GatewayPaddle,
	GatewayDemo,
}

// IsValid reports whether the value matches the canonical gateway enum.
func (g Gateway) IsValid() bool {
	for _, candidate := range validGateways {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGateway converts the raw string to Gateway.
func ParseGateway(value string) (Gateway, error) {
	for _, candidate := range validGateways {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway %q", value)
}
