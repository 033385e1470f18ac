package gateway

import "github.com/shopspring/decimal"

// usdRates is a static conversion table used for USD-only providers.
// Rates are an approximation; an unknown currency converts 1:1.
var usdRates = map[string]decimal.Decimal{
	"EUR": decimal.NewFromFloat(1.1),
	"GBP": decimal.NewFromFloat(1.25),
	"CAD": decimal.NewFromFloat(0.75),
	"AUD": decimal.NewFromFloat(0.65),
	"JPY": decimal.NewFromFloat(0.007),
	"INR": decimal.NewFromFloat(0.012),
	"NGN": decimal.NewFromFloat(0.0024),
}

// ConvertToUSD converts amount from the named currency to USD, rounded
// to cents.
func ConvertToUSD(amount float64, currency string) float64 {
	if currency == "USD" {
		return amount
	}
	rate, ok := usdRates[currency]
	if !ok {
		rate = decimal.NewFromInt(1)
	}
	usd, _ := decimal.NewFromFloat(amount).Mul(rate).Round(2).Float64()
	return usd
}
