package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuoptimizer/revenue-core/pkg/config"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

func TestConvertToUSD(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		want     float64
	}{
		{100, "USD", 100},
		{100, "EUR", 110},
		{100, "GBP", 125},
		{100, "JPY", 0.7},
		{100, "XXX", 100}, // unknown currency passes through
		{49, "CAD", 36.75},
	}
	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			assert.InDelta(t, tt.want, ConvertToUSD(tt.amount, tt.currency), 0.001)
		})
	}
}

func TestNOWPaymentsCreate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment", r.URL.Path)
		require.Equal(t, "secret-key", r.Header.Get("x-api-key"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "USD", payload["price_currency"])
		assert.InDelta(t, 53.9, payload["price_amount"].(float64), 0.001) // 49 EUR -> USD
		assert.True(t, strings.HasPrefix(payload["order_id"].(string), "gpu_"))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"payment_id":  4521,
			"payment_url": "https://nowpayments.io/payment/4521",
		})
	}))
	defer server.Close()

	adapter := NewNOWPayments(config.NOWPaymentsConfig{APIKey: "secret-key", APIURL: server.URL}, server.Client())

	result := adapter.Create(context.Background(), CreateRequest{
		Amount:        49,
		Currency:      "EUR",
		Plan:          enums.TierProfessional,
		PlanName:      "Professional Plan",
		CustomerEmail: "buyer@example.com",
	})
	require.True(t, result.Success)
	assert.Equal(t, "4521", result.TransactionID)
	assert.Equal(t, "USD", result.Currency)
	assert.Equal(t, enums.PaymentStatusPending, result.Status)
	assert.Equal(t, "https://nowpayments.io/payment/4521", result.PaymentURL)
}

func TestNOWPaymentsVerifyMapsStatuses(t *testing.T) {
	status := "finished"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"payment_status": status})
	}))
	defer server.Close()

	adapter := NewNOWPayments(config.NOWPaymentsConfig{APIKey: "k", APIURL: server.URL}, server.Client())

	tests := []struct {
		provider string
		want     enums.PaymentStatus
	}{
		{"finished", enums.PaymentStatusCompleted},
		{"confirmed", enums.PaymentStatusCompleted},
		{"failed", enums.PaymentStatusFailed},
		{"refunded", enums.PaymentStatusFailed},
		{"expired", enums.PaymentStatusFailed},
		{"waiting", enums.PaymentStatusPending},
		{"confirming", enums.PaymentStatusPending},
	}
	for _, tt := range tests {
		status = tt.provider
		got, err := adapter.Verify(context.Background(), "4521")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.provider)
	}
}

func TestNOWPaymentsVerifyIPN(t *testing.T) {
	adapter := NewNOWPayments(config.NOWPaymentsConfig{APIKey: "k", IPNSecret: "topsecret"}, nil)

	payload := map[string]any{
		"payment_status": "finished",
		"payment_id":     "4521",
	}
	// HMAC-SHA512("topsecret", `{"payment_id":"4521","payment_status":"finished"}`)
	valid := "53ff916ca716d236a95946e28705c16b44e3465a487e5c664f601b61342877e6" +
		"8125a9b82343b8072e254985e43fae53c39c94ee6bb9b36c9bc2d3bfd44428f4"

	assert.True(t, adapter.VerifyIPN(payload, valid))
	assert.False(t, adapter.VerifyIPN(payload, strings.Repeat("0", 128)))
	assert.False(t, adapter.VerifyIPN(payload, ""))

	tampered := map[string]any{
		"payment_status": "finished",
		"payment_id":     "9999",
	}
	assert.False(t, adapter.VerifyIPN(tampered, valid))

	unconfigured := NewNOWPayments(config.NOWPaymentsConfig{APIKey: "k"}, nil)
	assert.False(t, unconfigured.VerifyIPN(payload, valid))
}

func TestMarshalSortedIsCanonical(t *testing.T) {
	payload := map[string]any{
		"zebra":  1,
		"alpha":  "x",
		"middle": true,
	}
	canonical, err := marshalSorted(payload)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"x","middle":true,"zebra":1}`, string(canonical))
}

func TestFlutterwaveCreate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.True(t, strings.HasPrefix(payload["tx_ref"].(string), "gopt_"))
		assert.Equal(t, "https://app.test/api/v1/payments/flutterwave/callback", payload["redirect_url"])

		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]string{"link": "https://checkout.flutterwave.com/pay/abc"},
		})
	}))
	defer server.Close()

	adapter := NewFlutterwave(config.FlutterwaveConfig{SecretKey: "sk-test", APIURL: server.URL}, "https://app.test", server.Client())

	result := adapter.Create(context.Background(), CreateRequest{
		Amount:        49,
		Currency:      "NGN",
		Plan:          enums.TierProfessional,
		PlanName:      "Professional Plan",
		CustomerEmail: "buyer@example.com",
	})
	require.True(t, result.Success)
	assert.True(t, strings.HasPrefix(result.TransactionID, "gopt_"))
	assert.Equal(t, "https://checkout.flutterwave.com/pay/abc", result.PaymentURL)
	assert.Equal(t, enums.PaymentStatusPending, result.Status)
}

func TestFlutterwaveCountryCoverage(t *testing.T) {
	adapter := NewFlutterwave(config.FlutterwaveConfig{SecretKey: "s"}, "https://app.test", nil)
	assert.True(t, adapter.SupportsCountry("NG"))
	assert.True(t, adapter.SupportsCountry("US"))
	assert.True(t, adapter.SupportsCountry(""))
	assert.False(t, adapter.SupportsCountry("JP"))
}

func TestPaddleCreate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/product/generate_pay_link", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "vendor-1", r.Form.Get("vendor_id"))
		assert.Equal(t, "USD:199.00", r.Form.Get("prices[0]"))

		json.NewEncoder(w).Encode(map[string]any{
			"success":  true,
			"response": map[string]string{"url": "https://pay.paddle.com/checkout/xyz789"},
		})
	}))
	defer server.Close()

	adapter := NewPaddle(config.PaddleConfig{VendorID: "vendor-1", VendorAuthCode: "auth", APIURL: server.URL}, server.Client())

	result := adapter.Create(context.Background(), CreateRequest{
		Amount:        199,
		Currency:      "USD",
		Plan:          enums.TierEnterprise,
		PlanName:      "Enterprise Plan",
		CustomerEmail: "buyer@example.com",
	})
	require.True(t, result.Success)
	assert.Equal(t, "paddle_xyz789", result.TransactionID)
	assert.Equal(t, "https://pay.paddle.com/checkout/xyz789", result.PaymentURL)
}

func TestPaddleVerifyIsWebhookOnly(t *testing.T) {
	adapter := NewPaddle(config.PaddleConfig{VendorID: "v", VendorAuthCode: "a"}, nil)
	_, err := adapter.Verify(context.Background(), "paddle_xyz789")
	require.Error(t, err)
}

func TestDemoAdapter(t *testing.T) {
	adapter := NewDemo()
	assert.True(t, adapter.Configured())

	result := adapter.Create(context.Background(), CreateRequest{Amount: 49, Currency: "USD"})
	require.True(t, result.Success)
	assert.True(t, strings.HasPrefix(result.TransactionID, "demo_"))
	assert.Equal(t, enums.PaymentStatusPending, result.Status)

	status, err := adapter.Verify(context.Background(), result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, status)
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(NewDemo(), NewNOWPayments(config.NOWPaymentsConfig{}, nil))

	_, ok := registry.Get(enums.GatewayDemo)
	assert.True(t, ok)
	assert.True(t, registry.IsConfigured(enums.GatewayDemo))
	assert.False(t, registry.IsConfigured(enums.GatewayNOWPayments), "missing api key")
	assert.False(t, registry.IsConfigured(enums.GatewayPaddle), "not registered")
}
