package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/gpuoptimizer/revenue-core/pkg/config"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

// NOWPayments accepts 100+ cryptocurrencies and settles in USD, so
// every create call converts to USD first. It serves any country.
type NOWPayments struct {
	cfg     config.NOWPaymentsConfig
	baseURL string
	client  *http.Client
}

// NewNOWPayments wires the crypto adapter.
func NewNOWPayments(cfg config.NOWPaymentsConfig, client *http.Client) *NOWPayments {
	if client == nil {
		client = http.DefaultClient
	}
	return &NOWPayments{cfg: cfg, baseURL: strings.TrimRight(cfg.APIURL, "/"), client: client}
}

func (n *NOWPayments) Name() enums.Gateway         { return enums.GatewayNOWPayments }
func (n *NOWPayments) DisplayName() string         { return "Crypto Payments" }
func (n *NOWPayments) Configured() bool            { return n.cfg.APIKey != "" }
func (n *NOWPayments) Fees() string                { return "0.5%" }
func (n *NOWPayments) SupportsCountry(string) bool { return true }

func (n *NOWPayments) Currencies() []string {
	return []string{"BTC", "ETH", "USDT", "USDC", "LTC", "BCH", "XRP", "ADA", "DOT", "LINK", "UNI"}
}

type nowCreateResponse struct {
	PaymentID  json.Number `json:"payment_id"`
	PaymentURL string      `json:"payment_url"`
}

type nowStatusResponse struct {
	PaymentStatus string `json:"payment_status"`
}

func (n *NOWPayments) Create(ctx context.Context, req CreateRequest) *Result {
	usdAmount := ConvertToUSD(req.Amount, req.Currency)
	orderID := "gpu_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	payload := map[string]any{
		"price_amount":      usdAmount,
		"price_currency":    "USD",
		"pay_currency":      "btc",
		"order_id":          orderID,
		"order_description": fmt.Sprintf("GPUOptimizer %s", req.PlanName),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return failedResult(n.Name(), req, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/payment", bytes.NewReader(body))
	if err != nil {
		return failedResult(n.Name(), req, err.Error())
	}
	httpReq.Header.Set("x-api-key", n.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return failedResult(n.Name(), req, err.Error())
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return failedResult(n.Name(), req, fmt.Sprintf("NOWPayments API error: %s", raw))
	}

	var created nowCreateResponse
	if err := json.Unmarshal(raw, &created); err != nil {
		return failedResult(n.Name(), req, err.Error())
	}

	return &Result{
		Success:       true,
		TransactionID: created.PaymentID.String(),
		Amount:        usdAmount,
		Currency:      "USD",
		Gateway:       n.Name(),
		Status:        enums.PaymentStatusPending,
		Message:       "Crypto payment created successfully",
		PaymentURL:    created.PaymentURL,
	}
}

func (n *NOWPayments) Verify(ctx context.Context, transactionID string) (enums.PaymentStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/payment/"+transactionID, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("x-api-key", n.cfg.APIKey)

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("NOWPayments status check failed: %s", raw)
	}

	var status nowStatusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		return "", err
	}

	switch status.PaymentStatus {
	case "finished", "confirmed":
		return enums.PaymentStatusCompleted, nil
	case "failed", "refunded", "expired":
		return enums.PaymentStatusFailed, nil
	default:
		return enums.PaymentStatusPending, nil
	}
}

// VerifyIPN checks the x-nowpayments-sig header: HMAC-SHA512 over the
// payload re-serialized with alphabetically sorted keys and compact
// separators.
func (n *NOWPayments) VerifyIPN(payload map[string]any, signature string) bool {
	if n.cfg.IPNSecret == "" || signature == "" {
		return false
	}

	canonical, err := marshalSorted(payload)
	if err != nil {
		return false
	}

	mac := hmac.New(sha512.New, []byte(n.cfg.IPNSecret))
	mac.Write(canonical)
	expected := hex.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// marshalSorted renders the map as compact JSON with keys in
// alphabetical order, matching the provider's signing convention.
func marshalSorted(payload map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valJSON, err := json.Marshal(payload[k])
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
