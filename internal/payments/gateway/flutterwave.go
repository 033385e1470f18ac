package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gpuoptimizer/revenue-core/pkg/config"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

var flutterwaveCountries = map[string]struct{}{
	"NG": {}, "GH": {}, "KE": {}, "UG": {}, "ZA": {}, "TZ": {}, "RW": {}, "ZM": {},
	"US": {}, "GB": {}, "CA": {}, "AU": {}, "FR": {}, "DE": {}, "IT": {}, "ES": {},
	"NL": {}, "BE": {}, "CH": {}, "SE": {}, "DK": {}, "NO": {}, "FI": {},
	"BR": {}, "MX": {}, "AR": {},
}

// Flutterwave covers cards, mobile money and bank transfers across
// Africa plus the major developed markets.
type Flutterwave struct {
	cfg     config.FlutterwaveConfig
	baseURL string
	appURL  string
	client  *http.Client
}

// NewFlutterwave wires the adapter. appURL is the service's public
// base URL used for the redirect callback.
func NewFlutterwave(cfg config.FlutterwaveConfig, appURL string, client *http.Client) *Flutterwave {
	if client == nil {
		client = http.DefaultClient
	}
	return &Flutterwave{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		appURL:  strings.TrimRight(appURL, "/"),
		client:  client,
	}
}

func (f *Flutterwave) Name() enums.Gateway { return enums.GatewayFlutterwave }
func (f *Flutterwave) DisplayName() string { return "Flutterwave" }
func (f *Flutterwave) Configured() bool    { return f.cfg.SecretKey != "" }
func (f *Flutterwave) Fees() string        { return "1.4%" }

func (f *Flutterwave) SupportsCountry(code string) bool {
	if code == "" {
		return true
	}
	_, ok := flutterwaveCountries[code]
	return ok
}

func (f *Flutterwave) Currencies() []string {
	return []string{"NGN", "GHS", "KES", "UGX", "ZAR", "TZS", "RWF", "ZMW", "USD", "GBP", "EUR", "CAD", "AUD"}
}

type flutterwaveCreateResponse struct {
	Status string `json:"status"`
	Data   struct {
		Link string `json:"link"`
	} `json:"data"`
}

type flutterwaveVerifyResponse struct {
	Status string `json:"status"`
	Data   struct {
		Status string `json:"status"`
	} `json:"data"`
}

func (f *Flutterwave) Create(ctx context.Context, req CreateRequest) *Result {
	txRef := "gopt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	payload := map[string]any{
		"tx_ref":       txRef,
		"amount":       req.Amount,
		"currency":     req.Currency,
		"redirect_url": f.appURL + "/api/v1/payments/flutterwave/callback",
		"customer": map[string]any{
			"email": req.CustomerEmail,
			"name":  strings.SplitN(req.CustomerEmail, "@", 2)[0],
		},
		"customizations": map[string]any{
			"title":       "GPUOptimizer Subscription",
			"description": fmt.Sprintf("Upgrade to %s tier", req.Plan),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return failedResult(f.Name(), req, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return failedResult(f.Name(), req, err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+f.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return failedResult(f.Name(), req, err.Error())
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return failedResult(f.Name(), req, fmt.Sprintf("Flutterwave API error: %s", raw))
	}

	var created flutterwaveCreateResponse
	if err := json.Unmarshal(raw, &created); err != nil {
		return failedResult(f.Name(), req, err.Error())
	}
	if created.Status != "success" {
		return failedResult(f.Name(), req, "Flutterwave rejected the payment")
	}

	return &Result{
		Success:       true,
		TransactionID: txRef,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Gateway:       f.Name(),
		Status:        enums.PaymentStatusPending,
		Message:       "Payment created successfully",
		PaymentURL:    created.Data.Link,
	}
}

func (f *Flutterwave) Verify(ctx context.Context, transactionID string) (enums.PaymentStatus, error) {
	url := fmt.Sprintf("%s/transactions/%s/verify", f.baseURL, transactionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+f.cfg.SecretKey)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Flutterwave verification failed: %s", raw)
	}

	var verified flutterwaveVerifyResponse
	if err := json.Unmarshal(raw, &verified); err != nil {
		return "", err
	}

	switch verified.Data.Status {
	case "successful":
		return enums.PaymentStatusCompleted, nil
	case "failed", "cancelled":
		return enums.PaymentStatusFailed, nil
	default:
		return enums.PaymentStatusPending, nil
	}
}
