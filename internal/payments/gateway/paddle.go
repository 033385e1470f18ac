package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gpuoptimizer/revenue-core/pkg/config"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
)

// Paddle handles global SaaS billing with tax remittance. Its classic
// API is form-encoded and wraps every response in a success envelope.
type Paddle struct {
	cfg     config.PaddleConfig
	baseURL string
	client  *http.Client
}

// NewPaddle wires the adapter.
func NewPaddle(cfg config.PaddleConfig, client *http.Client) *Paddle {
	if client == nil {
		client = http.DefaultClient
	}
	return &Paddle{cfg: cfg, baseURL: strings.TrimRight(cfg.APIURL, "/"), client: client}
}

func (p *Paddle) Name() enums.Gateway         { return enums.GatewayPaddle }
func (p *Paddle) DisplayName() string         { return "Paddle" }
func (p *Paddle) Fees() string                { return "5%" }
func (p *Paddle) SupportsCountry(string) bool { return true }

func (p *Paddle) Configured() bool {
	return p.cfg.VendorID != "" && p.cfg.VendorAuthCode != ""
}

func (p *Paddle) Currencies() []string {
	return []string{"USD", "EUR", "GBP", "CAD", "AUD", "JPY", "CHF", "SEK", "DKK", "NOK"}
}

type paddlePayLinkResponse struct {
	Success  bool `json:"success"`
	Response struct {
		URL string `json:"url"`
	} `json:"response"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Paddle) Create(ctx context.Context, req CreateRequest) *Result {
	form := url.Values{}
	form.Set("vendor_id", p.cfg.VendorID)
	form.Set("vendor_auth_code", p.cfg.VendorAuthCode)
	form.Set("title", fmt.Sprintf("GPUOptimizer %s", req.PlanName))
	form.Set("prices[0]", fmt.Sprintf("%s:%.2f", req.Currency, req.Amount))
	form.Set("customer_email", req.CustomerEmail)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/product/generate_pay_link", strings.NewReader(form.Encode()))
	if err != nil {
		return failedResult(p.Name(), req, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return failedResult(p.Name(), req, err.Error())
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return failedResult(p.Name(), req, fmt.Sprintf("Paddle API error: %s", raw))
	}

	var created paddlePayLinkResponse
	if err := json.Unmarshal(raw, &created); err != nil {
		return failedResult(p.Name(), req, err.Error())
	}
	if !created.Success {
		return failedResult(p.Name(), req, created.Error.Message)
	}

	// Paddle does not return a transaction id at link-creation time;
	// the checkout id arrives with the webhook. The pay link itself is
	// the only stable reference until then.
	txID := "paddle_" + lastURLSegment(created.Response.URL)

	return &Result{
		Success:       true,
		TransactionID: txID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Gateway:       p.Name(),
		Status:        enums.PaymentStatusPending,
		Message:       "Pay link created successfully",
		PaymentURL:    created.Response.URL,
	}
}

func (p *Paddle) Verify(ctx context.Context, transactionID string) (enums.PaymentStatus, error) {
	return "", fmt.Errorf("paddle reports status via webhooks only")
}

func lastURLSegment(raw string) string {
	trimmed := strings.TrimRight(raw, "/")
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
