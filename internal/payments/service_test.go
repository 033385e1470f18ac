package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gpuoptimizer/revenue-core/internal/identity"
	"github.com/gpuoptimizer/revenue-core/internal/payments/gateway"
	"github.com/gpuoptimizer/revenue-core/internal/revenue"
	"github.com/gpuoptimizer/revenue-core/pkg/cache"
	"github.com/gpuoptimizer/revenue-core/pkg/config"
	"github.com/gpuoptimizer/revenue-core/pkg/db"
	"github.com/gpuoptimizer/revenue-core/pkg/db/models"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
	pkgerrors "github.com/gpuoptimizer/revenue-core/pkg/errors"
)

const revenueEventsDDL = `
CREATE TABLE IF NOT EXISTS revenue_events (
  id TEXT PRIMARY KEY,
  customer_email TEXT NOT NULL,
  event_type TEXT NOT NULL,
  amount REAL NOT NULL DEFAULT 0,
  metadata TEXT,
  created_at DATETIME
);`

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	customers := `
CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  api_key TEXT NOT NULL UNIQUE,
  tier TEXT NOT NULL DEFAULT 'free',
  gpu_count INTEGER NOT NULL DEFAULT 0,
  monthly_savings REAL NOT NULL DEFAULT 0,
  last_payment DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS payment_transactions (
  id TEXT PRIMARY KEY,
  customer_email TEXT NOT NULL,
  payment_id TEXT NOT NULL,
  gateway TEXT NOT NULL,
  amount REAL NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	txnIndex := `CREATE UNIQUE INDEX IF NOT EXISTS idx_gateway_payment ON payment_transactions (gateway, payment_id);`
	require.NoError(t, conn.Exec(customers).Error)
	require.NoError(t, conn.Exec(transactions).Error)
	require.NoError(t, conn.Exec(txnIndex).Error)
	require.NoError(t, conn.Exec(revenueEventsDDL).Error)
	t.Cleanup(func() {
		conn.Exec("DELETE FROM customers")
		conn.Exec("DELETE FROM payment_transactions")
		conn.Exec("DELETE FROM revenue_events")
	})
	return conn
}

type noopSender struct{}

func (noopSender) Send(context.Context, string, string, string) error { return nil }

func newIdentityService(t *testing.T, conn *gorm.DB) identity.Service {
	t.Helper()

	svc, err := identity.NewService(identity.ServiceParams{
		Client:      db.FromGorm(conn),
		Repo:        identity.NewRepository(conn),
		RevenueRepo: revenue.NewRepository(conn),
		Cache:       cache.New(time.Minute),
		CacheTTL:    time.Minute,
		Notifier:    noopSender{},
	})
	require.NoError(t, err)
	return svc
}

type fakeIdempotency struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeIdempotency) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeIdempotency) IdempotencyKey(scope, id string) string {
	return "gopt:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotency) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.seen, k)
	}
	return nil
}

func newOrchestrator(t *testing.T, conn *gorm.DB, registry *gateway.Registry, now *gateway.NOWPayments) Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		Repo:        NewRepository(conn),
		Identity:    newIdentityService(t, conn),
		Registry:    registry,
		NOWPayments: now,
		Idempotency: &fakeIdempotency{},
	})
	require.NoError(t, err)
	return svc
}

func demoOnlyRegistry() *gateway.Registry {
	return gateway.NewRegistry(
		gateway.NewNOWPayments(config.NOWPaymentsConfig{}, nil),
		gateway.NewFlutterwave(config.FlutterwaveConfig{}, "https://app.test", nil),
		gateway.NewPaddle(config.PaddleConfig{}, nil),
		gateway.NewDemo(),
	)
}

func createCustomer(t *testing.T, conn *gorm.DB, email string) {
	t.Helper()
	_, err := newIdentityService(t, conn).CreateCustomer(context.Background(), email)
	require.NoError(t, err)
}

func TestCreatePaymentFallsBackToDemo(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)
	svc := newOrchestrator(t, conn, demoOnlyRegistry(), nil)
	createCustomer(t, conn, "buyer@example.com")

	result, err := svc.CreatePayment(ctx, CreateParams{
		CustomerEmail: "buyer@example.com",
		Plan:          enums.TierProfessional,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, enums.GatewayDemo, result.Gateway)
	assert.Equal(t, enums.PaymentStatusPending, result.Status)
	assert.True(t, strings.HasPrefix(result.TransactionID, "demo_"))
	assert.InDelta(t, 49.0, result.Amount, 0.001)

	var txn models.PaymentTransaction
	require.NoError(t, conn.Where("payment_id = ?", result.TransactionID).First(&txn).Error)
	assert.Equal(t, enums.PaymentStatusPending, txn.Status)
	assert.Equal(t, "buyer@example.com", txn.CustomerEmail)
}

func TestCreatePaymentUnknownCustomer(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)
	svc := newOrchestrator(t, conn, demoOnlyRegistry(), nil)

	_, err := svc.CreatePayment(ctx, CreateParams{
		CustomerEmail: "ghost@example.com",
		Plan:          enums.TierProfessional,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreatePaymentRejectsFreePlan(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)
	svc := newOrchestrator(t, conn, demoOnlyRegistry(), nil)
	createCustomer(t, conn, "freebie@example.com")

	_, err := svc.CreatePayment(ctx, CreateParams{
		CustomerEmail: "freebie@example.com",
		Plan:          enums.TierFree,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreatePaymentAdapterFailureIsFailedResult(t *testing.T) {
	ctx := context.Background()

	// The provider answers 500; the orchestrator must surface a failed
	// result rather than an error, and persist nothing.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	registry := gateway.NewRegistry(
		gateway.NewNOWPayments(config.NOWPaymentsConfig{APIKey: "k", APIURL: server.URL}, server.Client()),
		gateway.NewDemo(),
	)

	conn := setupPaymentsTestDB(t)
	svc := newOrchestrator(t, conn, registry, nil)
	createCustomer(t, conn, "buyer@example.com")

	result, err := svc.CreatePayment(ctx, CreateParams{
		CustomerEmail: "buyer@example.com",
		Plan:          enums.TierEnterprise,
		Gateway:       enums.GatewayNOWPayments,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, enums.PaymentStatusFailed, result.Status)

	var count int64
	require.NoError(t, conn.Table("payment_transactions").Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCreatePaymentRetrySameGatewayIDUpserts(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)
	repo := NewRepository(conn)

	first := &models.PaymentTransaction{
		CustomerEmail: "buyer@example.com",
		PaymentID:     "pay-1",
		Gateway:       enums.GatewayNOWPayments,
		Amount:        49,
		Currency:      "USD",
		Status:        enums.PaymentStatusPending,
	}
	require.NoError(t, repo.Upsert(ctx, first))

	retry := &models.PaymentTransaction{
		CustomerEmail: "buyer@example.com",
		PaymentID:     "pay-1",
		Gateway:       enums.GatewayNOWPayments,
		Amount:        54,
		Currency:      "EUR",
		Status:        enums.PaymentStatusPending,
	}
	require.NoError(t, repo.Upsert(ctx, retry))

	var count int64
	require.NoError(t, conn.Table("payment_transactions").Count(&count).Error)
	assert.Equal(t, int64(1), count, "retries must land on the same row")

	stored, err := repo.FindByGatewayAndPaymentID(ctx, enums.GatewayNOWPayments, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "EUR", stored.Currency)
	assert.InDelta(t, 54.0, stored.Amount, 0.001)
}

func TestConfirmTransactionCompletesAndUpgrades(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)
	svc := newOrchestrator(t, conn, demoOnlyRegistry(), nil)
	createCustomer(t, conn, "buyer@example.com")

	result, err := svc.CreatePayment(ctx, CreateParams{
		CustomerEmail: "buyer@example.com",
		Plan:          enums.TierProfessional,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmTransaction(ctx, enums.GatewayDemo, result.TransactionID, enums.PaymentStatusCompleted))

	var txn models.PaymentTransaction
	require.NoError(t, conn.Where("payment_id = ?", result.TransactionID).First(&txn).Error)
	assert.Equal(t, enums.PaymentStatusCompleted, txn.Status)

	var customer models.Customer
	require.NoError(t, conn.Where("email = ?", "buyer@example.com").First(&customer).Error)
	assert.Equal(t, enums.TierProfessional, customer.Tier)
	require.NotNil(t, customer.LastPayment)
}

func TestConfirmTransactionIsMonotone(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)
	svc := newOrchestrator(t, conn, demoOnlyRegistry(), nil)
	createCustomer(t, conn, "buyer@example.com")

	result, err := svc.CreatePayment(ctx, CreateParams{
		CustomerEmail: "buyer@example.com",
		Plan:          enums.TierProfessional,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmTransaction(ctx, enums.GatewayDemo, result.TransactionID, enums.PaymentStatusCompleted))

	// completed -> failed must be refused.
	err = svc.ConfirmTransaction(ctx, enums.GatewayDemo, result.TransactionID, enums.PaymentStatusFailed)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	// A repeated completion is also a conflict, never a double upgrade.
	err = svc.ConfirmTransaction(ctx, enums.GatewayDemo, result.TransactionID, enums.PaymentStatusCompleted)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var txn models.PaymentTransaction
	require.NoError(t, conn.Where("payment_id = ?", result.TransactionID).First(&txn).Error)
	assert.Equal(t, enums.PaymentStatusCompleted, txn.Status)
}

func TestConfirmTransactionRollsBackWithFailedUpgrade(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)
	svc := newOrchestrator(t, conn, demoOnlyRegistry(), nil)
	createCustomer(t, conn, "buyer@example.com")

	result, err := svc.CreatePayment(ctx, CreateParams{
		CustomerEmail: "buyer@example.com",
		Plan:          enums.TierProfessional,
	})
	require.NoError(t, err)

	// Breaking the revenue event insert makes the upgrade leg fail after
	// the status transition has already run inside the transaction.
	require.NoError(t, conn.Exec("DROP TABLE revenue_events").Error)

	err = svc.ConfirmTransaction(ctx, enums.GatewayDemo, result.TransactionID, enums.PaymentStatusCompleted)
	require.Error(t, err)

	var txn models.PaymentTransaction
	require.NoError(t, conn.Where("payment_id = ?", result.TransactionID).First(&txn).Error)
	assert.Equal(t, enums.PaymentStatusPending, txn.Status, "failed upgrade must not consume the transition")

	var customer models.Customer
	require.NoError(t, conn.Where("email = ?", "buyer@example.com").First(&customer).Error)
	assert.Equal(t, enums.TierFree, customer.Tier)

	// With the table restored the retried confirmation succeeds.
	require.NoError(t, conn.Exec(revenueEventsDDL).Error)
	require.NoError(t, svc.ConfirmTransaction(ctx, enums.GatewayDemo, result.TransactionID, enums.PaymentStatusCompleted))

	require.NoError(t, conn.Where("email = ?", "buyer@example.com").First(&customer).Error)
	assert.Equal(t, enums.TierProfessional, customer.Tier)
}

func TestConfirmTransactionStaysPendingWithoutCustomer(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)
	svc := newOrchestrator(t, conn, demoOnlyRegistry(), nil)

	txn := &models.PaymentTransaction{
		CustomerEmail: "late@example.com",
		PaymentID:     "pay-atomic",
		Gateway:       enums.GatewayDemo,
		Amount:        49,
		Currency:      "USD",
		Status:        enums.PaymentStatusPending,
		Metadata:      []byte(`{"plan":"professional"}`),
	}
	require.NoError(t, NewRepository(conn).Upsert(ctx, txn))

	err := svc.ConfirmTransaction(ctx, enums.GatewayDemo, "pay-atomic", enums.PaymentStatusCompleted)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	var stored models.PaymentTransaction
	require.NoError(t, conn.Where("payment_id = ?", "pay-atomic").First(&stored).Error)
	assert.Equal(t, enums.PaymentStatusPending, stored.Status)

	// Once the customer exists the retry goes through.
	createCustomer(t, conn, "late@example.com")
	require.NoError(t, svc.ConfirmTransaction(ctx, enums.GatewayDemo, "pay-atomic", enums.PaymentStatusCompleted))

	var customer models.Customer
	require.NoError(t, conn.Where("email = ?", "late@example.com").First(&customer).Error)
	assert.Equal(t, enums.TierProfessional, customer.Tier)
}

func TestConfirmTransactionUnknown(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)
	svc := newOrchestrator(t, conn, demoOnlyRegistry(), nil)

	err := svc.ConfirmTransaction(ctx, enums.GatewayDemo, "missing", enums.PaymentStatusCompleted)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConfirmTransactionRequiresTerminalStatus(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)
	svc := newOrchestrator(t, conn, demoOnlyRegistry(), nil)

	err := svc.ConfirmTransaction(ctx, enums.GatewayDemo, "whatever", enums.PaymentStatusPending)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func signIPN(secret string, canonical string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHandleNOWPaymentsIPN(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)

	now := gateway.NewNOWPayments(config.NOWPaymentsConfig{APIKey: "k", IPNSecret: "topsecret"}, nil)
	registry := gateway.NewRegistry(now, gateway.NewDemo())
	svc := newOrchestrator(t, conn, registry, now)
	createCustomer(t, conn, "buyer@example.com")

	txn := &models.PaymentTransaction{
		CustomerEmail: "buyer@example.com",
		PaymentID:     "4521",
		Gateway:       enums.GatewayNOWPayments,
		Amount:        199,
		Currency:      "USD",
		Status:        enums.PaymentStatusPending,
		Metadata:      []byte(`{"plan":"enterprise"}`),
	}
	require.NoError(t, NewRepository(conn).Upsert(ctx, txn))

	payload := map[string]any{
		"payment_id":     "4521",
		"payment_status": "finished",
	}
	signature := signIPN("topsecret", `{"payment_id":"4521","payment_status":"finished"}`)

	require.NoError(t, svc.HandleNOWPaymentsIPN(ctx, payload, signature))

	var customer models.Customer
	require.NoError(t, conn.Where("email = ?", "buyer@example.com").First(&customer).Error)
	assert.Equal(t, enums.TierEnterprise, customer.Tier)

	// Replayed delivery is absorbed silently.
	require.NoError(t, svc.HandleNOWPaymentsIPN(ctx, payload, signature))

	var upgrades int64
	require.NoError(t, conn.Table("revenue_events").Where("event_type = ?", "upgrade").Count(&upgrades).Error)
	assert.Equal(t, int64(1), upgrades, "replay must not upgrade twice")
}

func TestHandleNOWPaymentsIPNFailureReleasesDedupMark(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)

	now := gateway.NewNOWPayments(config.NOWPaymentsConfig{APIKey: "k", IPNSecret: "topsecret"}, nil)
	svc := newOrchestrator(t, conn, gateway.NewRegistry(now, gateway.NewDemo()), now)

	payload := map[string]any{
		"payment_id":     "555",
		"payment_status": "finished",
	}
	signature := signIPN("topsecret", `{"payment_id":"555","payment_status":"finished"}`)

	// No such transaction yet: the delivery fails and must stay retryable.
	err := svc.HandleNOWPaymentsIPN(ctx, payload, signature)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = svc.HandleNOWPaymentsIPN(ctx, payload, signature)
	require.Error(t, err, "a failed delivery must not be absorbed as a replay")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	// Once the transaction and customer exist the retried delivery succeeds.
	createCustomer(t, conn, "buyer@example.com")
	txn := &models.PaymentTransaction{
		CustomerEmail: "buyer@example.com",
		PaymentID:     "555",
		Gateway:       enums.GatewayNOWPayments,
		Amount:        49,
		Currency:      "USD",
		Status:        enums.PaymentStatusPending,
		Metadata:      []byte(`{"plan":"professional"}`),
	}
	require.NoError(t, NewRepository(conn).Upsert(ctx, txn))

	require.NoError(t, svc.HandleNOWPaymentsIPN(ctx, payload, signature))

	var customer models.Customer
	require.NoError(t, conn.Where("email = ?", "buyer@example.com").First(&customer).Error)
	assert.Equal(t, enums.TierProfessional, customer.Tier)
}

func TestHandleNOWPaymentsIPNBadSignature(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)

	now := gateway.NewNOWPayments(config.NOWPaymentsConfig{APIKey: "k", IPNSecret: "topsecret"}, nil)
	svc := newOrchestrator(t, conn, gateway.NewRegistry(now, gateway.NewDemo()), now)

	err := svc.HandleNOWPaymentsIPN(ctx, map[string]any{"payment_id": "1"}, "deadbeef")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestHandleNOWPaymentsIPNIntermediateStateIsNoop(t *testing.T) {
	ctx := context.Background()
	conn := setupPaymentsTestDB(t)

	now := gateway.NewNOWPayments(config.NOWPaymentsConfig{APIKey: "k", IPNSecret: "topsecret"}, nil)
	svc := newOrchestrator(t, conn, gateway.NewRegistry(now, gateway.NewDemo()), now)

	payload := map[string]any{
		"payment_id":     "77",
		"payment_status": "confirming",
	}
	signature := signIPN("topsecret", `{"payment_id":"77","payment_status":"confirming"}`)
	require.NoError(t, svc.HandleNOWPaymentsIPN(ctx, payload, signature))
}

func TestAvailableGatewaysDemoWhenNothingConfigured(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	svc := newOrchestrator(t, conn, demoOnlyRegistry(), nil)

	listed := svc.AvailableGateways("US")
	require.Len(t, listed, 1)
	assert.Equal(t, enums.GatewayDemo, listed[0].ID)
	assert.True(t, listed[0].Recommended)
}

func TestAvailableGatewaysFiltersByCountry(t *testing.T) {
	registry := gateway.NewRegistry(
		gateway.NewNOWPayments(config.NOWPaymentsConfig{APIKey: "k"}, nil),
		gateway.NewFlutterwave(config.FlutterwaveConfig{SecretKey: "s"}, "https://app.test", nil),
		gateway.NewPaddle(config.PaddleConfig{VendorID: "v", VendorAuthCode: "a"}, nil),
		gateway.NewDemo(),
	)
	conn := setupPaymentsTestDB(t)
	svc := newOrchestrator(t, conn, registry, nil)

	listed := svc.AvailableGateways("NG")
	ids := make([]enums.Gateway, 0, len(listed))
	for _, info := range listed {
		ids = append(ids, info.ID)
	}
	assert.Equal(t, []enums.Gateway{enums.GatewayNOWPayments, enums.GatewayPaddle, enums.GatewayFlutterwave}, ids)

	// A country flutterwave does not serve drops it from the listing.
	listed = svc.AvailableGateways("JP")
	ids = ids[:0]
	for _, info := range listed {
		ids = append(ids, info.ID)
	}
	assert.Equal(t, []enums.Gateway{enums.GatewayNOWPayments, enums.GatewayPaddle}, ids)
}
