// Package identity owns the Customer lifecycle: signup, API-key
// lookups through the TTL cache, and the tier mutation applied on
// payment completion. No other package writes customer rows.
package identity

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/gpuoptimizer/revenue-core/internal/notify"
	"github.com/gpuoptimizer/revenue-core/internal/revenue"
	"github.com/gpuoptimizer/revenue-core/pkg/apikey"
	"github.com/gpuoptimizer/revenue-core/pkg/cache"
	"github.com/gpuoptimizer/revenue-core/pkg/db"
	"github.com/gpuoptimizer/revenue-core/pkg/db/models"
	"github.com/gpuoptimizer/revenue-core/pkg/enums"
	pkgerrors "github.com/gpuoptimizer/revenue-core/pkg/errors"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
	"github.com/gpuoptimizer/revenue-core/pkg/pricing"
)

const (
	cacheKeyEmailPrefix  = "customer:email:"
	cacheKeyAPIKeyPrefix = "customer:key:"

	// maxKeyAttempts bounds API key regeneration on collision. With
	// 137 bits of entropy a second attempt is already unheard of.
	maxKeyAttempts = 5
)

// Service is the only mutation path for Customer records.
type Service interface {
	CreateCustomer(ctx context.Context, email string) (*models.Customer, error)
	GetByEmail(ctx context.Context, email string) (*models.Customer, error)
	GetByAPIKey(ctx context.Context, key string) (*models.Customer, error)
	ApplyPaymentCompletion(ctx context.Context, email string, newTier enums.Tier, paymentID string, within func(tx *gorm.DB) error) error
	InvalidateCache(customer *models.Customer)
}

// ServiceParams wires identity dependencies.
type ServiceParams struct {
	Client      *db.Client
	Repo        Repository
	RevenueRepo revenue.Repository
	Cache       *cache.TTLCache
	CacheTTL    time.Duration
	Notifier    notify.Sender
	Logger      *logger.Logger
}

type service struct {
	client      *db.Client
	repo        Repository
	revenueRepo revenue.Repository
	cache       *cache.TTLCache
	cacheTTL    time.Duration
	notifier    notify.Sender
	logg        *logger.Logger
}

// NewService validates and wires the identity service.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity db client required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity repository required")
	}
	if params.RevenueRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "revenue repository required")
	}
	if params.Cache == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "customer cache required")
	}
	if params.CacheTTL <= 0 {
		params.CacheTTL = 10 * time.Minute
	}
	return &service{
		client:      params.Client,
		repo:        params.Repo,
		revenueRepo: params.RevenueRepo,
		cache:       params.Cache,
		cacheTTL:    params.CacheTTL,
		notifier:    params.Notifier,
		logg:        params.Logger,
	}, nil
}

func (s *service) CreateCustomer(ctx context.Context, email string) (*models.Customer, error) {
	if !ValidEmail(email) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email address")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "customer lookup")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "customer already exists")
	}

	key, err := s.generateUniqueKey(ctx)
	if err != nil {
		return nil, err
	}

	customer := &models.Customer{
		Email:  email,
		APIKey: key,
		Tier:   enums.TierFree,
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, customer); err != nil {
			return err
		}
		return s.revenueRepo.WithTx(tx).Append(ctx, &models.RevenueEvent{
			CustomerEmail: email,
			EventType:     enums.RevenueEventSignup,
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err, "email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "customer already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist customer")
	}

	s.sendAsync(ctx, email, notify.WelcomeSubject, notify.WelcomeBody(customer.APIKey))

	return customer, nil
}

func (s *service) GetByEmail(ctx context.Context, email string) (*models.Customer, error) {
	if cached, ok := s.cache.Get(cacheKeyEmailPrefix + email); ok {
		return cached.(*models.Customer), nil
	}

	customer, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "customer lookup")
	}
	if customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}

	s.cacheCustomer(customer)
	return customer, nil
}

func (s *service) GetByAPIKey(ctx context.Context, key string) (*models.Customer, error) {
	// A malformed key can never exist in storage; skip the round trip.
	if !apikey.IsValid(key) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}

	if cached, ok := s.cache.Get(cacheKeyAPIKeyPrefix + key); ok {
		return cached.(*models.Customer), nil
	}

	customer, err := s.repo.FindByAPIKey(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "customer lookup")
	}
	if customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}

	s.cacheCustomer(customer)
	return customer, nil
}

// ApplyPaymentCompletion upgrades the customer and appends the upgrade
// revenue event in one transaction. A non-nil within callback runs
// inside that same transaction before the customer mutation; its error
// rolls back everything, so callers can make their own bookkeeping
// atomic with the upgrade.
func (s *service) ApplyPaymentCompletion(ctx context.Context, email string, newTier enums.Tier, paymentID string, within func(tx *gorm.DB) error) error {
	if !newTier.IsValid() || !newTier.IsPaid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid target tier")
	}

	customer, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "customer lookup")
	}
	if customer == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}

	plan, _ := pricing.PlanFor(newTier)
	metadata, _ := json.Marshal(map[string]string{
		"from_tier":  string(customer.Tier),
		"to_tier":    string(newTier),
		"payment_id": paymentID,
	})

	now := time.Now().UTC()
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if within != nil {
			if err := within(tx); err != nil {
				return err
			}
		}
		affected, err := s.repo.WithTx(tx).UpdateTierAndLastPayment(ctx, email, newTier, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		price, _ := plan.PriceUSD.Float64()
		return s.revenueRepo.WithTx(tx).Append(ctx, &models.RevenueEvent{
			CustomerEmail: email,
			EventType:     enums.RevenueEventUpgrade,
			Amount:        price,
			Metadata:      metadata,
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply payment completion")
	}

	// Invalidate rather than update in place: a concurrent reader must
	// never observe a half-mutated customer object.
	s.InvalidateCache(customer)

	s.sendAsync(ctx, email, notify.UpgradeSubject, notify.UpgradeBody(plan.Name))

	return nil
}

// InvalidateCache drops both lookup entries for the customer.
func (s *service) InvalidateCache(customer *models.Customer) {
	if customer == nil {
		return
	}
	s.cache.Delete(cacheKeyEmailPrefix + customer.Email)
	s.cache.Delete(cacheKeyAPIKeyPrefix + customer.APIKey)
}

func (s *service) cacheCustomer(customer *models.Customer) {
	s.cache.Set(cacheKeyEmailPrefix+customer.Email, customer, s.cacheTTL)
	s.cache.Set(cacheKeyAPIKeyPrefix+customer.APIKey, customer, s.cacheTTL)
}

func (s *service) generateUniqueKey(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := apikey.New()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate api key")
		}
		if !apikey.IsValid(key) {
			continue
		}
		exists, err := s.repo.APIKeyExists(ctx, key)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "api key uniqueness check")
		}
		if !exists {
			return key, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "api key generation exhausted retries")
}

func (s *service) sendAsync(ctx context.Context, to, subject, body string) {
	if s.notifier == nil {
		return
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.Send(sendCtx, to, subject, body); err != nil && s.logg != nil {
			logCtx := s.logg.WithCustomerEmail(ctx, to)
			logCtx = s.logg.WithField(logCtx, "error", err.Error())
			s.logg.Warn(logCtx, "notification delivery failed")
		}
	}()
}
