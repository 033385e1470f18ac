package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Pool         PoolConfig
	Cache        CacheConfig
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	Gateways     GatewaysConfig
	SMTP         SMTPConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GPUOPT_APP_ENV" default:"dev"`
	Port         string `envconfig:"GPUOPT_APP_PORT" default:"5000"`
	BaseURL      string `envconfig:"GPUOPT_BASE_URL" default:"http://localhost:5000"`
	LogLevel     string `envconfig:"GPUOPT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GPUOPT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GPUOPT_DB_DSN"`
	Driver string `envconfig:"GPUOPT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GPUOPT_DB_HOST"`
	LegacyPort     int    `envconfig:"GPUOPT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GPUOPT_DB_USER"`
	LegacyPassword string `envconfig:"GPUOPT_DB_PASSWORD"`
	LegacyName     string `envconfig:"GPUOPT_DB_NAME"`
	LegacySSLMode  string `envconfig:"GPUOPT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GPUOPT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GPUOPT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GPUOPT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GPUOPT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// PoolConfig shapes the dedicated storage client pool used for durable writes.
type PoolConfig struct {
	Size           int           `envconfig:"GPUOPT_POOL_SIZE" default:"10"`
	AcquireTimeout time.Duration `envconfig:"GPUOPT_POOL_ACQUIRE_TIMEOUT" default:"5s"`
}

type CacheConfig struct {
	CustomerTTL   time.Duration `envconfig:"GPUOPT_CACHE_CUSTOMER_TTL" default:"10m"`
	SweepInterval time.Duration `envconfig:"GPUOPT_CACHE_SWEEP_INTERVAL" default:"0"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GPUOPT_REDIS_URL"`
	Address      string        `envconfig:"GPUOPT_REDIS_ADDR"`
	Password     string        `envconfig:"GPUOPT_REDIS_PASSWORD"`
	DB           int           `envconfig:"GPUOPT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GPUOPT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GPUOPT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GPUOPT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GPUOPT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GPUOPT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis backend was configured at all. The webhook
// idempotency guard degrades to best-effort processing without one.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type RateLimitConfig struct {
	SignupLimit   int           `envconfig:"GPUOPT_RATE_LIMIT_SIGNUP" default:"5"`
	SignupWindow  time.Duration `envconfig:"GPUOPT_RATE_LIMIT_SIGNUP_WINDOW" default:"1m"`
	UsageLimit    int           `envconfig:"GPUOPT_RATE_LIMIT_USAGE" default:"100"`
	UsageWindow   time.Duration `envconfig:"GPUOPT_RATE_LIMIT_USAGE_WINDOW" default:"1h"`
	PaymentLimit  int           `envconfig:"GPUOPT_RATE_LIMIT_PAYMENT" default:"5"`
	PaymentWindow time.Duration `envconfig:"GPUOPT_RATE_LIMIT_PAYMENT_WINDOW" default:"1m"`
}

// GatewaysConfig carries every payment provider credential. It is injected at
// construction time; business logic never reads the process environment.
type GatewaysConfig struct {
	NOWPayments NOWPaymentsConfig
	Flutterwave FlutterwaveConfig
	Paddle      PaddleConfig

	RequestTimeout time.Duration `envconfig:"GPUOPT_GATEWAY_REQUEST_TIMEOUT" default:"30s"`
}

type NOWPaymentsConfig struct {
	APIKey    string `envconfig:"GPUOPT_NOWPAYMENTS_API_KEY"`
	IPNSecret string `envconfig:"GPUOPT_NOWPAYMENTS_IPN_SECRET"`
	APIURL    string `envconfig:"GPUOPT_NOWPAYMENTS_API_URL" default:"https://api.nowpayments.io/v1"`
}

type FlutterwaveConfig struct {
	SecretKey string `envconfig:"GPUOPT_FLUTTERWAVE_SECRET_KEY"`
	PublicKey string `envconfig:"GPUOPT_FLUTTERWAVE_PUBLIC_KEY"`
	APIURL    string `envconfig:"GPUOPT_FLUTTERWAVE_API_URL" default:"https://api.flutterwave.com/v3"`
}

type PaddleConfig struct {
	VendorID       string `envconfig:"GPUOPT_PADDLE_VENDOR_ID"`
	VendorAuthCode string `envconfig:"GPUOPT_PADDLE_VENDOR_AUTH_CODE"`
	APIURL         string `envconfig:"GPUOPT_PADDLE_API_URL" default:"https://vendors.paddle.com/api/2.0"`
}

type SMTPConfig struct {
	Host        string `envconfig:"GPUOPT_SMTP_HOST" default:"smtp.gmail.com"`
	Port        int    `envconfig:"GPUOPT_SMTP_PORT" default:"587"`
	SenderEmail string `envconfig:"GPUOPT_SENDER_EMAIL" default:"noreply@gpuoptimizer.com"`
	Password    string `envconfig:"GPUOPT_SENDER_PASSWORD"`
}

// Enabled reports whether outbound mail is configured. Without a password the
// sender logs the message instead of dialing out.
func (s SMTPConfig) Enabled() bool {
	return s.Password != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"GPUOPT_USE_SQLITE" default:"false"`
	SQLitePath  string `envconfig:"GPUOPT_SQLITE_PATH" default:"revenue.db"`
	AutoMigrate bool   `envconfig:"GPUOPT_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		"GPUOPT_DB_HOST": db.LegacyHost,
		"GPUOPT_DB_USER": db.LegacyUser,
		"GPUOPT_DB_NAME": db.LegacyName,
	}
	for _, env := range []string{"GPUOPT_DB_HOST", "GPUOPT_DB_USER", "GPUOPT_DB_NAME"} {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either GPUOPT_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
