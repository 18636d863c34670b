package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Backend      BackendConfig
	Pricing      PricingConfig
	Checkout     CheckoutConfig
	Coupons      CouponsConfig
	CORS         CORSConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	if !cfg.JWT.Verifies() && !cfg.App.IsDev() {
		return nil, fmt.Errorf("%s is required outside %s", EnvJWTSecret, AppEnvDev)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// JWTConfig describes how session tokens issued by the commerce backend are
// inspected. An empty secret is only accepted in dev, where claims are read
// without signature checks.
type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER"`
}

// Verifies reports whether signatures are checked locally.
func (j JWTConfig) Verifies() bool {
	return strings.TrimSpace(j.Secret) != ""
}

type BackendConfig struct {
	BaseURL      string        `envconfig:"STOREFRONT_BACKEND_BASE_URL" required:"true"`
	AgentBaseURL string        `envconfig:"STOREFRONT_BACKEND_AGENT_BASE_URL"`
	Timeout      time.Duration `envconfig:"STOREFRONT_BACKEND_TIMEOUT" default:"15s"`
}

// AgentURL falls back to <base>/delivery-agent when no dedicated agent host is set.
func (b BackendConfig) AgentURL() string {
	if strings.TrimSpace(b.AgentBaseURL) != "" {
		return strings.TrimSpace(b.AgentBaseURL)
	}
	return strings.TrimRight(strings.TrimSpace(b.BaseURL), "/") + "/delivery-agent"
}

func (b BackendConfig) validate() error {
	for name, raw := range map[string]string{EnvBackendBaseURL: b.BaseURL, EnvBackendAgentBaseURL: b.AgentBaseURL} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	return nil
}

// PricingConfig holds the single source of truth for estimate constants.
type PricingConfig struct {
	FreeShippingThreshold decimal.Decimal `envconfig:"STOREFRONT_FREE_SHIPPING_THRESHOLD" default:"10000"`
	FlatShippingFee       decimal.Decimal `envconfig:"STOREFRONT_FLAT_SHIPPING_FEE" default:"500"`
	VariantMatchPolicy    string          `envconfig:"STOREFRONT_VARIANT_MATCH_POLICY" default:"price_then_first"`
}

func (p PricingConfig) validate() error {
	if p.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvFreeShippingThreshold)
	}
	if p.FlatShippingFee.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvFlatShippingFee)
	}
	switch p.VariantMatchPolicy {
	case VariantMatchStrict, VariantMatchPriceThenFirst:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvVariantMatchPolicy, VariantMatchStrict, VariantMatchPriceThenFirst)
	}
}

type CheckoutConfig struct {
	RequireReview bool `envconfig:"STOREFRONT_CHECKOUT_REQUIRE_REVIEW" default:"false"`
	// PendingTimeout releases a pending attempt that never reached the backend.
	PendingTimeout time.Duration `envconfig:"STOREFRONT_CHECKOUT_PENDING_TIMEOUT" default:"2m"`
	ReplayTTL      time.Duration `envconfig:"STOREFRONT_CHECKOUT_REPLAY_TTL" default:"168h"`
	// CommitTimeout bounds a commit once it no longer follows the caller's context.
	CommitTimeout time.Duration `envconfig:"STOREFRONT_CHECKOUT_COMMIT_TIMEOUT" default:"45s"`
}

type CouponsConfig struct {
	SlotTTL     time.Duration `envconfig:"STOREFRONT_COUPON_SLOT_TTL" default:"720h"`
	ApplyWindow time.Duration `envconfig:"STOREFRONT_COUPON_APPLY_WINDOW" default:"1m"`
	ApplyLimit  int           `envconfig:"STOREFRONT_COUPON_APPLY_LIMIT" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = "file:storefront.db?cache=shared"
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
