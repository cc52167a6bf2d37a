package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/ledger"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (PARA_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (PARA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	TokenPepper string `usage:"HMAC pepper for bearer token hashing (PARA_TOKEN_PEPPER)" flag:"token-pepper"`
	Database    DatabaseConfig
	Orders      OrdersConfig
	Ledger      LedgerConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// DatabaseConfig sizes the pgx pool.
type DatabaseConfig struct {
	MaxConns        int32         `default:"20" usage:"Maximum pool connections"`
	MinConns        int32         `default:"2" usage:"Minimum idle pool connections"`
	MaxConnLifetime time.Duration `default:"1h" usage:"Connection recycle interval"`
}

// OrdersConfig controls order assembly and numbering.
type OrdersConfig struct {
	Timeout        time.Duration `default:"10s" usage:"Order transaction timeout"`
	NumberAttempts int           `default:"5" usage:"Order number collision retries"`
	ConsumerPrefix string        `default:"CMD" usage:"Consumer order number prefix"`
	BulkPrefix     string        `default:"CMD-" usage:"Bulk order number prefix"`
	SequenceWidth  int           `default:"6" usage:"Zero-padded width of the daily sequence"`
}

// LedgerConfig controls the post-commit client ledger update.
type LedgerConfig struct {
	Async         bool          `default:"false" usage:"Apply ledger updates on background workers"`
	Workers       int           `default:"2" usage:"Ledger worker count"`
	QueueSize     int           `default:"256" usage:"Ledger queue capacity"`
	DrainTimeout  time.Duration `default:"5s" usage:"Time allowed to flush the ledger queue on shutdown"`
	UnknownClient string        `default:"ignore" usage:"Unknown client policy: ignore or create" flag:"unknown-client"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and platform defaults, then validates it.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "PARA",
		Files:     []string{"config.yaml", "/etc/parapharmacy/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL and PORT onto
// the PARA_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set PARA_DATABASE_URL or DATABASE_URL")
	}
	if c.TokenPepper == "" {
		return errors.New("token pepper is required: set PARA_TOKEN_PEPPER")
	}
	if _, err := ledger.ParsePolicy(c.Ledger.UnknownClient); err != nil {
		return errors.Wrap(err, "ledger")
	}
	if c.Orders.ConsumerPrefix == c.Orders.BulkPrefix {
		return errors.New("consumer and bulk order prefixes must differ")
	}
	if c.Orders.SequenceWidth < 1 {
		return errors.Errorf("invalid sequence width %d", c.Orders.SequenceWidth)
	}
	return nil
}
