package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Database holds the Postgres settings shared by the server and the migrator.
type Database struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

type Config struct {
	AppPort string `envconfig:"APP_PORT" default:"8080"`
	AppEnv  string `envconfig:"APP_ENV" default:"development"`

	Database

	// Iute gateway
	IuteBaseURL       string        `envconfig:"API_BASE_URL" required:"true"`
	IuteAuthToken     string        `envconfig:"AUTH_TOKEN" required:"true"`
	PosID             string        `envconfig:"POS_ID" required:"true"`
	PublicKeyPath     string        `envconfig:"IUTE_PUBLIC_KEY_PATH" default:"/public-key/dev-ALB-public-key.pem"`
	PublicKeyCacheTTL time.Duration `envconfig:"PUBLIC_KEY_CACHE_TTL" default:"0s"`
	GatewayTimeout    time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"15s"`
	StatusTimeout     time.Duration `envconfig:"STATUS_TIMEOUT" default:"10s"`
	SignatureTimeout  time.Duration `envconfig:"SIGNATURE_TIMEOUT" default:"10s"`
	StoreTimeout      time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`

	// Inbound bearer auth for the POS routes
	AuthEnabled  bool   `envconfig:"AUTH_ENABLED" default:"false"`
	OIDCAudience string `envconfig:"OIDC_AUDIENCE"`
	OIDCJWKSURL  string `envconfig:"OIDC_JWKS_URL" default:"https://www.googleapis.com/oauth2/v3/certs"`

	RejectTerminalUpdates bool `envconfig:"REJECT_TERMINAL_UPDATES" default:"false"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"20"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"iute.order-status"`
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	cfg.IuteBaseURL = strings.TrimRight(strings.TrimSpace(cfg.IuteBaseURL), "/")
	cfg.IuteAuthToken = strings.TrimSpace(cfg.IuteAuthToken)
	cfg.PosID = strings.TrimSpace(cfg.PosID)

	if cfg.AuthEnabled && cfg.OIDCAudience == "" {
		return nil, errors.New("OIDC_AUDIENCE is required when AUTH_ENABLED is true")
	}

	return &cfg, nil
}

// LoadDatabase reads only the DB_* settings, for tools that never talk to
// the gateway.
func LoadDatabase() (*Database, error) {
	_ = godotenv.Load()

	var cfg Database
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PublicKeyURL is where the gateway publishes its webhook signing key.
func (c *Config) PublicKeyURL() string {
	return c.IuteBaseURL + c.PublicKeyPath
}
