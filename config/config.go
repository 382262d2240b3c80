package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gyber/go-custody"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment prefix, e.g. GYBER_DSN
const Prefix = "GYBER"

// Config is loaded once at start up and passed by reference
type Config struct {
	ProjectName string `envconfig:"PROJECT_NAME" default:"GYBER"`
	Version     string `envconfig:"VERSION" default:"0.1.0"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Addr        string `envconfig:"ADDR" default:":8000"`
	BaseURL     string `envconfig:"BASE_URL" default:"http://localhost:8000/"`

	DSN         string `envconfig:"DSN" default:"file:gyber.db?cache=shared"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	AccessSigningKey  string `envconfig:"ACCESS_SIGNING_KEY" required:"true"`
	RefreshSigningKey string `envconfig:"REFRESH_SIGNING_KEY" required:"true"`
	VerifySigningKey  string `envconfig:"VERIFY_SIGNING_KEY" required:"true"`
	ResetSigningKey   string `envconfig:"RESET_SIGNING_KEY" required:"true"`
	SigningMethod     string `envconfig:"SIGNING_METHOD" default:"HS256"`

	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"30m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`
	// VerifyTokenTTL and ResetTokenTTL default to AccessTokenTTL
	VerifyTokenTTL time.Duration `envconfig:"VERIFY_TOKEN_TTL"`
	ResetTokenTTL  time.Duration `envconfig:"RESET_TOKEN_TTL"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"127.0.0.1"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
	SMTPFromName string `envconfig:"SMTP_FROM_NAME" default:"GYBER"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
	RateLimit   int      `envconfig:"RATE_LIMIT" default:"120"`

	NetworksFile string `envconfig:"NETWORKS_FILE"`
	ExplorerURL  string `envconfig:"EXPLORER_URL" default:"https://api.covalenthq.com"`
	ExplorerKey  string `envconfig:"EXPLORER_KEY"`
}

var _ custody.Config = (*Config)(nil)

// Load reads the environment and applies derived defaults
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.VerifyTokenTTL <= 0 {
		c.VerifyTokenTTL = c.AccessTokenTTL
	}
	if c.ResetTokenTTL <= 0 {
		c.ResetTokenTTL = c.AccessTokenTTL
	}
}

func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.AccessSigningKey, validation.Required),
		validation.Field(&c.RefreshSigningKey, validation.Required),
		validation.Field(&c.VerifySigningKey, validation.Required),
		validation.Field(&c.ResetSigningKey, validation.Required),
		validation.Field(&c.SigningMethod, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&c.AccessTokenTTL, validation.Required),
		validation.Field(&c.RefreshTokenTTL, validation.Required),
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.DSN, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	keys := []struct {
		name  string
		value string
	}{
		{"access", c.AccessSigningKey},
		{"refresh", c.RefreshSigningKey},
		{"verify", c.VerifySigningKey},
		{"reset", c.ResetSigningKey},
	}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[i].value == keys[j].value {
				return fmt.Errorf("config: %s and %s signing keys must differ", keys[i].name, keys[j].name)
			}
		}
	}
	return nil
}

// IsPostgres reports whether DSN points at a postgres server
func (c *Config) IsPostgres() bool {
	return strings.HasPrefix(c.DSN, "postgres://") || strings.HasPrefix(c.DSN, "postgresql://")
}

func (c *Config) GetAccessSigningKey() string       { return c.AccessSigningKey }
func (c *Config) GetRefreshSigningKey() string      { return c.RefreshSigningKey }
func (c *Config) GetVerifySigningKey() string       { return c.VerifySigningKey }
func (c *Config) GetResetSigningKey() string        { return c.ResetSigningKey }
func (c *Config) GetSigningMethod() string          { return c.SigningMethod }
func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }
func (c *Config) GetVerifyTokenTTL() time.Duration  { return c.VerifyTokenTTL }
func (c *Config) GetResetTokenTTL() time.Duration   { return c.ResetTokenTTL }
func (c *Config) GetBaseURL() string                { return c.BaseURL }
