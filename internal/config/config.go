package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds server configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	Version     string `envconfig:"VERSION" default:"dev"`
	BcryptCost  int    `envconfig:"BCRYPT_COST" default:"12"`

	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"1h"`
	CookieName    string        `envconfig:"COOKIE_NAME" default:"livia_session"`
	CookieSecure  bool          `envconfig:"COOKIE_SECURE" default:"true"`

	N8NBaseURL   string        `envconfig:"N8N_BASE_URL" default:""`
	N8NJWTSecret string        `envconfig:"N8N_JWT_SECRET" default:""`
	N8NTokenTTL  time.Duration `envconfig:"N8N_TOKEN_TTL" default:"5m"`

	SuperAdminEmail    string `envconfig:"SUPERADMIN_EMAIL" default:""`
	SuperAdminPassword string `envconfig:"SUPERADMIN_PASSWORD" default:""`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ClientConfig holds console configuration, read from LIVIA_* variables.
type ClientConfig struct {
	ServerURL      string        `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	SessionFile    string        `envconfig:"SESSION_FILE" default:""`
	LoadingTimeout time.Duration `envconfig:"LOADING_TIMEOUT" default:"3s"`
	StaleTime      time.Duration `envconfig:"STALE_TIME" default:"30s"`
	GCTime         time.Duration `envconfig:"GC_TIME" default:"5m"`
	Retry          int           `envconfig:"RETRY" default:"2"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"warn"`
}

// LoadClient reads the console configuration.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("livia", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
