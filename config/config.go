package config

import (
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jinzhu/configor"
	"github.com/joho/godotenv"
)

// Config - Application configuration
type Config struct {
	Server struct {
		Host         string   `yaml:"host" default:"" env:"HOST"`
		Port         string   `yaml:"port" default:"8080" env:"PORT"`
		Mode         string   `yaml:"mode" default:"release" env:"GIN_MODE"`
		AllowOrigins []string `yaml:"allow_origins" env:"ALLOW_ORIGINS"` // empty means any origin
	} `yaml:"server"`

	Preview struct {
		TimeoutMS    int    `yaml:"timeout_ms" default:"5000" env:"PREVIEW_TIMEOUT_MS"`
		UserAgent    string `yaml:"user_agent" default:"link-preview/1.0 (+https://github.com/cnosuke/link-preview)" env:"PREVIEW_USER_AGENT"`
		MaxBodyBytes int64  `yaml:"max_body_bytes" default:"2097152" env:"PREVIEW_MAX_BODY_BYTES"`
		MaxRedirects int    `yaml:"max_redirects" default:"10" env:"PREVIEW_MAX_REDIRECTS"`
	} `yaml:"preview"`

	Auth struct {
		Secret             string `yaml:"secret" env:"AUTH_SECRET"`
		GoogleClientID     string `yaml:"google_client_id" env:"GOOGLE_CLIENT_ID"`
		GoogleClientSecret string `yaml:"google_client_secret" env:"GOOGLE_CLIENT_SECRET"`
		TrustHost          bool   `yaml:"trust_host" default:"true" env:"AUTH_TRUST_HOST"`
		BaseURL            string `yaml:"base_url" env:"AUTH_URL"` // required when trust_host is false
		SessionMaxAgeHours int    `yaml:"session_max_age_hours" default:"720" env:"AUTH_SESSION_MAX_AGE_HOURS"`
	} `yaml:"auth"`

	Log struct {
		Level       string `yaml:"level" default:"info" env:"LOG_LEVEL"`
		Development bool   `yaml:"development" default:"false" env:"LOG_DEVELOPMENT"`
		File        string `yaml:"file" env:"LOG_FILE"` // stderr when empty
		MaxSizeMB   int    `yaml:"max_size_mb" default:"100" env:"LOG_MAX_SIZE_MB"`
		MaxBackups  int    `yaml:"max_backups" default:"3" env:"LOG_MAX_BACKUPS"`
		MaxAgeDays  int    `yaml:"max_age_days" default:"28" env:"LOG_MAX_AGE_DAYS"`
	} `yaml:"log"`
}

// LoadConfig - Load configuration file, after pulling .env into the environment
func LoadConfig(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var files []string
	if path != "" {
		files = append(files, path)
	}

	cfg := &Config{}
	err := configor.New(&configor.Config{
		Debug:      false,
		Verbose:    false,
		Silent:     true,
		AutoReload: false,
	}).Load(cfg, files...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate - Check cross-field constraints configor cannot express
func (c *Config) Validate() error {
	if c.Preview.TimeoutMS <= 0 {
		return errors.Newf("preview.timeout_ms must be positive, got %d", c.Preview.TimeoutMS)
	}
	if c.Preview.MaxBodyBytes <= 0 {
		return errors.Newf("preview.max_body_bytes must be positive, got %d", c.Preview.MaxBodyBytes)
	}

	if !c.AuthEnabled() {
		return nil
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret (AUTH_SECRET) is required when Google sign-in is configured")
	}
	if c.Auth.GoogleClientSecret == "" {
		return errors.New("auth.google_client_secret (GOOGLE_CLIENT_SECRET) is required when Google sign-in is configured")
	}
	if !c.Auth.TrustHost && c.Auth.BaseURL == "" {
		return errors.New("auth.base_url (AUTH_URL) is required when trust_host is false")
	}
	return nil
}

// AuthEnabled reports whether Google sign-in is configured.
func (c *Config) AuthEnabled() bool {
	return c.Auth.GoogleClientID != ""
}

// Addr - Listen address for the HTTP server
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// PreviewTimeout - Scrape timeout as a duration
func (c *Config) PreviewTimeout() time.Duration {
	return time.Duration(c.Preview.TimeoutMS) * time.Millisecond
}

// SessionMaxAge - Lifetime of a signed-in session
func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.Auth.SessionMaxAgeHours) * time.Hour
}
