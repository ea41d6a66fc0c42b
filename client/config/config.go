// Package config loads the client settings supplied at deploy time.
// Values come from the environment, optionally seeded from a dotenv file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const cablePath = "/cable"

var validate = validator.New()

type Config struct {
	APIURL   string `env:"CHAT_API_URL,default=http://localhost:3000" validate:"required,url"`
	CableURL string `env:"CHAT_CABLE_URL,default=ws://localhost:3000" validate:"required,url"`
	Channel  string `env:"CHAT_CHANNEL,default=MessagesChannel" validate:"required"`

	RequestTimeout time.Duration `env:"CHAT_REQUEST_TIMEOUT,default=10s" validate:"gt=0"`

	Reconnect          bool          `env:"CHAT_RECONNECT,default=true"`
	ReconnectBaseDelay time.Duration `env:"CHAT_RECONNECT_BASE_DELAY,default=100ms" validate:"gt=0"`
	ReconnectMaxDelay  time.Duration `env:"CHAT_RECONNECT_MAX_DELAY,default=30s" validate:"gtefield=ReconnectBaseDelay"`
	StaleTimeout       time.Duration `env:"CHAT_STALE_TIMEOUT,default=6s" validate:"gte=0"`

	NoticeDuration time.Duration `env:"CHAT_NOTICE_DURATION,default=2s" validate:"gt=0"`
	LogLevel       string        `env:"LOG_LEVEL,default=info" validate:"oneof=trace debug info warn error fatal panic disabled"`
}

// Load reads an optional dotenv file and then the process environment.
// An empty envFile means ".env" in the working directory, which may be absent.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFile); err != nil {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, cfg.Validate()
}

// Parse builds a Config from an explicit variable set.
func Parse(es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	u, err := url.Parse(c.CableURL)
	if err != nil {
		return fmt.Errorf("invalid CHAT_CABLE_URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid CHAT_CABLE_URL: scheme must be ws or wss, got %q", u.Scheme)
	}
	return nil
}

// CableEndpoint is the full live channel URL.
func (c Config) CableEndpoint() string {
	return strings.TrimRight(c.CableURL, "/") + cablePath
}
