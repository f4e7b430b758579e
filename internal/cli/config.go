package cli

import (
	"cartsync/internal/types"
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Environment variables that override the configuration file.
const (
	APIURLEnvKey         = "CARTSYNC_API_URL"
	AuthURLEnvKey        = "CARTSYNC_AUTH_URL"
	ClientIDEnvKey       = "CARTSYNC_CLIENT_ID"
	ClientSecretEnvKey   = "CARTSYNC_CLIENT_SECRET"
	CurrencyEnvKey       = "CARTSYNC_CURRENCY"
	RemoteTimeoutEnvKey  = "CARTSYNC_REMOTE_TIMEOUT_SECONDS"
	TokenSkewEnvKey      = "CARTSYNC_TOKEN_SKEW_SECONDS"
	EventsTopicArnEnvKey = "CARTSYNC_EVENTS_TOPIC_ARN"
)

// LoadConfig reads the store configuration from the YAML file at path, applies the environment
// overrides and the defaults, and validates the result. A missing file is fine when the
// environment carries the required settings.
func LoadConfig(path string) (types.StoreConfig, error) {
	var cfg types.StoreConfig
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, types.Err(types.ErrInvalidConfig, err, "read %s", path)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, types.Err(types.ErrInvalidConfig, err, "parse %s", path)
			}
		}
	}

	overrideString(&cfg.APIURL, APIURLEnvKey)
	overrideString(&cfg.AuthURL, AuthURLEnvKey)
	overrideString(&cfg.ClientID, ClientIDEnvKey)
	overrideString(&cfg.ClientSecret, ClientSecretEnvKey)
	overrideString(&cfg.Currency, CurrencyEnvKey)
	overrideString(&cfg.EventsTopicArn, EventsTopicArnEnvKey)
	if err := overrideInt(&cfg.RemoteTimeoutSeconds, RemoteTimeoutEnvKey); err != nil {
		return cfg, err
	}
	if err := overrideInt(&cfg.TokenSkewSeconds, TokenSkewEnvKey); err != nil {
		return cfg, err
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, types.Err(types.ErrInvalidConfig, err, "")
	}
	return cfg, nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return types.Err(types.ErrInvalidConfig, err, "%s must be an integer", key)
	}
	*dst = n
	return nil
}
