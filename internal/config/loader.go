package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "IELTS_"

// Load layers configuration, lowest precedence first:
//  1. Default()
//  2. YAML file named by IELTS_CONFIG
//  3. IELTS_* environment variables (a local .env file is read first)
func Load() (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// IELTS_HTTP_ADDR -> http_addr
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeOffline, ModeOnline:
	default:
		return fmt.Errorf("%w: mode must be offline or online, got %q", ErrInvalidConfig, c.Mode)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http_addr must not be empty", ErrInvalidConfig)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unsupported db_driver %q", ErrInvalidConfig, c.DBDriver)
	}
	if c.Mode == ModeOnline && c.AuthSecret == Default().AuthSecret {
		return fmt.Errorf("%w: auth_secret must be set in online mode", ErrInvalidConfig)
	}
	if c.LLMTimeout <= 0 || c.RequestTimeout <= 0 || c.TokenTTL <= 0 {
		return fmt.Errorf("%w: llm_timeout, request_timeout and token_ttl must be positive", ErrInvalidConfig)
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return fmt.Errorf("%w: admin_username and admin_password go together", ErrInvalidConfig)
	}
	return nil
}
