// Package config loads service configuration from defaults, an optional
// YAML file and IELTS_* environment variables.
package config

import (
	"errors"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// ErrInvalidConfig marks validation failures from Load.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Mode     Mode   `koanf:"mode"`
	HTTPAddr string `koanf:"http_addr"`
	LogLevel string `koanf:"log_level"`

	DBDriver string `koanf:"db_driver"` // sqlite|postgres
	DBDSN    string `koanf:"db_dsn"`

	AuthSecret      string        `koanf:"auth_secret"`
	TokenTTL        time.Duration `koanf:"token_ttl"`
	EnableLocalAuth bool          `koanf:"enable_local_auth"`
	EnableGuestAuth bool          `koanf:"enable_guest_auth"`

	// Bootstrap admin, created at startup when both are set.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	// comma separated
	CORSOriginsOnline  string `koanf:"cors_origins_online"`
	CORSOriginsOffline string `koanf:"cors_origins_offline"`

	// OpenAI-compatible chat completions endpoint used for task generation
	// and writing/speaking evaluation.
	LLMURL     string        `koanf:"llm_url"`
	LLMModel   string        `koanf:"llm_model"`
	LLMAPIKey  string        `koanf:"llm_api_key"`
	LLMTimeout time.Duration `koanf:"llm_timeout"`

	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Mode:               ModeOffline,
		HTTPAddr:           ":8080",
		LogLevel:           "info",
		DBDriver:           "sqlite",
		AuthSecret:         "supersecret-dev-key",
		TokenTTL:           8 * time.Hour,
		EnableLocalAuth:    true,
		EnableGuestAuth:    true,
		CORSOriginsOnline:  "https://ielts.mindengage.ai",
		CORSOriginsOffline: "http://localhost:3000",
		LLMURL:             "http://localhost:11434",
		LLMModel:           "llama3.1:8b",
		LLMTimeout:         90 * time.Second,
		RequestTimeout:     120 * time.Second,
	}
}

// CORSOrigins returns the allowed origins for the active mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return splitCSV(c.CORSOriginsOnline)
	}
	return splitCSV(c.CORSOriginsOffline)
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
