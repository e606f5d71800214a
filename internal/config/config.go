// Package config loads Pollux's configuration from a YAML file with
// environment variable overrides, grounded in the teacher's
// internal/config package (file+env layering, hot-reload via fsnotify)
// but trimmed to the gateway's much smaller key set — no per-API-port,
// auto-ban, or routing domains, since those features are not part of
// this gateway.
package config

import "time"

// Config is the fully-resolved configuration for one Pollux process.
type Config struct {
	ListenAddr string
	ListenPort int

	// DatabaseURL selects the Credential Store backend by scheme:
	// file://, redis://, postgres://, mongodb://.
	DatabaseURL string

	LogLevel string

	// PolluxKey is the single shared gateway key checked by the Auth Gate.
	PolluxKey string

	Providers ProvidersConfig

	// BigModelList names models that should draw from the "big" queue
	// instead of "tiny" (spec.md §4.4); shared across providers since a
	// model name uniquely implies its provider in practice.
	BigModelList []string

	OAuthTPS              float64
	GeminiRetryMaxTimes   int
	RefreshRetryMax       int
	EnableMultiplexing    bool
	Proxy                 string
	CredPath              string
	NoCredentialStatus    int // 503 (default) or 409, spec.md §12 Open Question
	RefreshSafetyMargin   time.Duration
	StreamIdleTimeout     time.Duration
	UpstreamRequestTimeout time.Duration
}

// ProvidersConfig holds per-provider settings.
type ProvidersConfig struct {
	GeminiCLI ProviderConfig
	Codex     ProviderConfig
}

// ProviderConfig is one provider's model allowlist and OAuth client pair.
type ProviderConfig struct {
	ModelList    []string
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBase      string
}

// IsBigModel reports whether model should draw from the "big" queue.
func (c *Config) IsBigModel(model string) bool {
	for _, m := range c.BigModelList {
		if m == model {
			return true
		}
	}
	return false
}
