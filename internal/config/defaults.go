package config

import "time"

const (
	defaultListenAddr             = "0.0.0.0"
	defaultListenPort             = 8080
	defaultLogLevel               = "info"
	defaultDatabaseURL             = "file://./credentials"
	defaultOAuthTPS                = 8.0
	defaultGeminiRetryMaxTimes     = 3
	defaultRefreshRetryMax         = 3
	defaultNoCredentialStatus      = 503
	defaultRefreshSafetyMargin     = 60 * time.Second
	defaultStreamIdleTimeout       = 60 * time.Second
	defaultUpstreamRequestTimeout  = 10 * time.Minute

	defaultGeminiTokenURL = "https://oauth2.googleapis.com/token"
	defaultGeminiAPIBase  = "https://cloudcode-pa.googleapis.com"
	defaultCodexTokenURL  = "https://auth.openai.com/oauth/token"
	defaultCodexAPIBase   = "https://chatgpt.com/backend-api/codex"
)

// withDefaults fills any zero-valued field left unset by file/env loading.
func withDefaults(c *Config) *Config {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.ListenPort == 0 {
		c.ListenPort = defaultListenPort
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = defaultDatabaseURL
	}
	if c.OAuthTPS == 0 {
		c.OAuthTPS = defaultOAuthTPS
	}
	if c.GeminiRetryMaxTimes == 0 {
		c.GeminiRetryMaxTimes = defaultGeminiRetryMaxTimes
	}
	if c.RefreshRetryMax == 0 {
		c.RefreshRetryMax = defaultRefreshRetryMax
	}
	if c.NoCredentialStatus == 0 {
		c.NoCredentialStatus = defaultNoCredentialStatus
	}
	if c.RefreshSafetyMargin == 0 {
		c.RefreshSafetyMargin = defaultRefreshSafetyMargin
	}
	if c.StreamIdleTimeout == 0 {
		c.StreamIdleTimeout = defaultStreamIdleTimeout
	}
	if c.UpstreamRequestTimeout == 0 {
		c.UpstreamRequestTimeout = defaultUpstreamRequestTimeout
	}
	if c.Providers.GeminiCLI.TokenURL == "" {
		c.Providers.GeminiCLI.TokenURL = defaultGeminiTokenURL
	}
	if c.Providers.GeminiCLI.APIBase == "" {
		c.Providers.GeminiCLI.APIBase = defaultGeminiAPIBase
	}
	if c.Providers.Codex.TokenURL == "" {
		c.Providers.Codex.TokenURL = defaultCodexTokenURL
	}
	if c.Providers.Codex.APIBase == "" {
		c.Providers.Codex.APIBase = defaultCodexAPIBase
	}
	return c
}
