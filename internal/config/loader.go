package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads path (if non-empty and present) as YAML, then applies
// environment variable overrides, then fills defaults. A missing path
// is not an error — Pollux can run on environment variables alone.
func Load(path string) (*Config, error) {
	fc := &fileConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, fc); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := fc.toConfig()
	applyEnvOverrides(cfg)
	return withDefaults(cfg), nil
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("LISTEN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ListenPort = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("LOGLEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("POLLUX_KEY"); v != "" {
		c.PolluxKey = v
	}
	if v := os.Getenv("BIG_MODEL_LIST"); v != "" {
		c.BigModelList = splitCommaList(v)
	}
	if v := os.Getenv("OAUTH_TPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.OAuthTPS = f
		}
	}
	if v := os.Getenv("GEMINI_RETRY_MAX_TIMES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.GeminiRetryMaxTimes = n
		}
	}
	if v := os.Getenv("REFRESH_RETRY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RefreshRetryMax = n
		}
	}
	if v := os.Getenv("ENABLE_MULTIPLEXING"); v != "" {
		c.EnableMultiplexing = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("CRED_PATH"); v != "" {
		c.CredPath = v
	}
	if v := os.Getenv("NO_CREDENTIAL_STATUS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NoCredentialStatus = n
		}
	}
	if v := os.Getenv("GEMINICLI_CLIENT_ID"); v != "" {
		c.Providers.GeminiCLI.ClientID = v
	}
	if v := os.Getenv("GEMINICLI_CLIENT_SECRET"); v != "" {
		c.Providers.GeminiCLI.ClientSecret = v
	}
	if v := os.Getenv("CODEX_CLIENT_ID"); v != "" {
		c.Providers.Codex.ClientID = v
	}
	if v := os.Getenv("CODEX_CLIENT_SECRET"); v != "" {
		c.Providers.Codex.ClientSecret = v
	}
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
