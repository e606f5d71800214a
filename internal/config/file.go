package config

// fileConfig mirrors the on-disk YAML shape, grounded on the teacher's
// internal/config/config_types.go FileConfig (yaml tags, flat top-level
// keys) but scoped to Pollux's configuration surface (spec.md §6).
type fileConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	ListenPort int    `yaml:"listen_port"`

	DatabaseURL string `yaml:"database_url"`
	LogLevel    string `yaml:"loglevel"`
	PolluxKey   string `yaml:"pollux_key"`

	Providers struct {
		GeminiCLI fileProvider `yaml:"geminicli"`
		Codex     fileProvider `yaml:"codex"`
	} `yaml:"providers"`

	BigModelList []string `yaml:"big_model_list"`

	OAuthTPS            float64 `yaml:"oauth_tps"`
	GeminiRetryMaxTimes int     `yaml:"gemini_retry_max_times"`
	RefreshRetryMax     int     `yaml:"refresh_retry_max"`
	EnableMultiplexing  bool    `yaml:"enable_multiplexing"`
	Proxy               string  `yaml:"proxy"`
	CredPath            string  `yaml:"cred_path"`
	NoCredentialStatus  int     `yaml:"no_credential_status"`
}

type fileProvider struct {
	ModelList    []string `yaml:"model_list"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	APIBase      string   `yaml:"api_base"`
}

func (fc *fileConfig) toConfig() *Config {
	return &Config{
		ListenAddr:          fc.ListenAddr,
		ListenPort:          fc.ListenPort,
		DatabaseURL:         fc.DatabaseURL,
		LogLevel:            fc.LogLevel,
		PolluxKey:           fc.PolluxKey,
		BigModelList:        fc.BigModelList,
		OAuthTPS:            fc.OAuthTPS,
		GeminiRetryMaxTimes: fc.GeminiRetryMaxTimes,
		RefreshRetryMax:     fc.RefreshRetryMax,
		EnableMultiplexing:  fc.EnableMultiplexing,
		Proxy:               fc.Proxy,
		CredPath:            fc.CredPath,
		NoCredentialStatus:  fc.NoCredentialStatus,
		Providers: ProvidersConfig{
			GeminiCLI: ProviderConfig{
				ModelList:    fc.Providers.GeminiCLI.ModelList,
				ClientID:     fc.Providers.GeminiCLI.ClientID,
				ClientSecret: fc.Providers.GeminiCLI.ClientSecret,
				TokenURL:     fc.Providers.GeminiCLI.TokenURL,
				APIBase:      fc.Providers.GeminiCLI.APIBase,
			},
			Codex: ProviderConfig{
				ModelList:    fc.Providers.Codex.ModelList,
				ClientID:     fc.Providers.Codex.ClientID,
				ClientSecret: fc.Providers.Codex.ClientSecret,
				TokenURL:     fc.Providers.Codex.TokenURL,
				APIBase:      fc.Providers.Codex.APIBase,
			},
		},
	}
}
