// Package config loads and hot-reloads the discharge-coordination control
// plane's configuration: database connection, demo-mode voice override,
// scraping-proxy credentials, provider timeouts, and retry/TTL knobs.
package config

import "time"

// Config is the fully-resolved control-plane configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Voice    VoiceConfig    `yaml:"voice"`
	Routing  RoutingConfig  `yaml:"routing"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Cache    CacheConfig    `yaml:"cache"`
	Workflow WorkflowConfig `yaml:"workflow"`
	LogLevel string         `yaml:"log_level"`
}

// HTTPConfig configures the façade listener.
type HTTPConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	MaxConcurrentCases int    `yaml:"max_concurrent_cases"`
}

// DatabaseConfig selects and configures the SQL backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite, postgres, mysql
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

// VoiceConfig configures the outbound voice-call provider.
type VoiceConfig struct {
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	PhoneNumberID string        `yaml:"phone_number_id"`
	AssistantID   string        `yaml:"assistant_id"`
	DemoMode      bool          `yaml:"demo_mode"`
	DemoPhone     string        `yaml:"demo_phone"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxWait       time.Duration `yaml:"max_wait"`
	MaxDuration   time.Duration `yaml:"max_duration"`
}

// RoutingConfig configures the geocoding/directions collaborator.
type RoutingConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ProxyConfig configures the authenticated forward proxy the scraping
// cache drives its headless browser through.
type ProxyConfig struct {
	URL     string        `yaml:"url"` // may embed userinfo credentials
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig configures per-category TTL defaults for the scraping cache.
type CacheConfig struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// WorkflowConfig configures the coordinator's retry/timeout knobs.
type WorkflowConfig struct {
	ShelterRetryLimit int           `yaml:"shelter_retry_limit"` // voice-confirmation candidates tried, default 3
	VoiceCallTimeout  time.Duration `yaml:"voice_call_timeout"`  // overall call deadline, default 600s
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			MaxConcurrentCases: 32,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "dccp.db",
		},
		Voice: VoiceConfig{
			PollInterval: 3 * time.Second,
			MaxWait:      600 * time.Second,
			MaxDuration:  600 * time.Second,
			DemoMode:     true,
		},
		Routing: RoutingConfig{
			Timeout: 30 * time.Second,
		},
		Proxy: ProxyConfig{
			Timeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL: 24 * time.Hour,
		},
		Workflow: WorkflowConfig{
			ShelterRetryLimit: 3,
			VoiceCallTimeout:  600 * time.Second,
		},
		LogLevel: "info",
	}
}
