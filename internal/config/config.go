package config

import "time"

// Config is the gateway configuration tree.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Admin     AdminConfig     `yaml:"admin"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Routes    RoutesConfig    `yaml:"routes"`
	Templates TemplatesConfig `yaml:"templates"`
	LogSink   LogSinkConfig   `yaml:"log_sink"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ListenConfig configures the public listener.
type ListenConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// AdminConfig configures the admin listener (health, routes, metrics).
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// UpstreamConfig describes the single legacy backend the gateway fronts.
type UpstreamConfig struct {
	// BaseURL is the backend endpoint. It may contain the {deployment}
	// placeholder, substituted with DeploymentID at load time.
	BaseURL string `yaml:"base_url"`
	// DeploymentID pins the backend deployment. It is required; there is no
	// fallback, so a stale default can never be proxied to silently.
	DeploymentID string        `yaml:"deployment_id"`
	Timeout      time.Duration `yaml:"timeout"`
	// LegacyPrefix is the feature-flagged path namespace stripped from
	// query-parameter style proxy requests.
	LegacyPrefix string `yaml:"legacy_prefix"`
	// AssetHost serves static assets directly; asset paths are answered with
	// a redirect there instead of being proxied.
	AssetHost     string   `yaml:"asset_host"`
	AssetPrefixes []string `yaml:"asset_prefixes"`
	// TelemetryPaths are backend-internal endpoints answered with a stub
	// success instead of being forwarded.
	TelemetryPaths []string `yaml:"telemetry_paths"`
}

// RoutesConfig points at an optional route-table file; unset falls back to
// the built-in whitelists.
type RoutesConfig struct {
	File string `yaml:"file"`
}

// TemplatesConfig configures the error-page template store.
type TemplatesConfig struct {
	Dir       string `yaml:"dir"`
	CacheSize int    `yaml:"cache_size"`
}

// LogSinkConfig configures the external failure-log collector.
type LogSinkConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig configures the gateway's own logger.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// DefaultConfig returns the configuration defaults applied before YAML
// decoding.
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			Address:      ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  90 * time.Second,
		},
		Admin: AdminConfig{
			Enabled: true,
			Address: ":9090",
		},
		Upstream: UpstreamConfig{
			Timeout:        30 * time.Second,
			LegacyPrefix:   "/proxy",
			AssetPrefixes:  []string{"/static/", "/assets/"},
			TelemetryPaths: []string{"/backend/telemetry", "/backend/usage"},
		},
		LogSink: LogSinkConfig{
			Timeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}
