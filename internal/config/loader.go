package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

// deploymentPlaceholder in base_url is substituted with the deployment ID.
const deploymentPlaceholder = "{deployment}"

// Loader handles configuration loading and parsing.
type Loader struct {
	envPattern *regexp.Regexp
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	}
}

// Load reads and parses a configuration file.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return l.Parse(data)
}

// Parse parses configuration from YAML bytes, expands environment variables
// and the deployment placeholder, and validates the result.
func (l *Loader) Parse(data []byte) (*Config, error) {
	expanded := l.expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg.Upstream.BaseURL = strings.ReplaceAll(
		cfg.Upstream.BaseURL, deploymentPlaceholder, cfg.Upstream.DeploymentID)

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values.
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := os.LookupEnv(name); exists {
			return value
		}
		return match
	})
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Listen.Address == "" {
		return fmt.Errorf("listen.address is required")
	}

	// The deployment ID has no fallback: its absence is a startup failure.
	if cfg.Upstream.DeploymentID == "" {
		return fmt.Errorf("upstream.deployment_id is required")
	}
	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	resolved := strings.ReplaceAll(cfg.Upstream.BaseURL, deploymentPlaceholder, cfg.Upstream.DeploymentID)
	u, err := url.Parse(resolved)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url is not an absolute URL: %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be > 0")
	}

	if cfg.Upstream.AssetHost != "" {
		au, err := url.Parse(cfg.Upstream.AssetHost)
		if err != nil || au.Scheme == "" || au.Host == "" {
			return fmt.Errorf("upstream.asset_host is not an absolute URL: %q", cfg.Upstream.AssetHost)
		}
	}
	for _, p := range cfg.Upstream.AssetPrefixes {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("asset prefix %q must start with /", p)
		}
	}
	for _, p := range cfg.Upstream.TelemetryPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("telemetry path %q must start with /", p)
		}
	}

	if cfg.LogSink.URL != "" {
		su, err := url.Parse(cfg.LogSink.URL)
		if err != nil || su.Scheme == "" || su.Host == "" {
			return fmt.Errorf("log_sink.url is not an absolute URL: %q", cfg.LogSink.URL)
		}
	}

	if cfg.Admin.Enabled && cfg.Admin.Address == "" {
		return fmt.Errorf("admin.address is required when admin is enabled")
	}

	return nil
}
