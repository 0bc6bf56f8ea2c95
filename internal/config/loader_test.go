package config

import (
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
upstream:
  base_url: https://backend.internal/deploy/{deployment}/exec
  deployment_id: abc123
`

func TestParseMinimal(t *testing.T) {
	cfg, err := NewLoader().Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Upstream.BaseURL != "https://backend.internal/deploy/abc123/exec" {
		t.Errorf("deployment placeholder not substituted: %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", cfg.Upstream.Timeout)
	}
	if cfg.Listen.Address != ":8080" {
		t.Errorf("expected default listen address, got %q", cfg.Listen.Address)
	}
}

func TestParseMissingDeploymentIDFails(t *testing.T) {
	_, err := NewLoader().Parse([]byte(`
upstream:
  base_url: https://backend.internal/exec
`))
	if err == nil {
		t.Fatal("missing deployment_id must be a startup error, not a silent default")
	}
	if !strings.Contains(err.Error(), "deployment_id") {
		t.Errorf("error should name the missing field: %v", err)
	}
}

func TestParseMissingBaseURLFails(t *testing.T) {
	_, err := NewLoader().Parse([]byte(`
upstream:
  deployment_id: abc123
`))
	if err == nil {
		t.Fatal("missing base_url should fail validation")
	}
}

func TestParseRelativeBaseURLFails(t *testing.T) {
	_, err := NewLoader().Parse([]byte(`
upstream:
  base_url: /not/absolute
  deployment_id: abc123
`))
	if err == nil {
		t.Fatal("relative base_url should fail validation")
	}
}

func TestParseEnvExpansion(t *testing.T) {
	t.Setenv("TEST_DEPLOYMENT", "env456")
	cfg, err := NewLoader().Parse([]byte(`
upstream:
  base_url: https://backend.internal/deploy/{deployment}/exec
  deployment_id: ${TEST_DEPLOYMENT}
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Upstream.DeploymentID != "env456" {
		t.Errorf("env var not expanded: %q", cfg.Upstream.DeploymentID)
	}
	if !strings.Contains(cfg.Upstream.BaseURL, "env456") {
		t.Errorf("placeholder should pick up expanded value: %q", cfg.Upstream.BaseURL)
	}
}

func TestParseDurations(t *testing.T) {
	cfg, err := NewLoader().Parse([]byte(`
upstream:
  base_url: https://backend.internal/exec
  deployment_id: abc123
  timeout: 5s
log_sink:
  url: https://logs.internal/ingest
  timeout: 2s
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Upstream.Timeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.Upstream.Timeout)
	}
	if cfg.LogSink.Timeout != 2*time.Second {
		t.Errorf("expected 2s, got %v", cfg.LogSink.Timeout)
	}
}

func TestParseBadPrefixesFail(t *testing.T) {
	_, err := NewLoader().Parse([]byte(`
upstream:
  base_url: https://backend.internal/exec
  deployment_id: abc123
  asset_prefixes: ["static/"]
`))
	if err == nil {
		t.Fatal("asset prefix without leading slash should fail")
	}
}
