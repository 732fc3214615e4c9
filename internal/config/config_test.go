package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRelayYAML(t *testing.T, root, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, "config"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "config", "relay.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write relay.yaml: %v", err)
	}
}

func TestLoadRelayConfigDefaults(t *testing.T) {
	cfg, err := LoadRelayConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadRelayConfig: %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("unexpected port %d", cfg.Port)
	}
	if cfg.UpstreamURL != "http://localhost:11434/api/generate" {
		t.Fatalf("unexpected upstream %s", cfg.UpstreamURL)
	}
	if cfg.Model != "mistral" {
		t.Fatalf("unexpected model %s", cfg.Model)
	}
	if cfg.LineMode != LineModeCarry {
		t.Fatalf("unexpected line mode %s", cfg.LineMode)
	}
	if cfg.Address() != ":3000" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
	if len(cfg.SystemPrompts) != 0 || len(cfg.Options) != 0 {
		t.Fatalf("expected no prompts/options by default")
	}
	if !cfg.ProbeUpstream {
		t.Fatalf("expected upstream probe enabled by default")
	}
}

func TestLoadRelayConfigFileAndEnv(t *testing.T) {
	tmp := t.TempDir()
	writeRelayYAML(t, tmp, strings.Join([]string{
		"port: 8088",
		"model: llama2",
		"line_mode: per_read",
		"probe_upstream: false",
		"options:",
		"  temperature: 0.35",
		"  num_ctx: 4096",
		"system_prompts:",
		"  en: You are a helpful travel assistant.",
		"cors_origins: [\"http://localhost:5173\"]",
		"ledger_dsn: sqlite:///tmp/relay.db",
	}, "\n"))
	t.Setenv("CHATRELAY_MODEL", "mistral:7b")
	t.Setenv("CHATRELAY_LOG_LEVEL", "DEBUG")

	cfg, err := LoadRelayConfig(tmp)
	if err != nil {
		t.Fatalf("LoadRelayConfig: %v", err)
	}
	if cfg.Port != 8088 {
		t.Fatalf("expected port from file, got %d", cfg.Port)
	}
	if cfg.Model != "mistral:7b" {
		t.Fatalf("expected env to override model, got %s", cfg.Model)
	}
	if cfg.LineMode != LineModePerRead {
		t.Fatalf("unexpected line mode %s", cfg.LineMode)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log level %s", cfg.LogLevel)
	}
	if cfg.ProbeUpstream {
		t.Fatalf("expected probe disabled by file")
	}
	if cfg.Options["temperature"] != 0.35 || cfg.Options["num_ctx"] != 4096 {
		t.Fatalf("unexpected options %#v", cfg.Options)
	}
	if cfg.SystemPrompts["en"] != "You are a helpful travel assistant." {
		t.Fatalf("unexpected prompts %#v", cfg.SystemPrompts)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
	if cfg.LedgerDSN != "sqlite:///tmp/relay.db" {
		t.Fatalf("unexpected ledger dsn %s", cfg.LedgerDSN)
	}
}

func TestLoadRelayConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"line mode": "line_mode: whole",
		"port":      "port: 70000",
		"upstream":  "upstream_url: localhost:11434",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			tmp := t.TempDir()
			writeRelayYAML(t, tmp, body)
			if _, err := LoadRelayConfig(tmp); err == nil {
				t.Fatalf("expected error for %q", body)
			}
		})
	}
}

func TestLoadRelayConfigPortEnv(t *testing.T) {
	t.Setenv("CHATRELAY_PORT", "nope")
	if _, err := LoadRelayConfig(t.TempDir()); err == nil {
		t.Fatalf("expected invalid port error")
	}
	t.Setenv("CHATRELAY_PORT", "4000")
	cfg, err := LoadRelayConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadRelayConfig: %v", err)
	}
	if cfg.Port != 4000 {
		t.Fatalf("unexpected port %d", cfg.Port)
	}
}

func TestLoadRelayConfigFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte("port: [1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRelayConfigFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadRelayConfigDotEnv(t *testing.T) {
	tmp := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmp, ".env"), []byte("CHATRELAY_MODEL=phi3\nCHATRELAY_PORT=4000\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// Register restores, then clear CHATRELAY_MODEL so the .env value can apply.
	t.Setenv("CHATRELAY_MODEL", "unused")
	os.Unsetenv("CHATRELAY_MODEL")
	t.Setenv("CHATRELAY_PORT", "5000")

	cfg, err := LoadRelayConfig(tmp)
	if err != nil {
		t.Fatalf("LoadRelayConfig: %v", err)
	}
	if cfg.Model != "phi3" {
		t.Fatalf("expected model from .env, got %s", cfg.Model)
	}
	if cfg.Port != 5000 {
		t.Fatalf("process environment must win over .env, got port %d", cfg.Port)
	}
}
