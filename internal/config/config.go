package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	relayConfigFile = "config/relay.yaml"

	DefaultPort        = 3000
	DefaultUpstreamURL = "http://localhost:11434/api/generate"
	DefaultModel       = "mistral"
	DefaultLogLevel    = "info"

	LineModeCarry   = "carry"
	LineModePerRead = "per_read"
)

// RelayConfig describes runtime options for the relay daemon.
type RelayConfig struct {
	Host        string
	Port        int
	UpstreamURL string
	Model       string
	// LineMode selects how upstream NDJSON is framed across reads: carry|per_read.
	LineMode string
	// Options is forwarded verbatim as the upstream "options" object when non-empty.
	Options map[string]any
	// SystemPrompts maps a language code (en, hi, ne, si, lep) to a system instruction.
	SystemPrompts map[string]string
	StaticDir     string
	CORSOrigins   []string
	LogFile       string
	LogLevel      string
	// LedgerDSN enables the usage ledger: sqlite://path or postgres://...
	LedgerDSN     string
	ProbeUpstream bool
}

// fileConfig mirrors config/relay.yaml.
type fileConfig struct {
	Host          string            `yaml:"host"`
	Port          int               `yaml:"port"`
	UpstreamURL   string            `yaml:"upstream_url"`
	Model         string            `yaml:"model"`
	LineMode      string            `yaml:"line_mode"`
	Options       map[string]any    `yaml:"options,omitempty"`
	SystemPrompts map[string]string `yaml:"system_prompts,omitempty"`
	StaticDir     string            `yaml:"static_dir"`
	CORSOrigins   []string          `yaml:"cors_origins,omitempty"`
	LogFile       string            `yaml:"log_file"`
	LogLevel      string            `yaml:"log_level"`
	LedgerDSN     string            `yaml:"ledger_dsn"`
	ProbeUpstream *bool             `yaml:"probe_upstream"`
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() RelayConfig {
	return RelayConfig{
		Port:          DefaultPort,
		UpstreamURL:   DefaultUpstreamURL,
		Model:         DefaultModel,
		LineMode:      LineModeCarry,
		CORSOrigins:   []string{"*"},
		LogLevel:      DefaultLogLevel,
		ProbeUpstream: true,
	}
}

// LoadRelayConfig reads config/relay.yaml under root (optional) and applies CHATRELAY_* overrides.
// A <root>/.env file, when present, seeds the environment; variables already set win.
func LoadRelayConfig(root string) (RelayConfig, error) {
	if root == "" {
		root = "."
	}
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return RelayConfig{}, fmt.Errorf("load .env: %w", err)
	}
	fc, err := loadFile(filepath.Join(root, relayConfigFile))
	if err != nil {
		return RelayConfig{}, err
	}
	return build(fc)
}

// LoadRelayConfigFile reads an explicit YAML file and applies CHATRELAY_* overrides.
func LoadRelayConfigFile(path string) (RelayConfig, error) {
	fc, err := loadFile(path)
	if err != nil {
		return RelayConfig{}, err
	}
	return build(fc)
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

func build(fc fileConfig) (RelayConfig, error) {
	def := Default()
	cfg := RelayConfig{
		Host:          firstNonEmpty(os.Getenv("CHATRELAY_HOST"), fc.Host),
		UpstreamURL:   firstNonEmpty(os.Getenv("CHATRELAY_UPSTREAM_URL"), fc.UpstreamURL, def.UpstreamURL),
		Model:         firstNonEmpty(os.Getenv("CHATRELAY_MODEL"), fc.Model, def.Model),
		LineMode:      strings.ToLower(strings.TrimSpace(firstNonEmpty(os.Getenv("CHATRELAY_LINE_MODE"), fc.LineMode, def.LineMode))),
		Options:       fc.Options,
		SystemPrompts: fc.SystemPrompts,
		StaticDir:     firstNonEmpty(os.Getenv("CHATRELAY_STATIC_DIR"), fc.StaticDir),
		LogFile:       firstNonEmpty(os.Getenv("CHATRELAY_LOG_FILE"), fc.LogFile),
		LogLevel:      strings.ToLower(firstNonEmpty(os.Getenv("CHATRELAY_LOG_LEVEL"), fc.LogLevel, def.LogLevel)),
		LedgerDSN:     firstNonEmpty(os.Getenv("CHATRELAY_LEDGER_DSN"), fc.LedgerDSN),
		ProbeUpstream: def.ProbeUpstream,
	}
	if fc.ProbeUpstream != nil {
		cfg.ProbeUpstream = *fc.ProbeUpstream
	}
	cfg.ProbeUpstream = parseOptionalBool(os.Getenv("CHATRELAY_PROBE_UPSTREAM"), cfg.ProbeUpstream)

	cfg.CORSOrigins = def.CORSOrigins
	if len(fc.CORSOrigins) > 0 {
		cfg.CORSOrigins = fc.CORSOrigins
	}
	if v := parseCSV(os.Getenv("CHATRELAY_CORS_ORIGINS")); len(v) > 0 {
		cfg.CORSOrigins = v
	}

	cfg.Port = def.Port
	if fc.Port != 0 {
		cfg.Port = fc.Port
	}
	if v := strings.TrimSpace(os.Getenv("CHATRELAY_PORT")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return RelayConfig{}, fmt.Errorf("invalid CHATRELAY_PORT %q: %w", v, err)
		}
		cfg.Port = parsed
	}

	if err := cfg.Validate(); err != nil {
		return RelayConfig{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c RelayConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid upstream_url %q: %w", c.UpstreamURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid upstream_url %q: expected http(s)://host/path", c.UpstreamURL)
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("model must not be empty")
	}
	switch c.LineMode {
	case LineModeCarry, LineModePerRead:
	default:
		return fmt.Errorf("invalid line_mode %q: expected %s or %s", c.LineMode, LineModeCarry, LineModePerRead)
	}
	return nil
}

// Address is the listen address handed to http.Server.
func (c RelayConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseOptionalBool(v string, fallback bool) bool {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return parseBool(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseCSV(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
