// Package chatrelay assembles the relay so it can be mounted inside another
// HTTP server without importing internal packages.
package chatrelay

import (
	"context"
	"fmt"
	"io"
	"net/http"

	internalcfg "github.com/tokligence/chatrelay/internal/config"
	"github.com/tokligence/chatrelay/internal/health"
	"github.com/tokligence/chatrelay/internal/httpserver"
	"github.com/tokligence/chatrelay/internal/ledger"
	"github.com/tokligence/chatrelay/internal/ledger/async"
	ledgerstore "github.com/tokligence/chatrelay/internal/ledger/store"
	"github.com/tokligence/chatrelay/internal/logging"
	"github.com/tokligence/chatrelay/internal/metrics"
	"github.com/tokligence/chatrelay/internal/ollama"
	"github.com/tokligence/chatrelay/internal/relay"
)

// Config re-exports the relay configuration so embedders reuse the same parsed values.
type Config = internalcfg.RelayConfig

// DefaultConfig returns the built-in defaults (port 3000, model mistral, local Ollama).
func DefaultConfig() Config { return internalcfg.Default() }

// LoadConfig reads <root>/config/relay.yaml (optional) and CHATRELAY_* overrides.
func LoadConfig(root string) (Config, error) {
	return internalcfg.LoadRelayConfig(root)
}

// LoadConfigFile is LoadConfig for an explicit file path.
func LoadConfigFile(path string) (Config, error) {
	return internalcfg.LoadRelayConfigFile(path)
}

// App is a fully wired relay.
type App struct {
	cfg     Config
	logger  *logging.Logger
	client  *ollama.Client
	ledger  ledger.Store
	metrics *metrics.Collector
	server  *httpserver.Server
}

// New wires the upstream client, relay, optional ledger, health checker and HTTP
// routes. Log lines go to logOut; nil discards them.
func New(cfg Config, logOut io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logOut == nil {
		logOut = io.Discard
	}
	logger := logging.New(logOut, "[chatrelayd] ", logging.ParseLevel(cfg.LogLevel))

	client, err := ollama.New(ollama.Config{GenerateURL: cfg.UpstreamURL})
	if err != nil {
		return nil, err
	}
	rl, err := relay.New(client, relay.Config{
		Model:         cfg.Model,
		Options:       cfg.Options,
		SystemPrompts: cfg.SystemPrompts,
		LineMode:      ollama.ParseLineMode(cfg.LineMode),
		Logger:        logger.Named("[chatrelayd/relay] "),
	})
	if err != nil {
		return nil, err
	}

	app := &App{cfg: cfg, logger: logger, client: client, metrics: metrics.NewCollector()}

	healthCfg := health.Config{Upstream: client, Model: cfg.Model}
	if cfg.LedgerDSN != "" {
		store, kind, err := ledgerstore.Open(cfg.LedgerDSN)
		if err != nil {
			return nil, err
		}
		logger.Infof("usage ledger enabled backend=%s", kind)
		queued := async.New(store, async.Config{Logger: logger})
		app.ledger = queued
		healthCfg.LedgerDB = queued.DB()
	}

	srv, err := httpserver.New(httpserver.Config{
		Relay:       rl,
		Ledger:      app.ledger,
		Health:      health.New(healthCfg),
		Metrics:     app.metrics,
		Logger:      logger.Named("[chatrelayd/http] "),
		StaticDir:   cfg.StaticDir,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.server = srv
	return app, nil
}

// Handler is the relay's HTTP surface: POST /chat, GET /health, GET /metrics and
// the optional usage and static routes.
func (a *App) Handler() http.Handler { return a.server.Router() }

// Logger is the application logger.
func (a *App) Logger() *logging.Logger { return a.logger }

// ProbeUpstream checks that the upstream answers and has the configured model.
func (a *App) ProbeUpstream(ctx context.Context) error {
	models, err := a.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("upstream %s unreachable: %w", a.client.TagsURL(), err)
	}
	if !health.HasModel(models, a.cfg.Model) {
		return fmt.Errorf("model %q not installed upstream (have %v)", a.cfg.Model, models)
	}
	return nil
}

// Close flushes and closes the ledger.
func (a *App) Close() error {
	if a.ledger == nil {
		return nil
	}
	err := a.ledger.Close()
	a.ledger = nil
	if err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	return nil
}
