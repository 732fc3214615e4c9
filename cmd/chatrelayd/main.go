package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tokligence/chatrelay/internal/logging"
	"github.com/tokligence/chatrelay/internal/version"
	"github.com/tokligence/chatrelay/pkg/chatrelay"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to relay.yaml (default: ./config/relay.yaml when present)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.FullInfo())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Initialize rotating file logging when log_file is set; stdout is always kept.
	const maxLogBytes = int64(300 * 1024 * 1024) // 300MB
	var logOut io.Writer = os.Stdout
	if target := strings.TrimSpace(cfg.LogFile); target != "" {
		rot, err := logging.NewRotatingWriter(target, maxLogBytes)
		if err != nil {
			log.Fatalf("init rotating log: %v", err)
		}
		defer rot.Close()
		logOut = io.MultiWriter(os.Stdout, rot)
	}
	log.SetOutput(logOut)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix("[chatrelayd] ")

	app, err := chatrelay.New(cfg, logOut)
	if err != nil {
		log.Fatalf("init relay: %v", err)
	}
	defer app.Close()
	logger := app.Logger()

	logger.Infof("chatrelayd %s upstream=%s model=%s line_mode=%s", version.Info(), cfg.UpstreamURL, cfg.Model, cfg.LineMode)

	if cfg.ProbeUpstream {
		probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := app.ProbeUpstream(probeCtx); err != nil {
			logger.Warnf("startup probe: %v (continuing; /chat will return errors until the upstream is available)", err)
		} else {
			logger.Infof("startup probe: upstream ready")
		}
		cancel()
	}

	// Streams are long-lived, so only header reads are bounded.
	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("relay listening on http://%s", displayAddr(cfg.Address()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	select {
	case sig := <-sigs:
		logger.Infof("received %s, shutting down", sig)
	case err := <-serveErr:
		if err != nil {
			logger.Errorf("http server error: %v", err)
			_ = app.Close()
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown failed: %v", err)
	}
}

func loadConfig(path string) (chatrelay.Config, error) {
	if path != "" {
		return chatrelay.LoadConfigFile(path)
	}
	return chatrelay.LoadConfig(".")
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
