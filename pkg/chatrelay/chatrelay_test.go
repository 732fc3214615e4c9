package chatrelay

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tokligence/chatrelay/internal/testutil"
)

func TestAppServesChat(t *testing.T) {
	upstream := testutil.NewFakeOllama(t, "{\"response\":\"hi\"}\n{\"done\":true}\n")

	cfg := DefaultConfig()
	cfg.UpstreamURL = upstream.GenerateURL()
	cfg.LedgerDSN = "sqlite://" + filepath.Join(t.TempDir(), "ledger.db")
	var logs bytes.Buffer
	app, err := New(cfg, &logs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	srv := testutil.NewIPv4Server(t, app.Handler())
	resp, err := srv.Client().Post(srv.URL+"/chat", "application/json", strings.NewReader(`{"message":"hello"}`))
	if err != nil {
		t.Fatalf("POST /chat: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "data: hi\n\ndata: [DONE]\n\n" {
		t.Fatalf("unexpected stream %q", body)
	}

	if err := app.ProbeUpstream(context.Background()); err != nil {
		t.Fatalf("ProbeUpstream: %v", err)
	}
	if !strings.Contains(logs.String(), "usage ledger enabled backend=sqlite") {
		t.Fatalf("expected ledger log line, got %q", logs.String())
	}
}

func TestProbeUpstreamFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UpstreamURL = testutil.ClosedURL(t, "/api/generate")
	app, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := app.ProbeUpstream(context.Background()); err == nil {
		t.Fatalf("expected unreachable upstream error")
	}

	upstream := testutil.NewFakeOllama(t)
	cfg.UpstreamURL = upstream.GenerateURL()
	cfg.Model = "llama3"
	app, err = New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := app.ProbeUpstream(context.Background()); err == nil || !strings.Contains(err.Error(), "not installed") {
		t.Fatalf("expected missing model error, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LineMode = "bogus"
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestHealthRoute(t *testing.T) {
	upstream := testutil.NewFakeOllama(t)
	cfg := DefaultConfig()
	cfg.UpstreamURL = upstream.GenerateURL()
	app, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
