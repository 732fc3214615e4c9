package testutil

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
)

type IPv4Server struct {
	URL       string
	listener  net.Listener
	server    *http.Server
	transport *http.Transport
	client    *http.Client
}

// NewIPv4Server starts an HTTP server bound to the IPv4 loopback interface.
func NewIPv4Server(t *testing.T, handler http.Handler) *IPv4Server {
	t.Helper()
	if handler == nil {
		handler = http.NewServeMux()
	}
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: tcp4 loopback unavailable (%v)", err)
	}
	transport := &http.Transport{}
	s := &IPv4Server{
		URL:       "http://" + l.Addr().String(),
		listener:  l,
		server:    &http.Server{Handler: handler},
		transport: transport,
		client:    &http.Client{Transport: transport},
	}
	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("IPv4Server serve error: %v", err)
		}
	}()
	t.Cleanup(s.Close)
	return s
}

// Client returns an HTTP client configured for the server.
func (s *IPv4Server) Client() *http.Client {
	return s.client
}

// Close shuts down the underlying server and frees resources.
func (s *IPv4Server) Close() {
	_ = s.server.Shutdown(context.Background())
	s.transport.CloseIdleConnections()
}

// ClosedURL returns a loopback URL on which nothing is listening.
func ClosedURL(t *testing.T, path string) string {
	t.Helper()
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: tcp4 loopback unavailable (%v)", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return "http://" + addr + path
}

// FakeOllama scripts /api/generate responses: each scripted write is written
// and flushed separately. Request bodies are recorded for inspection.
type FakeOllama struct {
	*IPv4Server

	mu     sync.Mutex
	writes []string
	status int
	bodies [][]byte
}

// NewFakeOllama starts a fake upstream serving /api/generate and /api/tags.
func NewFakeOllama(t *testing.T, writes ...string) *FakeOllama {
	t.Helper()
	f := &FakeOllama{writes: writes, status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", f.handleGenerate)
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"models":[{"name":"mistral:latest"}]}`)
	})
	f.IPv4Server = NewIPv4Server(t, mux)
	return f
}

// GenerateURL is the fake's /api/generate endpoint.
func (f *FakeOllama) GenerateURL() string { return f.URL + "/api/generate" }

// SetStatus makes subsequent generate calls fail with status and an Ollama-style error body.
func (f *FakeOllama) SetStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// Bodies returns copies of the generate request bodies received so far.
func (f *FakeOllama) Bodies() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.bodies))
	copy(out, f.bodies)
	return out
}

func (f *FakeOllama) handleGenerate(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.bodies = append(f.bodies, b)
	status, writes := f.status, f.writes
	f.mu.Unlock()

	if status != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":"model 'mistral' not found"}`)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	for _, chunk := range writes {
		if _, err := io.WriteString(w, chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// ScriptedBody is an io.ReadCloser that returns exactly one scripted element per Read.
// After the script is exhausted it returns Err, or io.EOF when Err is nil.
type ScriptedBody struct {
	Reads []string
	Err   error

	mu     sync.Mutex
	next   int
	closed bool
}

func (b *ScriptedBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.next >= len(b.Reads) {
		if b.Err != nil {
			return 0, b.Err
		}
		return 0, io.EOF
	}
	n := copy(p, b.Reads[b.next])
	if n < len(b.Reads[b.next]) {
		b.Reads[b.next] = b.Reads[b.next][n:]
		return n, nil
	}
	b.next++
	return n, nil
}

func (b *ScriptedBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Remaining reports how many scripted reads were never consumed.
func (b *ScriptedBody) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Reads) - b.next
}

// Closed reports whether Close was called.
func (b *ScriptedBody) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// BlockingBody blocks every Read until ctx is done, then returns ctx.Err().
type BlockingBody struct {
	Ctx context.Context
}

func (b BlockingBody) Read(p []byte) (int, error) {
	<-b.Ctx.Done()
	return 0, b.Ctx.Err()
}

func (b BlockingBody) Close() error { return nil }
