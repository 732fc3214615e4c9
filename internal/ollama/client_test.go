package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/tokligence/chatrelay/internal/testutil"
)

func TestGenerateStreamsBody(t *testing.T) {
	upstream := testutil.NewFakeOllama(t, "{\"response\":\"Hi\"}\n", "{\"done\":true}\n")
	c, err := New(Config{GenerateURL: upstream.GenerateURL()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	body, err := c.Generate(context.Background(), GenerateRequest{Model: "mistral", Prompt: "hello", Stream: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(raw) != "{\"response\":\"Hi\"}\n{\"done\":true}\n" {
		t.Fatalf("unexpected body %q", raw)
	}

	bodies := upstream.Bodies()
	if len(bodies) != 1 {
		t.Fatalf("expected one upstream call, got %d", len(bodies))
	}
	var sent map[string]any
	if err := json.Unmarshal(bodies[0], &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent["model"] != "mistral" || sent["prompt"] != "hello" || sent["stream"] != true {
		t.Fatalf("unexpected upstream body %s", bodies[0])
	}
	if _, ok := sent["system"]; ok {
		t.Fatalf("system must be omitted when empty: %s", bodies[0])
	}
	if _, ok := sent["options"]; ok {
		t.Fatalf("options must be omitted when empty: %s", bodies[0])
	}
}

func TestGenerateNon2xx(t *testing.T) {
	upstream := testutil.NewFakeOllama(t)
	upstream.SetStatus(http.StatusNotFound)
	c, err := New(Config{GenerateURL: upstream.GenerateURL()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Generate(context.Background(), GenerateRequest{Model: "mistral", Prompt: "x", Stream: true})
	if !errors.Is(err, ErrUpstreamStatus) {
		t.Fatalf("expected ErrUpstreamStatus, got %v", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected upstream error message, got %v", err)
	}
}

func TestGenerateUnreachable(t *testing.T) {
	c, err := New(Config{GenerateURL: testutil.ClosedURL(t, "/api/generate")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Generate(context.Background(), GenerateRequest{Model: "mistral", Prompt: "x", Stream: true})
	if err == nil || !strings.Contains(err.Error(), "ollama: send request") {
		t.Fatalf("expected send error, got %v", err)
	}
}

func TestListModelsAndTagsURL(t *testing.T) {
	upstream := testutil.NewFakeOllama(t)
	c, err := New(Config{GenerateURL: upstream.GenerateURL() + "?x=1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.TagsURL() != upstream.URL+"/api/tags" {
		t.Fatalf("unexpected tags url %s", c.TagsURL())
	}
	names, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(names) != 1 || names[0] != "mistral:latest" {
		t.Fatalf("unexpected models %v", names)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := New(Config{GenerateURL: "not a url"}); err == nil {
		t.Fatalf("expected error for url without host")
	}
}
