package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tokligence/chatrelay/internal/version"
)

// ErrUpstreamStatus is returned when the generate endpoint answers with a non-2xx status.
var ErrUpstreamStatus = errors.New("ollama: unexpected upstream status")

// Client talks to a local Ollama server.
type Client struct {
	generateURL string
	httpClient  *http.Client
}

// Config holds configuration for the Ollama client.
type Config struct {
	GenerateURL string // e.g. http://localhost:11434/api/generate
	// HTTPClient is optional. The default client has no Timeout since generation streams are unbounded.
	HTTPClient *http.Client
}

// New creates a Client instance.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.GenerateURL)
	if raw == "" {
		return nil, errors.New("ollama: generate url required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("ollama: invalid generate url %q", raw)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{generateURL: raw, httpClient: hc}, nil
}

// GenerateURL returns the configured generate endpoint.
func (c *Client) GenerateURL() string { return c.generateURL }

// TagsURL derives the /api/tags endpoint on the same host as the generate endpoint.
func (c *Client) TagsURL() string {
	u, err := url.Parse(c.generateURL)
	if err != nil {
		return ""
	}
	u.Path = "/api/tags"
	u.RawQuery = ""
	return u.String()
}

// Generate posts req and returns the still-open streaming body. The caller owns the body.
// The request is bound to ctx, so cancelling ctx aborts the upstream read.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: send request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(snippet, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("%w: http %d: %s", ErrUpstreamStatus, resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("%w: http %d: %s", ErrUpstreamStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp.Body, nil
}

// ListModels queries /api/tags.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.TagsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d", ErrUpstreamStatus, resp.StatusCode)
	}
	var tags TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("ollama: decode tags: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
