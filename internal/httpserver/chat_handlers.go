package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tokligence/chatrelay/internal/httpserver/protocol"
	"github.com/tokligence/chatrelay/internal/ledger"
	"github.com/tokligence/chatrelay/internal/relay"
	"github.com/tokligence/chatrelay/internal/sse"
)

const maxChatBodyBytes = 1 << 20

// Error bodies returned before the event stream starts.
const (
	msgUpstreamConnect = "Failed to connect to Ollama"
	msgInvalidChat     = "Invalid chat request"
)

// chatRequest is the POST /chat body. Message is a pointer so an empty string is
// accepted while an absent field is rejected.
type chatRequest struct {
	Message *string `json:"message"`
	Lang    string  `json:"lang,omitempty"`
}

type chatEndpoint struct {
	server *Server
}

func newChatEndpoint(server *Server) protocol.Endpoint {
	return &chatEndpoint{server: server}
}

func (e *chatEndpoint) Name() string { return "chat" }

func (e *chatEndpoint) Routes() []protocol.EndpointRoute {
	return []protocol.EndpointRoute{
		{Method: http.MethodPost, Path: "/chat", Handler: http.HandlerFunc(e.server.handleChat)},
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		s.logger.Warnf("chat: decode request: %v", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]any{"error": msgInvalidChat})
		return
	}
	if req.Message == nil {
		s.logger.Warnf("chat: request without message")
		s.respondJSON(w, http.StatusInternalServerError, map[string]any{"error": msgInvalidChat})
		return
	}

	// Nothing is written to the caller until upstream accepted the request, so a
	// connect failure can still become a JSON error.
	stream, err := s.relay.Open(r.Context(), relay.Message{Text: *req.Message, Lang: req.Lang})
	if err != nil {
		s.metrics.RecordUpstreamError()
		s.respondJSON(w, http.StatusInternalServerError, map[string]any{"error": msgUpstreamConnect})
		return
	}
	defer stream.Close()

	w.Header().Set("X-Relay-ID", stream.ID())
	events := sse.NewWriter(w)
	events.Start()

	res, err := stream.Pump(r.Context(), events)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debugf("chat: relay=%s pump: %v", res.ID, err)
	}
	s.metrics.RecordRelay(res.Model, string(res.Outcome), res.Fragments, res.Chars, res.SkippedLines, res.FirstByte)
	s.recordLedger(res)
}

func (s *Server) recordLedger(res relay.Result) {
	if s.ledger == nil {
		return
	}
	entry := ledger.Entry{
		RelayID:      res.ID,
		Model:        res.Model,
		Outcome:      ledger.Outcome(res.Outcome),
		Fragments:    int64(res.Fragments),
		Chars:        int64(res.Chars),
		SkippedLines: int64(res.SkippedLines),
		DurationMS:   res.Duration.Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
	// The request context may already be canceled; the entry must still be written.
	if err := s.ledger.Record(context.Background(), entry); err != nil {
		s.logger.Errorf("ledger: record relay=%s: %v", res.ID, err)
	}
}
