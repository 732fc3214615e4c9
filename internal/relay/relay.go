// Package relay forwards one prompt to the upstream generate endpoint and re-emits the
// streamed NDJSON records as server-sent events.
//
// Per request the relay moves OPEN -> STREAMING* -> DONE when upstream sends done:true.
// Upstream end-of-data or a read error without done:true ends in FAILED, which emits a
// terminal error event instead of the [DONE] sentinel.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tokligence/chatrelay/internal/lang"
	"github.com/tokligence/chatrelay/internal/logging"
	"github.com/tokligence/chatrelay/internal/ollama"
)

const readBufferSize = 32 * 1024

// ErrIncompleteStream is returned when upstream ends without a done:true record.
var ErrIncompleteStream = errors.New("relay: upstream stream ended before completion")

// Generator opens a streaming generate call. *ollama.Client implements it.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (io.ReadCloser, error)
}

// Emitter receives translated events. *sse.Writer implements it.
type Emitter interface {
	Data(text string) error
	Done() error
	Error(msg string) error
}

// Outcome is the terminal state of one relay.
type Outcome string

const (
	OutcomeDone          Outcome = "done"
	OutcomeIncomplete    Outcome = "incomplete"
	OutcomeUpstreamError Outcome = "upstream_error"
	OutcomeCanceled      Outcome = "canceled"
)

// Message is the caller's submission.
type Message struct {
	Text string
	// Lang is an optional language code or "auto"; only consulted when system prompts are configured.
	Lang string
}

// Result summarises a finished relay. It never carries message or response text.
type Result struct {
	ID           string
	Model        string
	Outcome      Outcome
	Fragments    int
	Chars        int
	SkippedLines int
	FirstByte    time.Duration
	Duration     time.Duration
}

// Config holds configuration for the Relay.
type Config struct {
	Model         string
	Options       map[string]any
	SystemPrompts map[string]string
	LineMode      ollama.LineMode
	Logger        *logging.Logger
}

// Relay is safe for concurrent use; all per-request state lives in Stream.
type Relay struct {
	gen           Generator
	model         string
	options       map[string]any
	systemPrompts map[string]string
	lineMode      ollama.LineMode
	logger        *logging.Logger
}

func New(gen Generator, cfg Config) (*Relay, error) {
	if gen == nil {
		return nil, errors.New("relay: generator required")
	}
	if cfg.Model == "" {
		return nil, errors.New("relay: model required")
	}
	mode := cfg.LineMode
	if mode == "" {
		mode = ollama.LineModeCarry
	}
	return &Relay{
		gen:           gen,
		model:         cfg.Model,
		options:       cfg.Options,
		systemPrompts: cfg.SystemPrompts,
		lineMode:      mode,
		logger:        cfg.Logger,
	}, nil
}

// Model is the fixed upstream model identifier.
func (r *Relay) Model() string { return r.model }

// BuildRequest maps a caller message onto the upstream request body.
func (r *Relay) BuildRequest(msg Message) ollama.GenerateRequest {
	req := ollama.GenerateRequest{
		Model:   r.model,
		Prompt:  msg.Text,
		Stream:  true,
		Options: r.options,
	}
	if len(r.systemPrompts) > 0 {
		code := lang.Resolve(msg.Lang, msg.Text)
		req.System = r.systemPrompts[code]
	}
	return req
}

// Open issues the upstream request. An error here means nothing has been written to the caller.
func (r *Relay) Open(ctx context.Context, msg Message) (*Stream, error) {
	id := uuid.NewString()
	start := time.Now()
	body, err := r.gen.Generate(ctx, r.BuildRequest(msg))
	if err != nil {
		r.logger.Errorf("relay=%s open upstream failed: %v", id, err)
		return nil, err
	}
	r.logger.Debugf("relay=%s upstream opened model=%s in %s", id, r.model, time.Since(start))
	return &Stream{
		relay:    r,
		body:     body,
		splitter: ollama.NewLineSplitter(r.lineMode),
		result:   Result{ID: id, Model: r.model},
		start:    start,
	}, nil
}

// Run opens the upstream stream and pumps it to em until it ends.
// Open failures are returned before anything is emitted.
func (r *Relay) Run(ctx context.Context, msg Message, em Emitter) (Result, error) {
	stream, err := r.Open(ctx, msg)
	if err != nil {
		return Result{Model: r.model, Outcome: OutcomeUpstreamError}, err
	}
	defer stream.Close()
	return stream.Pump(ctx, em)
}

// Stream is one in-flight relay. It is not safe for concurrent use.
type Stream struct {
	relay    *Relay
	body     io.ReadCloser
	splitter *ollama.LineSplitter
	result   Result
	start    time.Time
}

// ID is the relay id used in logs and the X-Relay-ID header.
func (s *Stream) ID() string { return s.result.ID }

// Close releases the upstream body. Safe to call after Pump.
func (s *Stream) Close() error { return s.body.Close() }

// Pump reads upstream until done:true, end of data, a read error or ctx cancellation,
// forwarding every non-empty response fragment to em in order.
func (s *Stream) Pump(ctx context.Context, em Emitter) (Result, error) {
	err := s.pump(ctx, em)
	s.result.Duration = time.Since(s.start)
	log := s.relay.logger
	switch s.result.Outcome {
	case OutcomeDone:
		log.Infof("relay=%s done fragments=%d chars=%d skipped=%d duration_ms=%d",
			s.result.ID, s.result.Fragments, s.result.Chars, s.result.SkippedLines, s.result.Duration.Milliseconds())
	default:
		log.Warnf("relay=%s ended outcome=%s fragments=%d skipped=%d err=%v",
			s.result.ID, s.result.Outcome, s.result.Fragments, s.result.SkippedLines, err)
	}
	return s.result, err
}

func (s *Stream) pump(ctx context.Context, em Emitter) error {
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := s.body.Read(buf)
		if n > 0 {
			if s.result.FirstByte == 0 {
				s.result.FirstByte = time.Since(s.start)
			}
			for _, line := range s.splitter.Feed(buf[:n]) {
				finished, err := s.handleLine(line, em)
				if err != nil || finished {
					return err
				}
			}
		}
		if readErr == nil {
			continue
		}
		if ctx.Err() != nil {
			s.result.Outcome = OutcomeCanceled
			return ctx.Err()
		}
		if errors.Is(readErr, io.EOF) {
			if tail := s.splitter.Flush(); tail != "" {
				finished, err := s.handleLine(tail, em)
				if err != nil || finished {
					return err
				}
			}
			s.result.Outcome = OutcomeIncomplete
			_ = em.Error("upstream stream ended before completion")
			return ErrIncompleteStream
		}
		s.result.Outcome = OutcomeUpstreamError
		_ = em.Error("upstream stream interrupted")
		return fmt.Errorf("relay: read upstream: %w", readErr)
	}
}

// handleLine decodes one NDJSON record. Parse failures are logged and skipped.
func (s *Stream) handleLine(line string, em Emitter) (bool, error) {
	var chunk ollama.GenerateChunk
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		s.result.SkippedLines++
		s.relay.logger.Warnf("relay=%s parse error: %v line=%q", s.result.ID, err, truncate(line, 120))
		return false, nil
	}
	if chunk.Response != "" {
		if err := em.Data(chunk.Response); err != nil {
			s.result.Outcome = OutcomeCanceled
			return false, fmt.Errorf("relay: write event: %w", err)
		}
		s.result.Fragments++
		s.result.Chars += len(chunk.Response)
	}
	if chunk.Done {
		if err := em.Done(); err != nil {
			s.result.Outcome = OutcomeCanceled
			return false, fmt.Errorf("relay: write done: %w", err)
		}
		s.result.Outcome = OutcomeDone
		return true, nil
	}
	return false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
