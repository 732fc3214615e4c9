// Package sse writes server-sent event frames and flushes after every frame.
package sse

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// DoneSentinel is the payload of the final data event of a completed stream.
const DoneSentinel = "[DONE]"

// ErrClosed is returned by writes after Done or Error.
var ErrClosed = errors.New("sse: stream closed")

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Writer frames events onto an http.ResponseWriter.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	closed  bool
}

func NewWriter(w http.ResponseWriter) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// Start commits the event-stream headers with status 200. Later failures cannot change the status.
func (s *Writer) Start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flush()
}

// Started reports whether headers have been committed.
func (s *Writer) Started() bool { return s.started }

// Data writes one data event. Text containing line breaks is sent as consecutive
// data lines of the same event so a blank line inside the payload cannot end it early.
func (s *Writer) Data(text string) error {
	if s.closed {
		return ErrClosed
	}
	s.Start()
	var b strings.Builder
	for _, line := range strings.Split(lineBreaks.Replace(text), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return s.write(b.String())
}

// Done writes the [DONE] sentinel and closes the writer.
func (s *Writer) Done() error {
	if err := s.Data(DoneSentinel); err != nil {
		return err
	}
	s.closed = true
	return nil
}

// Error writes a terminal "error" event carrying {"error": msg} and closes the writer.
func (s *Writer) Error(msg string) error {
	if s.closed {
		return ErrClosed
	}
	s.Start()
	payload, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return err
	}
	s.closed = true
	return s.write("event: error\ndata: " + string(payload) + "\n\n")
}

func (s *Writer) write(frame string) error {
	if _, err := io.WriteString(s.w, frame); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *Writer) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
