package sse

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestWriterFramesDataAndDone(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)

	if err := w.Data("Hi"); err != nil {
		t.Fatalf("Data: %v", err)
	}
	if err := w.Data(" there"); err != nil {
		t.Fatalf("Data: %v", err)
	}
	if err := w.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}

	if got := rec.Body.String(); got != "data: Hi\n\ndata:  there\n\ndata: [DONE]\n\n" {
		t.Fatalf("unexpected stream %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Fatalf("unexpected cache control %q", cc)
	}
	if conn := rec.Header().Get("Connection"); conn != "keep-alive" {
		t.Fatalf("unexpected connection header %q", conn)
	}
	if !rec.Flushed {
		t.Fatalf("expected writer to flush")
	}
	if err := w.Data("late"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Done, got %v", err)
	}
}

func TestWriterSplitsMultilinePayload(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)
	if err := w.Data("a\n\nb\r\nc"); err != nil {
		t.Fatalf("Data: %v", err)
	}
	if got := rec.Body.String(); got != "data: a\ndata: \ndata: b\ndata: c\n\n" {
		t.Fatalf("unexpected frame %q", got)
	}
}

func TestWriterErrorEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)
	if err := w.Error("upstream stream ended before completion"); err != nil {
		t.Fatalf("Error: %v", err)
	}
	want := "event: error\ndata: {\"error\":\"upstream stream ended before completion\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("unexpected frame %q", got)
	}
	if rec.Code != 200 {
		t.Fatalf("expected committed 200, got %d", rec.Code)
	}
	if err := w.Done(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
