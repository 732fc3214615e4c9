package ollama

import (
	"bytes"
	"strings"
)

// LineMode controls how NDJSON records are recovered from arbitrarily chunked reads.
type LineMode string

const (
	// LineModeCarry keeps a trailing partial line and prepends it to the next read.
	LineModeCarry LineMode = "carry"
	// LineModePerRead splits every read on its own. A record straddling two reads
	// becomes two unparsable fragments and is dropped.
	LineModePerRead LineMode = "per_read"
)

// ParseLineMode maps a config value to a LineMode, defaulting to carry.
func ParseLineMode(v string) LineMode {
	if LineMode(strings.ToLower(strings.TrimSpace(v))) == LineModePerRead {
		return LineModePerRead
	}
	return LineModeCarry
}

// LineSplitter turns raw body reads into non-blank NDJSON lines.
type LineSplitter struct {
	mode    LineMode
	pending []byte
}

func NewLineSplitter(mode LineMode) *LineSplitter {
	return &LineSplitter{mode: mode}
}

// Feed consumes one read and returns the complete, non-blank lines it yields.
func (s *LineSplitter) Feed(p []byte) []string {
	if s.mode == LineModePerRead {
		return nonBlank(strings.Split(string(p), "\n"))
	}
	s.pending = append(s.pending, p...)
	cut := bytes.LastIndexByte(s.pending, '\n')
	if cut < 0 {
		return nil
	}
	lines := nonBlank(strings.Split(string(s.pending[:cut]), "\n"))
	rest := copy(s.pending, s.pending[cut+1:])
	s.pending = s.pending[:rest]
	return lines
}

// Flush returns the buffered tail at end of stream, or "" if nothing but whitespace remains.
func (s *LineSplitter) Flush() string {
	tail := strings.TrimSpace(string(s.pending))
	s.pending = s.pending[:0]
	return tail
}

func nonBlank(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
