package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"gather-go/game"
)

// TraceLog writes search expansions as zstd-compressed JSON lines. It implements
// game.SearchTracer. Write errors are kept and reported by Close, since the solver
// cannot act on them.
type TraceLog struct {
	mu      sync.Mutex
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	written int
	err     error
}

// NewTraceLog creates (truncating) the trace file at path.
func NewTraceLog(path string) (*TraceLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace %s: %w", path, err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	return &TraceLog{f: f, enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

// OnExpand appends one expansion event.
func (t *TraceLog) OnExpand(ev game.ExpansionEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil || t.w == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		t.err = err
		return
	}
	if _, err := t.w.Write(append(b, '\n')); err != nil {
		t.err = err
		return
	}
	t.written++
}

// Written returns the number of events recorded so far.
func (t *TraceLog) Written() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written
}

// Close flushes the stream and returns the first write error, if any.
func (t *TraceLog) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return t.err
	}
	if err := t.w.Flush(); err != nil && t.err == nil {
		t.err = err
	}
	if err := t.enc.Close(); err != nil && t.err == nil {
		t.err = err
	}
	if err := t.f.Close(); err != nil && t.err == nil {
		t.err = err
	}
	t.w, t.enc, t.f = nil, nil, nil
	return t.err
}

// ReadTrace decodes a trace written by TraceLog.
func ReadTrace(path string) ([]game.ExpansionEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	var events []game.ExpansionEvent
	scanner := bufio.NewScanner(dec)
	for scanner.Scan() {
		var ev game.ExpansionEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("failed to decode trace line %d: %w", len(events)+1, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	return events, nil
}
