// Package replay records and replays HID exchanges against the
// transport boundary, for offline protocol development.
package replay

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/banshee-data/gpspod/internal/gpspod/transport"
	"github.com/google/uuid"
)

// Direction tags a recorded log line as a write from the host or a
// read from the device.
type Direction string

const (
	DirWrite Direction = "W"
	DirRead  Direction = "R"
)

// Recorder tees a live transport to a line-oriented log file: each
// line is "<direction> <bytes_hex>".
type Recorder struct {
	inner     transport.Transport
	sessionID uuid.UUID
	mu        sync.Mutex
	w         *bufio.Writer
	f         *os.File
}

// NewRecorder wraps inner, writing a tee log to path. The log opens
// with a "# session <uuid>" comment line identifying the recording.
func NewRecorder(inner transport.Transport, path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("replay: create log %s: %w", path, err)
	}
	id := uuid.New()
	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintf(w, "# session %s\n", id); err != nil {
		f.Close()
		return nil, err
	}
	return &Recorder{inner: inner, sessionID: id, w: w, f: f}, nil
}

// SessionID returns the UUID tagging this recording.
func (r *Recorder) SessionID() uuid.UUID { return r.sessionID }

func (r *Recorder) writeLine(dir Direction, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintf(r.w, "%s %s\n", dir, hex.EncodeToString(data))
	return err
}

// WriteReport writes through to the inner transport and records the bytes sent.
func (r *Recorder) WriteReport(report []byte) error {
	if err := r.inner.WriteReport(report); err != nil {
		return err
	}
	return r.writeLine(DirWrite, report)
}

// ReadReport reads through from the inner transport and records the bytes received.
func (r *Recorder) ReadReport(timeout time.Duration) ([]byte, error) {
	data, err := r.inner.ReadReport(timeout)
	if err != nil {
		return nil, err
	}
	if werr := r.writeLine(DirRead, data); werr != nil {
		return nil, werr
	}
	return data, nil
}

// ReportSize delegates to the inner transport.
func (r *Recorder) ReportSize() int { return r.inner.ReportSize() }

// Close flushes the log and closes the inner transport.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.w.Flush(); err != nil {
		r.f.Close()
		return err
	}
	if err := r.f.Close(); err != nil {
		return err
	}
	return r.inner.Close()
}

var _ transport.Transport = (*Recorder)(nil)

type logLine struct {
	dir  Direction
	data []byte
}

// loadLog reads a recorded log file into an ordered list of lines,
// skipping comment lines.
func loadLog(path string) ([]logLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open log %s: %w", path, err)
	}
	defer f.Close()

	var lines []logLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		if len(line) < 2 {
			return nil, fmt.Errorf("replay: malformed log line %q", line)
		}
		dir := Direction(line[:1])
		data, err := hex.DecodeString(line[2:])
		if err != nil {
			return nil, fmt.Errorf("replay: malformed hex in log line %q: %w", line, err)
		}
		lines = append(lines, logLine{dir: dir, data: data})
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	return lines, nil
}
