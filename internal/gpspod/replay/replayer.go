package replay

import (
	"bytes"
	"fmt"
	"time"

	"github.com/banshee-data/gpspod/internal/gpspod/transport"
)

// Transport replays a previously recorded log: ReadReport returns the
// next recorded "R" line, and WriteReport verifies the caller's bytes
// match the next recorded "W" line.
type Transport struct {
	lines      []logLine
	pos        int
	reportSize int
}

// Open loads a recorded log from path for replay.
func Open(path string, reportSize int) (*Transport, error) {
	lines, err := loadLog(path)
	if err != nil {
		return nil, err
	}
	return &Transport{lines: lines, reportSize: reportSize}, nil
}

// WriteReport asserts report equals the next recorded write.
func (t *Transport) WriteReport(report []byte) error {
	if t.pos >= len(t.lines) {
		return fmt.Errorf("replay: write past end of log")
	}
	line := t.lines[t.pos]
	if line.dir != DirWrite {
		return fmt.Errorf("replay: expected write at log position %d, found %s", t.pos, line.dir)
	}
	if !bytes.Equal(line.data, report) {
		return fmt.Errorf("replay: write at log position %d does not match recorded bytes", t.pos)
	}
	t.pos++
	return nil
}

// ReadReport returns the next recorded read.
func (t *Transport) ReadReport(_ time.Duration) ([]byte, error) {
	if t.pos >= len(t.lines) {
		return nil, transport.ErrTimeout
	}
	line := t.lines[t.pos]
	if line.dir != DirRead {
		return nil, fmt.Errorf("replay: expected read at log position %d, found %s", t.pos, line.dir)
	}
	t.pos++
	return line.data, nil
}

// ReportSize returns the configured HID report size.
func (t *Transport) ReportSize() int { return t.reportSize }

// Close is a no-op; there is no underlying resource to release.
func (t *Transport) Close() error { return nil }

var _ transport.Transport = (*Transport)(nil)
