package replay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecorderThenReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "session.log")

	mock := newMockInner(64, []byte{0xAA, 0xBB})
	rec, err := NewRecorder(mock, logPath)
	require.NoError(t, err)

	require.NoError(t, rec.WriteReport([]byte{0x01, 0x02}))
	got, err := rec.ReadReport(time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, got)
	require.NoError(t, rec.Close())

	replayed, err := Open(logPath, 64)
	require.NoError(t, err)
	require.NoError(t, replayed.WriteReport([]byte{0x01, 0x02}))
	data, err := replayed.ReadReport(time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, data)
}

func TestReplayWriteMismatchIsError(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "session.log")

	mock := newMockInner(64, []byte{0x01})
	rec, err := NewRecorder(mock, logPath)
	require.NoError(t, err)
	require.NoError(t, rec.WriteReport([]byte{0x10}))
	_, _ = rec.ReadReport(time.Second)
	require.NoError(t, rec.Close())

	replayed, err := Open(logPath, 64)
	require.NoError(t, err)
	err = replayed.WriteReport([]byte{0xFF})
	require.Error(t, err)
}

func TestReplayReadPastEndOfLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "session.log")
	require.NoError(t, os.WriteFile(logPath, []byte("# session test\n"), 0644))

	replayed, err := Open(logPath, 64)
	require.NoError(t, err)
	_, err = replayed.ReadReport(time.Second)
	require.Error(t, err)
}

// mockInner is a minimal transport.Transport used only to drive the recorder.
type mockInner struct {
	reportSz int
	next     []byte
}

func newMockInner(reportSz int, next []byte) *mockInner {
	return &mockInner{reportSz: reportSz, next: next}
}

func (m *mockInner) WriteReport(report []byte) error { return nil }
func (m *mockInner) ReadReport(timeout time.Duration) ([]byte, error) {
	return m.next, nil
}
func (m *mockInner) ReportSize() int { return m.reportSz }
func (m *mockInner) Close() error    { return nil }
