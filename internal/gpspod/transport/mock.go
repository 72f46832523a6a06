package transport

import (
	"sync"
	"time"
)

// MockTransport is a queue-backed Transport for tests: a canned source
// of inbound reports and a capture of everything written.
type MockTransport struct {
	mu       sync.Mutex
	inbound  [][]byte
	written  [][]byte
	reportSz int
	closed   bool
}

// NewMockTransport builds a mock that will hand back the given reports,
// in order, from ReadReport.
func NewMockTransport(reportSize int, inbound ...[]byte) *MockTransport {
	return &MockTransport{inbound: inbound, reportSz: reportSize}
}

func (m *MockTransport) ReportSize() int { return m.reportSz }

func (m *MockTransport) WriteReport(report []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(report))
	copy(cp, report)
	m.written = append(m.written, cp)
	return nil
}

func (m *MockTransport) ReadReport(timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inbound) == 0 {
		return nil, ErrTimeout
	}
	next := m.inbound[0]
	m.inbound = m.inbound[1:]
	return next, nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Written returns every report passed to WriteReport, in order.
func (m *MockTransport) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}

// Closed reports whether Close has been called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Push appends additional reports to be returned by future ReadReport calls.
func (m *MockTransport) Push(reports ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, reports...)
}
