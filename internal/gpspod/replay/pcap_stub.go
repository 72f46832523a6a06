//go:build !pcap

package replay

import "fmt"

// PcapWriter is the disabled-by-default stand-in for the pcapng capture
// writer (build with -tags=pcap to enable it; see pcap.go).
type PcapWriter struct{}

// NewPcapWriter reports that pcap support was not compiled in.
func NewPcapWriter(path string) (*PcapWriter, error) {
	return nil, fmt.Errorf("replay: pcap support not enabled: rebuild with -tags=pcap")
}

// WriteFrame is unreachable; NewPcapWriter always fails first.
func (p *PcapWriter) WriteFrame(dir Direction, payload []byte) error {
	return fmt.Errorf("replay: pcap support not enabled: rebuild with -tags=pcap")
}

// Close is a no-op.
func (p *PcapWriter) Close() error { return nil }
