// pcapng capture is an optional diagnostic path, not part of the core
// flow; it is compiled in only with -tags=pcap.
//go:build pcap

package replay

import (
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PcapWriter mirrors recorded HID exchanges into a pcapng file as
// synthetic frames, for inspection in Wireshark.
type PcapWriter struct {
	f *os.File
	w *pcapgo.NgWriter
}

// NewPcapWriter creates a pcapng capture file at path.
func NewPcapWriter(path string) (*PcapWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("replay: create pcap %s: %w", path, err)
	}
	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("replay: pcapng writer: %w", err)
	}
	return &PcapWriter{f: f, w: w}, nil
}

// WriteFrame appends one captured direction/payload pair as a raw
// Ethernet-framed packet; the payload is the HID report bytes, the
// framing is only a container so Wireshark can list and filter frames.
func (p *PcapWriter) WriteFrame(dir Direction, payload []byte) error {
	eth := layers.Ethernet{
		SrcMAC:       macForDirection(dir),
		DstMAC:       macForDirection(oppositeDirection(dir)),
		EthernetType: layers.EthernetTypeLLC,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	payloadLayer := gopacket.Payload(payload)
	if err := gopacket.SerializeLayers(buf, opts, &eth, payloadLayer); err != nil {
		return fmt.Errorf("replay: serialize frame: %w", err)
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}
	return p.w.WritePacket(ci, buf.Bytes())
}

func macForDirection(dir Direction) []byte {
	if dir == DirWrite {
		return []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	}
	return []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
}

func oppositeDirection(dir Direction) Direction {
	if dir == DirWrite {
		return DirRead
	}
	return DirWrite
}

// Close flushes and closes the capture file.
func (p *PcapWriter) Close() error {
	if err := p.w.Flush(); err != nil {
		p.f.Close()
		return err
	}
	return p.f.Close()
}
