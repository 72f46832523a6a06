package packet

import (
	"time"

	"github.com/banshee-data/gpspod/internal/gpspod/logging"
	"github.com/banshee-data/gpspod/internal/gpspod/transport"
)

// ReportIDData is the fixed report ID this device family uses for data
// packets, prepended on output and stripped on input.
const ReportIDData = 0x00

// Codec owns the per-session sequence counter and the per-message
// packet-index bookkeeping. It is the single point where payloads are
// split into wire packets and reassembled.
type Codec struct {
	t   transport.Transport
	seq byte
	log *logging.Logger
}

// NewCodec wraps a Transport with the packet framing layer.
func NewCodec(t transport.Transport, log *logging.Logger) *Codec {
	return &Codec{t: t, log: log}
}

// nextSeq advances and returns the session sequence counter. It wraps
// mod 256, matching the device's single byte counter.
func (c *Codec) nextSeq() byte {
	c.seq++
	return c.seq
}

// Exchange sends one command message and returns the reassembled reply
// payload. It does not retry; the command layer owns retry policy.
func (c *Codec) Exchange(command uint16, payload []byte, timeout time.Duration) (replyCommand uint16, replyPayload []byte, err error) {
	seq := c.nextSeq()

	if err := c.sendMessage(seq, command, payload); err != nil {
		return 0, nil, err
	}

	msg, err := c.recvMessage(seq, timeout)
	if err != nil {
		return 0, nil, err
	}

	return DecodeMessage(msg)
}

// sendMessage partitions an outbound message into packets and writes
// them to the transport in order.
func (c *Codec) sendMessage(seq byte, command uint16, payload []byte) error {
	msg := EncodeMessage(command, payload)

	reportSize := c.t.ReportSize()
	maxPayload := MaxPayload(reportSize)
	total := partitionCount(len(msg), maxPayload)

	for idx := 0; idx < total; idx++ {
		start := idx * maxPayload
		end := start + maxPayload
		if end > len(msg) {
			end = len(msg)
		}

		p := &Packet{
			ReportID: ReportIDData,
			Type:     TypeData,
			Seq:      seq,
			Index:    byte(idx),
			Total:    byte(total - 1),
			Payload:  msg[start:end],
		}

		raw, err := p.Marshal(reportSize)
		if err != nil {
			return err
		}

		c.log.Tracef("send seq=%d index=%d/%d len=%d", seq, idx, total-1, len(p.Payload))
		if err := c.t.WriteReport(raw); err != nil {
			return err
		}
	}

	return nil
}

// recvMessage reads packets until index == total, verifying CRC,
// sequence, and strictly increasing index, then returns the
// concatenated message body.
func (c *Codec) recvMessage(seq byte, timeout time.Duration) ([]byte, error) {
	var body []byte
	var nextIndex byte
	expectTotal := byte(0)
	haveTotal := false

	for {
		raw, err := c.t.ReadReport(timeout)
		if err != nil {
			return nil, err
		}

		p, err := Unmarshal(raw)
		if err != nil {
			// A bad packet CRC is transient: the command layer retries
			// the whole exchange, so it is surfaced unchanged here.
			return nil, err
		}

		if p.Seq != seq {
			return nil, &SequenceError{Got: p.Seq, Expected: seq}
		}

		if haveTotal && p.Total != expectTotal {
			return nil, &SequenceError{Got: p.Seq, Expected: seq}
		}
		expectTotal = p.Total
		haveTotal = true

		if p.Index != nextIndex {
			return nil, &IndexError{Got: p.Index, Expected: nextIndex}
		}
		nextIndex++

		c.log.Tracef("recv seq=%d index=%d/%d len=%d", p.Seq, p.Index, p.Total, len(p.Payload))
		body = append(body, p.Payload...)

		if p.Index == p.Total {
			return body, nil
		}
	}
}

// partitionCount returns how many chunk-sized packets total bytes need.
// total is always at least messageHeaderSize+messageCRCSize, so this is
// never zero even for zero-length command payloads.
func partitionCount(total, chunk int) int {
	n := total / chunk
	if total%chunk != 0 {
		n++
	}
	return n
}
