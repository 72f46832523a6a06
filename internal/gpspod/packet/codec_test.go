package packet

import (
	"testing"
	"time"

	"github.com/banshee-data/gpspod/internal/gpspod/logging"
	"github.com/banshee-data/gpspod/internal/gpspod/transport"
	"github.com/stretchr/testify/require"
)

func buildReplyPackets(t *testing.T, seq byte, command uint16, payload []byte, reportSize int) [][]byte {
	t.Helper()
	msg := EncodeMessage(command, payload)
	maxPayload := MaxPayload(reportSize)
	total := partitionCount(len(msg), maxPayload)

	var reports [][]byte
	for idx := 0; idx < total; idx++ {
		start := idx * maxPayload
		end := start + maxPayload
		if end > len(msg) {
			end = len(msg)
		}
		p := &Packet{ReportID: ReportIDData, Type: TypeData, Seq: seq, Index: byte(idx), Total: byte(total - 1), Payload: msg[start:end]}
		raw, err := p.Marshal(reportSize)
		require.NoError(t, err)
		reports = append(reports, raw)
	}
	return reports
}

func TestCodecExchangeSmallReply(t *testing.T) {
	mt := transport.NewMockTransport(ReportSize)
	codec := NewCodec(mt, logging.Default("test"))

	// The codec doesn't know the seq it will assign ahead of time (it's 1
	// for the first exchange), so queue the reply built for seq 1.
	mt.Push(buildReplyPackets(t, 1, 0x0099, []byte("ack"), ReportSize)...)

	cmd, payload, err := codec.Exchange(0x0001, []byte("ping"), time.Second)
	require.NoError(t, err)
	require.Equal(t, uint16(0x0099), cmd)
	require.Equal(t, []byte("ack"), payload)

	require.Len(t, mt.Written(), 1)
}

func TestCodecExchangeMultiPacketReply(t *testing.T) {
	mt := transport.NewMockTransport(ReportSize)
	codec := NewCodec(mt, logging.Default("test"))

	big := make([]byte, 500)
	for i := range big {
		big[i] = byte(i)
	}
	mt.Push(buildReplyPackets(t, 1, 0x0010, big, ReportSize)...)

	_, payload, err := codec.Exchange(0x0002, nil, time.Second)
	require.NoError(t, err)
	require.Equal(t, big, payload)
}

func TestCodecExchangeSequenceMismatch(t *testing.T) {
	mt := transport.NewMockTransport(ReportSize)
	codec := NewCodec(mt, logging.Default("test"))

	// Reply tagged with the wrong sequence counter.
	mt.Push(buildReplyPackets(t, 9, 0x0010, []byte("x"), ReportSize)...)

	_, _, err := codec.Exchange(0x0002, nil, time.Second)
	require.Error(t, err)
	var seqErr *SequenceError
	require.ErrorAs(t, err, &seqErr)
}

func TestCodecExchangeTimeout(t *testing.T) {
	mt := transport.NewMockTransport(ReportSize) // no queued replies
	codec := NewCodec(mt, logging.Default("test"))

	_, _, err := codec.Exchange(0x0002, nil, time.Millisecond)
	require.ErrorIs(t, err, transport.ErrTimeout)
}
