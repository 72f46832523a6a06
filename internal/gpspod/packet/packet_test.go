package packet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	p := &Packet{
		ReportID: ReportIDData,
		Type:     TypeData,
		Seq:      7,
		Index:    0,
		Total:    0,
		Payload:  []byte("hello gpspod"),
	}

	raw, err := p.Marshal(ReportSize)
	require.NoError(t, err)
	require.Len(t, raw, headerSize+len(p.Payload)+crcSize)

	got, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, p.ReportID, got.ReportID)
	require.Equal(t, p.Type, got.Type)
	require.Equal(t, p.Seq, got.Seq)
	require.Equal(t, p.Index, got.Index)
	require.Equal(t, p.Total, got.Total)
	require.Equal(t, p.Payload, got.Payload)
}

func TestPacketCRCMismatch(t *testing.T) {
	p := &Packet{ReportID: ReportIDData, Type: TypeData, Payload: []byte("abc")}
	raw, err := p.Marshal(ReportSize)
	require.NoError(t, err)

	raw[len(raw)-1] ^= 0xFF // corrupt the trailing CRC byte

	_, err = Unmarshal(raw)
	require.Error(t, err)
	var crcErr *CRCError
	require.ErrorAs(t, err, &crcErr)
	require.Equal(t, "packet", crcErr.Kind)
}

func TestPacketPayloadTooLarge(t *testing.T) {
	p := &Packet{Payload: make([]byte, ReportSize)}
	_, err := p.Marshal(ReportSize)
	require.Error(t, err)
}

func TestMaxPayload(t *testing.T) {
	require.Equal(t, ReportSize-headerSize-crcSize, MaxPayload(ReportSize))
}
