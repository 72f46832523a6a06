package command

import (
	"testing"
	"time"

	"github.com/banshee-data/gpspod/internal/gpspod/logging"
	"github.com/banshee-data/gpspod/internal/gpspod/packet"
	"github.com/banshee-data/gpspod/internal/gpspod/transport"
	"github.com/stretchr/testify/require"
)

// buildReply constructs the raw HID reports for a reply carrying the
// given command code and payload, split across as many packets as the
// report size requires, all tagged with seq (the
// codec always assigns seq=1 to the first exchange of a fresh Client).
func buildReply(t *testing.T, seq byte, code Code, payload []byte) [][]byte {
	t.Helper()
	msg := packet.EncodeMessage(uint16(code), payload)
	maxPayload := packet.MaxPayload(packet.ReportSize)

	var reports [][]byte
	total := (len(msg) + maxPayload - 1) / maxPayload
	if total == 0 {
		total = 1
	}
	for idx := 0; idx < total; idx++ {
		start := idx * maxPayload
		end := start + maxPayload
		if end > len(msg) {
			end = len(msg)
		}
		p := &packet.Packet{ReportID: packet.ReportIDData, Type: packet.TypeData, Seq: seq, Index: byte(idx), Total: byte(total - 1), Payload: msg[start:end]}
		raw, err := p.Marshal(packet.ReportSize)
		require.NoError(t, err)
		reports = append(reports, raw)
	}
	return reports
}

func newTestClient(mt *transport.MockTransport) *Client {
	codec := packet.NewCodec(mt, logging.Default("test"))
	return NewClient(codec, time.Second, logging.Default("test"))
}

func TestClientDeviceInfo(t *testing.T) {
	body := append([]byte{0x00}, []byte("GpsPod\x008761994617001000\x001.6.39.0\x0066.2.0.0\x001.4.3.0\x00")...)
	mt := transport.NewMockTransport(packet.ReportSize)
	mt.Push(buildReply(t, 1, CodeDeviceInfo, body)...)

	c := newTestClient(mt)
	info, err := c.DeviceInfo()
	require.NoError(t, err)
	require.Equal(t, "GpsPod", info.Model)
	require.Equal(t, "8761994617001000", info.Serial)
	require.Equal(t, "1.6.39.0", info.FirmwareVersion)
	require.Equal(t, "66.2.0.0", info.HardwareVersion)
	require.Equal(t, "1.4.3.0", info.BootloaderVersion)
}

func TestClientDeviceStatus(t *testing.T) {
	body := []byte{0x00, 93}
	mt := transport.NewMockTransport(packet.ReportSize)
	mt.Push(buildReply(t, 1, CodeDeviceStatus, body)...)

	c := newTestClient(mt)
	status, err := c.DeviceStatus()
	require.NoError(t, err)
	require.Equal(t, uint8(93), status.BatteryChargePercent)
}

func TestClientDeviceErrorStatus(t *testing.T) {
	body := []byte{0x01, 0}
	mt := transport.NewMockTransport(packet.ReportSize)
	mt.Push(buildReply(t, 1, CodeDeviceStatus, body)...)

	c := newTestClient(mt)
	_, err := c.DeviceStatus()
	require.Error(t, err)
}

func TestClientReadMemory(t *testing.T) {
	want := make([]byte, 512)
	for i := range want {
		want[i] = byte(i)
	}
	body := append([]byte{0x00}, want...)
	mt := transport.NewMockTransport(packet.ReportSize)
	mt.Push(buildReply(t, 1, CodeReadMemory, body)...)

	c := newTestClient(mt)
	got, err := c.ReadMemory(0x1000, 512)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestClientWriteSetting(t *testing.T) {
	mt := transport.NewMockTransport(packet.ReportSize)
	mt.Push(buildReply(t, 1, CodeWriteSetting, []byte{0x00})...)

	c := newTestClient(mt)
	err := c.WriteSetting(16, []byte{1, 2, 3})
	require.NoError(t, err)

	require.Len(t, mt.Written(), 1)
}

func TestClientListFilesPaginates(t *testing.T) {
	entry := func(name string, size uint32) []byte {
		b := []byte{byte(len(name))}
		b = append(b, []byte(name)...)
		sz := make([]byte, 4)
		sz[0] = byte(size)
		sz[1] = byte(size >> 8)
		sz[2] = byte(size >> 16)
		sz[3] = byte(size >> 24)
		return append(b, sz...)
	}

	page1 := append([]byte{0x00}, entry("track0.bin", 100)...)
	page2 := []byte{0x00} // empty body ends pagination

	mt := transport.NewMockTransport(packet.ReportSize)
	mt.Push(buildReply(t, 1, CodeListFiles, page1)...)
	mt.Push(buildReply(t, 2, CodeListFiles, page2)...)

	c := newTestClient(mt)
	files, err := c.ListFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "track0.bin", files[0].Name)
	require.Equal(t, uint32(100), files[0].Size)
}

func TestClientRetriesOnPacketCRCThenSucceeds(t *testing.T) {
	mt := transport.NewMockTransport(packet.ReportSize)

	firstAttempt := buildReply(t, 1, CodeDeviceStatus, []byte{0x00, 42})
	corrupt := make([]byte, len(firstAttempt[0]))
	copy(corrupt, firstAttempt[0])
	corrupt[len(corrupt)-1] ^= 0xFF

	// The retry resends the request under a new sequence number, so the
	// second attempt's reply must be tagged seq=2.
	secondAttempt := buildReply(t, 2, CodeDeviceStatus, []byte{0x00, 42})

	mt.Push(corrupt)
	mt.Push(secondAttempt...)

	c := newTestClient(mt)
	status, err := c.DeviceStatus()
	require.NoError(t, err)
	require.Equal(t, uint8(42), status.BatteryChargePercent)
}
