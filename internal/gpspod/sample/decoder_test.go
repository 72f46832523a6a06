package sample

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func appendTrackHeader(buf []byte, h TrackHeader) []byte {
	body := make([]byte, trackHeaderBodyLen)
	binary.LittleEndian.PutUint32(body[0:4], h.StartUnixSeconds)
	binary.LittleEndian.PutUint32(body[4:8], h.DurationSeconds)
	binary.LittleEndian.PutUint32(body[8:12], h.SampleCount)
	binary.LittleEndian.PutUint32(body[12:16], h.DistanceMeter)
	binary.LittleEndian.PutUint16(body[16:18], h.IntervalSeconds)
	return append(append(buf, byte(TagTrackHeader)), body...)
}

func appendPeriodicHeader(buf []byte, period uint16, fields ...FieldCode) []byte {
	body := make([]byte, 3+len(fields))
	binary.LittleEndian.PutUint16(body[0:2], period)
	body[2] = byte(len(fields))
	for i, f := range fields {
		body[3+i] = byte(f)
	}
	return append(append(buf, byte(TagPeriodicHeader)), body...)
}

func appendPeriodicSample(buf []byte, hr byte, speed uint16) []byte {
	body := []byte{hr, byte(speed), byte(speed >> 8)}
	return append(append(buf, byte(TagPeriodicSample)), body...)
}

func appendGPSBase(buf []byte, s GPSSample) []byte {
	body := make([]byte, gpsBaseBodyLen)
	binary.LittleEndian.PutUint32(body[0:4], uint32(s.LatitudeE7))
	binary.LittleEndian.PutUint32(body[4:8], uint32(s.LongitudeE7))
	binary.LittleEndian.PutUint16(body[8:10], s.EHPE)
	body[10] = s.Satellites
	binary.LittleEndian.PutUint16(body[11:13], s.GroundSpeed)
	return append(append(buf, byte(TagGPSBase)), body...)
}

func appendGPSSmall(buf []byte, dLat, dLon int8, ehpe uint16) []byte {
	body := []byte{byte(dLat), byte(dLon), byte(ehpe), byte(ehpe >> 8)}
	return append(append(buf, byte(TagGPSSmall)), body...)
}

func appendTimeReference(buf []byte, unix uint32) []byte {
	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, unix)
	return append(append(buf, byte(TagTimeReference)), body...)
}

func appendLap(buf []byte, typ LapType, dist uint32) []byte {
	body := make([]byte, 5)
	body[0] = byte(typ)
	binary.LittleEndian.PutUint32(body[1:5], dist)
	return append(append(buf, byte(TagLap)), body...)
}

func TestDecodeSingleTrackWithPeriodicAndGPS(t *testing.T) {
	var stream []byte
	stream = appendTrackHeader(stream, TrackHeader{
		StartUnixSeconds: 1000, DurationSeconds: 60, SampleCount: 2, DistanceMeter: 10, IntervalSeconds: 1,
	})
	stream = appendTimeReference(stream, 1000)
	stream = appendPeriodicHeader(stream, 1, FieldHeartRate, FieldSpeed)
	stream = appendGPSBase(stream, GPSSample{LatitudeE7: 400000000, LongitudeE7: -750000000, EHPE: 5, Satellites: 8, GroundSpeed: 120})
	stream = appendPeriodicSample(stream, 140, 300)
	stream = appendGPSSmall(stream, 2, -3, 4)
	stream = appendPeriodicSample(stream, 142, 310)
	stream = appendLap(stream, LapAuto, 500)

	res := Decode(stream)
	require.Empty(t, res.Warnings)
	require.Len(t, res.Tracks, 1)

	tr := res.Tracks[0]
	require.False(t, tr.Truncated)
	require.Equal(t, uint32(1000), tr.TimeRef)
	require.Equal(t, uint32(10), tr.Header.DistanceMeter)
	require.Len(t, tr.Samples, 2)
	require.Equal(t, int32(140), tr.Samples[0].Values[FieldHeartRate])
	require.Equal(t, int32(300), tr.Samples[0].Values[FieldSpeed])
	require.Len(t, tr.GPSSamples, 2)
	require.Equal(t, int32(400000002), tr.GPSSamples[1].LatitudeE7)
	require.Equal(t, int32(-750000003), tr.GPSSamples[1].LongitudeE7)
	require.Len(t, tr.Laps, 1)
}

func TestDecodeTrackHeaderMatchesInput(t *testing.T) {
	want := TrackHeader{
		StartUnixSeconds: 1729886015,
		DurationSeconds:  3600,
		SampleCount:      2,
		DistanceMeter:    4200,
		IntervalSeconds:  1,
	}
	stream := appendTrackHeader(nil, want)
	stream = appendTimeReference(stream, want.StartUnixSeconds)

	res := Decode(stream)
	require.Len(t, res.Tracks, 1)

	if diff := cmp.Diff(want, res.Tracks[0].Header); diff != "" {
		t.Errorf("TrackHeader mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMultipleTracksSeparatedByHeaders(t *testing.T) {
	var stream []byte
	stream = appendTrackHeader(stream, TrackHeader{StartUnixSeconds: 1, SampleCount: 0, IntervalSeconds: 1})
	stream = appendTrackHeader(stream, TrackHeader{StartUnixSeconds: 2, SampleCount: 0, IntervalSeconds: 1})
	stream = appendTrackHeader(stream, TrackHeader{StartUnixSeconds: 3, SampleCount: 0, IntervalSeconds: 1})

	res := Decode(stream)
	require.Empty(t, res.Warnings)
	require.Len(t, res.Tracks, 3)
	require.Equal(t, uint32(1), res.Tracks[0].Header.StartUnixSeconds)
	require.Equal(t, uint32(2), res.Tracks[1].Header.StartUnixSeconds)
	require.Equal(t, uint32(3), res.Tracks[2].Header.StartUnixSeconds)
}

func TestDecodePeriodicSampleBeforeHeaderTruncatesTrack(t *testing.T) {
	var stream []byte
	stream = appendTrackHeader(stream, TrackHeader{StartUnixSeconds: 1, IntervalSeconds: 1})
	stream = appendPeriodicSample(stream, 100, 200)

	res := Decode(stream)
	require.Len(t, res.Tracks, 1)
	require.True(t, res.Tracks[0].Truncated)
}

func TestDecodeUnknownTagTruncatesWithWarning(t *testing.T) {
	var stream []byte
	stream = appendTrackHeader(stream, TrackHeader{StartUnixSeconds: 1, IntervalSeconds: 1})
	stream = appendTimeReference(stream, 1)
	badOffset := len(stream)
	stream = append(stream, 0xEE) // unknown tag, no body

	res := Decode(stream)
	require.Len(t, res.Tracks, 1)
	require.True(t, res.Tracks[0].Truncated)
	require.Len(t, res.Warnings, 1)
	require.Equal(t, int64(badOffset), res.Warnings[0].Offset)
}

func TestDecodeTerminatesExactlyAtStreamLength(t *testing.T) {
	var stream []byte
	stream = appendTrackHeader(stream, TrackHeader{StartUnixSeconds: 1, IntervalSeconds: 1})
	stream = appendTimeReference(stream, 1)

	res := Decode(stream)
	require.Empty(t, res.Warnings)
	require.Len(t, res.Tracks, 1)
}

func TestSignExtend24NegativeDelta(t *testing.T) {
	// -1 in 24-bit two's complement: 0xFFFFFF
	got := signExtend24([]byte{0xFF, 0xFF, 0xFF})
	require.Equal(t, int32(-1), got)
}

func TestUnknownPeriodicHeaderFieldCodeIsDecodeError(t *testing.T) {
	var stream []byte
	stream = appendTrackHeader(stream, TrackHeader{StartUnixSeconds: 1, IntervalSeconds: 1})
	stream = appendPeriodicHeader(stream, 1, FieldCode(0xAA))

	res := Decode(stream)
	require.Len(t, res.Tracks, 1)
	require.True(t, res.Tracks[0].Truncated)
}
