package sample

import (
	"encoding/binary"

	"github.com/banshee-data/gpspod/internal/gpspod/gpserr"
)

// GPSSample is a decoded GPS fix, whether from a GPSBase (absolute) or
// a GPSSmall/GPSLarge (delta) record applied against the track's
// running base position.
type GPSSample struct {
	LatitudeE7  int32
	LongitudeE7 int32
	EHPE        uint16
	Satellites  uint8
	GroundSpeed uint16 // cm/s
}

const (
	gpsBaseBodyLen  = 13
	gpsSmallBodyLen = 4
	gpsLargeBodyLen = 6
)

func parseGPSBase(body []byte) (GPSSample, error) {
	if len(body) < gpsBaseBodyLen {
		return GPSSample{}, gpserr.New(gpserr.KindDecode, nil, "GPSBase record truncated")
	}
	return GPSSample{
		LatitudeE7:  int32(binary.LittleEndian.Uint32(body[0:4])),
		LongitudeE7: int32(binary.LittleEndian.Uint32(body[4:8])),
		EHPE:        binary.LittleEndian.Uint16(body[8:10]),
		Satellites:  body[10],
		GroundSpeed: binary.LittleEndian.Uint16(body[11:13]),
	}, nil
}

// applyGPSSmall applies a signed 8-bit lat/lon delta pair against base.
func applyGPSSmall(base GPSSample, body []byte) (GPSSample, error) {
	if len(body) < gpsSmallBodyLen {
		return GPSSample{}, gpserr.New(gpserr.KindDecode, nil, "GPSSmall record truncated")
	}
	dLat := signExtend8(body[0])
	dLon := signExtend8(body[1])
	out := base
	out.LatitudeE7 += dLat
	out.LongitudeE7 += dLon
	out.EHPE = binary.LittleEndian.Uint16(body[2:4])
	return out, nil
}

// applyGPSLarge applies a signed 24-bit lat/lon delta pair against base.
func applyGPSLarge(base GPSSample, body []byte) (GPSSample, error) {
	if len(body) < gpsLargeBodyLen {
		return GPSSample{}, gpserr.New(gpserr.KindDecode, nil, "GPSLarge record truncated")
	}
	dLat := signExtend24(body[0:3])
	dLon := signExtend24(body[3:6])
	out := base
	out.LatitudeE7 += dLat
	out.LongitudeE7 += dLon
	return out, nil
}

// signExtend8 sign-extends a signed 8-bit delta into an int32.
func signExtend8(b byte) int32 {
	return int32(int8(b))
}

// signExtend24 sign-extends a little-endian signed 24-bit delta into an int32.
func signExtend24(b []byte) int32 {
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	if v&0x00800000 != 0 {
		v |= 0xFF000000
	}
	return int32(v)
}

// TimeReference is a wall-clock base that subsequent timestamps (on
// PeriodicSample records) are relative to.
type TimeReference struct {
	UnixSeconds uint32
}

func parseTimeReference(body []byte) (TimeReference, error) {
	if len(body) < 4 {
		return TimeReference{}, gpserr.New(gpserr.KindDecode, nil, "TimeReference record truncated")
	}
	return TimeReference{UnixSeconds: binary.LittleEndian.Uint32(body[0:4])}, nil
}

// LapType distinguishes manual laps from auto-lap triggers.
type LapType uint8

const (
	LapManual LapType = 0
	LapAuto   LapType = 1
)

// Lap is a lap marker within a track.
type Lap struct {
	Type          LapType
	DistanceMeter uint32
}

func parseLap(body []byte) (Lap, error) {
	if len(body) < 5 {
		return Lap{}, gpserr.New(gpserr.KindDecode, nil, "Lap record truncated")
	}
	return Lap{
		Type:          LapType(body[0]),
		DistanceMeter: binary.LittleEndian.Uint32(body[1:5]),
	}, nil
}

// TrackHeader announces the start of a new track.
type TrackHeader struct {
	StartUnixSeconds uint32
	DurationSeconds  uint32
	SampleCount      uint32
	DistanceMeter    uint32
	IntervalSeconds  uint16
}

const trackHeaderBodyLen = 18

func parseTrackHeader(body []byte) (TrackHeader, error) {
	if len(body) < trackHeaderBodyLen {
		return TrackHeader{}, gpserr.New(gpserr.KindDecode, nil, "TrackHeader record truncated")
	}
	return TrackHeader{
		StartUnixSeconds: binary.LittleEndian.Uint32(body[0:4]),
		DurationSeconds:  binary.LittleEndian.Uint32(body[4:8]),
		SampleCount:      binary.LittleEndian.Uint32(body[8:12]),
		DistanceMeter:    binary.LittleEndian.Uint32(body[12:16]),
		IntervalSeconds:  binary.LittleEndian.Uint16(body[16:18]),
	}, nil
}
