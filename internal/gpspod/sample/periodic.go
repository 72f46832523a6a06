package sample

import "github.com/banshee-data/gpspod/internal/gpspod/gpserr"

// FieldCode identifies one field within a PeriodicHeader's declared
// layout.
type FieldCode byte

const (
	FieldHeartRate   FieldCode = 0x01
	FieldSpeed       FieldCode = 0x02
	FieldCadence     FieldCode = 0x03
	FieldAltitude    FieldCode = 0x04
	FieldPower       FieldCode = 0x05
	FieldTemperature FieldCode = 0x06
)

// fieldWidths gives the on-wire byte width of each known field code.
// An unknown code is a DecodeError, never a silent skip.
var fieldWidths = map[FieldCode]int{
	FieldHeartRate:   1,
	FieldSpeed:       2,
	FieldCadence:     1,
	FieldAltitude:    2,
	FieldPower:       2,
	FieldTemperature: 1,
}

// PeriodicHeader declares the field layout of subsequent PeriodicSample
// records plus the sample period they're spaced by.
type PeriodicHeader struct {
	SamplePeriodSeconds uint16
	Fields              []FieldCode
}

func parsePeriodicHeader(body []byte) (PeriodicHeader, error) {
	if len(body) < 3 {
		return PeriodicHeader{}, gpserr.New(gpserr.KindDecode, nil, "periodic header truncated")
	}
	period := uint16(body[0]) | uint16(body[1])<<8
	count := int(body[2])
	fields := make([]FieldCode, 0, count)
	for i := 0; i < count; i++ {
		if 3+i >= len(body) {
			return PeriodicHeader{}, gpserr.New(gpserr.KindDecode, nil, "periodic header field list truncated")
		}
		code := FieldCode(body[3+i])
		if _, ok := fieldWidths[code]; !ok {
			return PeriodicHeader{}, gpserr.New(gpserr.KindDecode, nil, "unknown periodic header field code %#x", code)
		}
		fields = append(fields, code)
	}
	return PeriodicHeader{SamplePeriodSeconds: period, Fields: fields}, nil
}

// width returns the total encoded width of a PeriodicSample body under
// this header's declared field layout.
func (h PeriodicHeader) width() int {
	n := 0
	for _, f := range h.Fields {
		n += fieldWidths[f]
	}
	return n
}

// PeriodicSample is a decoded fixed-layout sample under a prior
// PeriodicHeader's field declaration.
type PeriodicSample struct {
	TimestampOffset uint32 // seconds since the track's TimeReference
	Values          map[FieldCode]int32
}

func parsePeriodicSample(hdr PeriodicHeader, body []byte) (PeriodicSample, error) {
	if len(body) < hdr.width() {
		return PeriodicSample{}, gpserr.New(gpserr.KindDecode, nil, "periodic sample shorter than declared layout")
	}
	values := make(map[FieldCode]int32, len(hdr.Fields))
	pos := 0
	for _, f := range hdr.Fields {
		w := fieldWidths[f]
		values[f] = decodeUnsignedLE(body[pos : pos+w])
		pos += w
	}
	return PeriodicSample{Values: values}, nil
}

func decodeUnsignedLE(b []byte) int32 {
	var v int32
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | int32(b[i])
	}
	return v
}
