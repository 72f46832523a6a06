// Package sample decodes the track chain's tagged variable-length
// record stream into a list of Tracks.
package sample

import (
	"time"

	"github.com/banshee-data/gpspod/internal/gpspod/gpserr"
)

const tagSize = 1

// Track is the contiguous run of records from one TrackHeader until
// the next TrackHeader or end of stream.
type Track struct {
	Header TrackHeader
	// TimeRef is the wall-clock base from the track's most recent
	// TimeReference record; zero when the track carried none.
	TimeRef     uint32
	Samples     []PeriodicSample
	GPSSamples  []GPSSample
	Laps        []Lap
	Period      time.Duration
	Truncated   bool
	TruncReason string
}

// Warning mirrors pmem.Warning for decode-time partial-decode notices
// at the sample layer.
type Warning struct {
	Offset int64
	Reason string
}

// Result is the outcome of decoding one track chain's byte stream.
type Result struct {
	Tracks   []Track
	Warnings []Warning
}

// decoderState is the between-tracks / in-track state machine.
type decoderState int

const (
	stateBetweenTracks decoderState = iota
	stateInTrack
)

// Decode walks data tag-by-tag and assembles tracks. It never retries
// past a decode error: record lengths are not self-delimiting, so an
// unknown tag or a record that doesn't fit the remaining bytes closes
// the current track as truncated and stops rather than resynchronising.
func Decode(data []byte) *Result {
	res := &Result{}
	state := stateBetweenTracks

	var cur *Track
	var periodicHdr *PeriodicHeader
	var base GPSSample
	var haveBase bool
	var elapsed time.Duration

	closeCurrent := func(truncated bool, reason string) {
		if cur == nil {
			return
		}
		cur.Truncated = truncated
		cur.TruncReason = reason
		res.Tracks = append(res.Tracks, *cur)
		cur = nil
		periodicHdr = nil
		haveBase = false
		elapsed = 0
	}

	pos := 0
	for pos < len(data) {
		tagOffset := pos
		tag := Tag(data[pos])
		pos += tagSize

		switch tag {
		case TagTrackHeader:
			body, ok := take(data, &pos, trackHeaderBodyLen)
			if !ok {
				closeCurrent(true, "TrackHeader record truncated")
				return res
			}
			hdr, err := parseTrackHeader(body)
			if err != nil {
				closeCurrent(true, err.Error())
				return res
			}
			if state == stateInTrack {
				closeCurrent(false, "")
			}
			cur = &Track{Header: hdr, Period: time.Duration(hdr.IntervalSeconds) * time.Second}
			state = stateInTrack

		case TagPeriodicHeader:
			if !requireInTrack(state, cur, &res.Warnings, tagOffset, "PeriodicHeader outside track") {
				pos = len(data)
				break
			}
			rest := data[pos:]
			if len(rest) < 3 {
				closeCurrent(true, "PeriodicHeader record truncated")
				return res
			}
			count := int(rest[2])
			body, ok := take(data, &pos, 3+count)
			if !ok {
				closeCurrent(true, "PeriodicHeader record truncated")
				return res
			}
			h, err := parsePeriodicHeader(body)
			if err != nil {
				closeCurrent(true, err.Error())
				return res
			}
			periodicHdr = &h
			cur.Period = time.Duration(h.SamplePeriodSeconds) * time.Second

		case TagPeriodicSample:
			if !requireInTrack(state, cur, &res.Warnings, tagOffset, "PeriodicSample outside track") {
				pos = len(data)
				break
			}
			if periodicHdr == nil {
				closeCurrent(true, "PeriodicSample before any PeriodicHeader")
				return res
			}
			body, ok := take(data, &pos, periodicHdr.width())
			if !ok {
				closeCurrent(true, "PeriodicSample record truncated")
				return res
			}
			s, err := parsePeriodicSample(*periodicHdr, body)
			if err != nil {
				closeCurrent(true, err.Error())
				return res
			}
			s.TimestampOffset = uint32(elapsed.Seconds())
			elapsed += cur.Period
			cur.Samples = append(cur.Samples, s)

		case TagGPSBase:
			if !requireInTrack(state, cur, &res.Warnings, tagOffset, "GPSBase outside track") {
				pos = len(data)
				break
			}
			body, ok := take(data, &pos, gpsBaseBodyLen)
			if !ok {
				closeCurrent(true, "GPSBase record truncated")
				return res
			}
			s, err := parseGPSBase(body)
			if err != nil {
				closeCurrent(true, err.Error())
				return res
			}
			base, haveBase = s, true
			cur.GPSSamples = append(cur.GPSSamples, s)

		case TagGPSSmall:
			if !requireInTrack(state, cur, &res.Warnings, tagOffset, "GPSSmall outside track") {
				pos = len(data)
				break
			}
			body, ok := take(data, &pos, gpsSmallBodyLen)
			if !ok {
				closeCurrent(true, "GPSSmall record truncated")
				return res
			}
			if !haveBase {
				closeCurrent(true, "GPSSmall before any GPSBase")
				return res
			}
			s, err := applyGPSSmall(base, body)
			if err != nil {
				closeCurrent(true, err.Error())
				return res
			}
			base = s
			cur.GPSSamples = append(cur.GPSSamples, s)

		case TagGPSLarge:
			if !requireInTrack(state, cur, &res.Warnings, tagOffset, "GPSLarge outside track") {
				pos = len(data)
				break
			}
			body, ok := take(data, &pos, gpsLargeBodyLen)
			if !ok {
				closeCurrent(true, "GPSLarge record truncated")
				return res
			}
			if !haveBase {
				closeCurrent(true, "GPSLarge before any GPSBase")
				return res
			}
			s, err := applyGPSLarge(base, body)
			if err != nil {
				closeCurrent(true, err.Error())
				return res
			}
			base = s
			cur.GPSSamples = append(cur.GPSSamples, s)

		case TagTimeReference:
			if !requireInTrack(state, cur, &res.Warnings, tagOffset, "TimeReference outside track") {
				pos = len(data)
				break
			}
			body, ok := take(data, &pos, 4)
			if !ok {
				closeCurrent(true, "TimeReference record truncated")
				return res
			}
			ref, err := parseTimeReference(body)
			if err != nil {
				closeCurrent(true, err.Error())
				return res
			}
			cur.TimeRef = ref.UnixSeconds
			elapsed = 0

		case TagLap:
			if !requireInTrack(state, cur, &res.Warnings, tagOffset, "Lap outside track") {
				pos = len(data)
				break
			}
			body, ok := take(data, &pos, 5)
			if !ok {
				closeCurrent(true, "Lap record truncated")
				return res
			}
			l, err := parseLap(body)
			if err != nil {
				closeCurrent(true, err.Error())
				return res
			}
			cur.Laps = append(cur.Laps, l)

		default:
			closeCurrent(true, "unknown record tag")
			res.Warnings = append(res.Warnings, Warning{
				Offset: int64(tagOffset),
				Reason: "unknown sample tag",
			})
			return res
		}
	}

	closeCurrent(false, "")
	return res
}

// requireInTrack reports whether state is stateInTrack, recording a
// warning and returning false otherwise so the caller can bail out of
// the stream. A well-formed stream never carries these records outside
// a track's span, but the layer above cannot validate that.
func requireInTrack(state decoderState, cur *Track, warnings *[]Warning, offset int, reason string) bool {
	if state == stateInTrack && cur != nil {
		return true
	}
	*warnings = append(*warnings, Warning{Offset: int64(offset), Reason: reason})
	return false
}

// take slices data[*pos : *pos+n], advancing *pos, or reports failure
// if the stream doesn't have n bytes remaining.
func take(data []byte, pos *int, n int) ([]byte, bool) {
	if *pos+n > len(data) {
		return nil, false
	}
	out := data[*pos : *pos+n]
	*pos += n
	return out, true
}

// DecodeErrorAt wraps a decode failure with its byte offset within the
// logical stream.
func DecodeErrorAt(offset int64, reason string) error {
	return gpserr.NewAtOffset(gpserr.KindDecode, offset, nil, "%s", reason)
}
