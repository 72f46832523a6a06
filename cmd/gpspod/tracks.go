package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/gpspod/internal/gpspod/gpserr"
	"github.com/banshee-data/gpspod/internal/gpspod/gpx"
	"github.com/banshee-data/gpspod/internal/gpspod/pmem"
	"github.com/banshee-data/gpspod/internal/gpspod/sample"
)

// memViewReader is the subset of *memview.MemoryView the tracks/retrieve
// commands need, letting tests substitute a fake byte region.
type memViewReader interface {
	Read(a, b int64) ([]byte, error)
}

// decodeTracks walks the track entry-block chain and decodes it into a
// list of tracks, surfacing pmem chain warnings alongside any decoder
// warnings.
func decodeTracks(r memViewReader) ([]sample.Track, []string, error) {
	chain, err := pmem.DecodeTrackChain(r)
	if err != nil {
		return nil, nil, err
	}

	result := sample.Decode(chain.Data)

	var warnings []string
	for _, w := range chain.Warnings {
		warnings = append(warnings, fmt.Sprintf("partial PMEM decode at offset %#x: %s", w.Offset, w.Reason))
	}
	for _, w := range result.Warnings {
		warnings = append(warnings, fmt.Sprintf("partial sample decode at offset %#x: %s", w.Offset, w.Reason))
	}

	return result.Tracks, warnings, nil
}

// trackSummary is the machine-readable shape used by `tracks --json`.
type trackSummary struct {
	Index     int       `json:"index"`
	Start     time.Time `json:"start"`
	Distance  uint32    `json:"distance_m"`
	Samples   int       `json:"samples"`
	Interval  uint16    `json:"interval_s"`
	Truncated bool      `json:"truncated"`
}

func formatTrackLine(idx int, tr sample.Track) string {
	start := time.Unix(int64(tr.Header.StartUnixSeconds), 0).UTC()
	return fmt.Sprintf("%d: %s distance: %d samples: %d interval: %d",
		idx, start.Format("2006-01-02 15:04:05"), tr.Header.DistanceMeter, len(tr.Samples), tr.Header.IntervalSeconds)
}

func printTracks(w io.Writer, tracks []sample.Track, asJSON bool) error {
	if !asJSON {
		for i, tr := range tracks {
			fmt.Fprintln(w, formatTrackLine(i, tr))
		}
		return nil
	}

	summaries := make([]trackSummary, len(tracks))
	for i, tr := range tracks {
		summaries[i] = trackSummary{
			Index:     i,
			Start:     time.Unix(int64(tr.Header.StartUnixSeconds), 0).UTC(),
			Distance:  tr.Header.DistanceMeter,
			Samples:   len(tr.Samples),
			Interval:  tr.Header.IntervalSeconds,
			Truncated: tr.Truncated,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}

// selectTrack returns tracks[idx] or a UsageError if idx is out of range.
func selectTrack(tracks []sample.Track, idx int) (sample.Track, error) {
	if idx < 0 || idx >= len(tracks) {
		return sample.Track{}, gpserr.New(gpserr.KindUsage, nil, "track index %d out of range (have %d tracks)", idx, len(tracks))
	}
	return tracks[idx], nil
}

func renderTrackGPX(tr sample.Track, opts gpx.Options) ([]byte, error) {
	out, err := gpx.Render(tr, opts)
	if err != nil {
		return nil, gpserr.New(gpserr.KindUsage, err, "rendering GPX: %v", err)
	}
	return out, nil
}
