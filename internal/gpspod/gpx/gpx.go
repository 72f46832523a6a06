// Package gpx renders a decoded track as a GPX 1.1 document.
package gpx

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/banshee-data/gpspod/internal/gpspod/sample"
)

const (
	xmlnsGPX  = "http://www.topografix.com/GPX/1/1"
	creator   = "gpspod"
	schemaLoc = "http://www.topografix.com/GPX/1/1 http://www.topografix.com/GPX/1/1/gpx.xsd"
)

// Options controls how lap markers and segments are rendered.
type Options struct {
	// LapSplitsSegments starts a new <trkseg> at each Lap record.
	LapSplitsSegments bool
	// LapAddsWaypoint emits a <wpt> for each Lap record.
	LapAddsWaypoint bool
	// AllPoints emits every GPS sample, including ones the device marked
	// as having no fix. By default those are dropped.
	AllPoints bool
}

// noFixEHPE is the EHPE value the device uses to mark a GPS sample as
// having no fix.
const noFixEHPE = 0xFFFF

type gpxDoc struct {
	XMLName xml.Name   `xml:"gpx"`
	Xmlns   string     `xml:"xmlns,attr"`
	Version string     `xml:"version,attr"`
	Creator string     `xml:"creator,attr"`
	Schema  string     `xml:"xsi:schemaLocation,attr"`
	XsiNS   string     `xml:"xmlns:xsi,attr"`
	Waypts  []waypoint `xml:"wpt"`
	Track   track      `xml:"trk"`
}

type track struct {
	Name string   `xml:"name"`
	Segs []trkseg `xml:"trkseg"`
}

type trkseg struct {
	Points []trkpt `xml:"trkpt"`
}

type trkpt struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Time string  `xml:"time"`
}

type waypoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Name string  `xml:"name"`
	Time string  `xml:"time"`
}

// Render produces a GPX document for tr. Point timestamps are based on
// the track's TimeReference when it carried one, falling back to the
// header's start time.
func Render(tr sample.Track, opts Options) ([]byte, error) {
	base := tr.Header.StartUnixSeconds
	if tr.TimeRef != 0 {
		base = tr.TimeRef
	}
	start := time.Unix(int64(base), 0).UTC()

	doc := gpxDoc{
		Xmlns:   xmlnsGPX,
		Version: "1.1",
		Creator: creator,
		Schema:  schemaLoc,
		XsiNS:   "http://www.w3.org/2001/XMLSchema-instance",
		Track: track{
			Name: fmt.Sprintf("track-%s", start.Format("2006-01-02T15:04:05Z")),
		},
	}

	seg := trkseg{}
	lapIdx := 0
	lapTimestamps := lapSampleIndices(tr)

	for i, gs := range tr.GPSSamples {
		if !opts.AllPoints && gs.EHPE == noFixEHPE {
			continue
		}

		ts := start
		if i < len(tr.Samples) {
			ts = start.Add(time.Duration(tr.Samples[i].TimestampOffset) * time.Second)
		} else {
			ts = start.Add(time.Duration(i) * tr.Period)
		}

		seg.Points = append(seg.Points, trkpt{
			Lat:  float64(gs.LatitudeE7) / 1e7,
			Lon:  float64(gs.LongitudeE7) / 1e7,
			Time: ts.Format(time.RFC3339),
		})

		if opts.LapSplitsSegments && lapIdx < len(lapTimestamps) && i == lapTimestamps[lapIdx] {
			doc.Track.Segs = append(doc.Track.Segs, seg)
			seg = trkseg{}
			lapIdx++
		}
	}
	doc.Track.Segs = append(doc.Track.Segs, seg)

	if opts.LapAddsWaypoint {
		for li, l := range tr.Laps {
			idx := 0
			if li < len(lapTimestamps) {
				idx = lapTimestamps[li]
			}
			var lat, lon float64
			if idx < len(tr.GPSSamples) {
				lat = float64(tr.GPSSamples[idx].LatitudeE7) / 1e7
				lon = float64(tr.GPSSamples[idx].LongitudeE7) / 1e7
			}
			doc.Waypts = append(doc.Waypts, waypoint{
				Lat:  lat,
				Lon:  lon,
				Name: fmt.Sprintf("Lap %d (%d m)", li+1, l.DistanceMeter),
				Time: start.Add(time.Duration(idx) * tr.Period).Format(time.RFC3339),
			})
		}
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("gpx: marshal: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// lapSampleIndices approximates each lap marker's position within the
// GPS sample sequence by even spacing; the device's on-wire format
// does not correlate laps to a sample index directly.
func lapSampleIndices(tr sample.Track) []int {
	if len(tr.Laps) == 0 || len(tr.GPSSamples) == 0 {
		return nil
	}
	step := len(tr.GPSSamples) / (len(tr.Laps) + 1)
	if step == 0 {
		step = 1
	}
	idxs := make([]int, 0, len(tr.Laps))
	for i := range tr.Laps {
		idx := step * (i + 1)
		if idx >= len(tr.GPSSamples) {
			idx = len(tr.GPSSamples) - 1
		}
		idxs = append(idxs, idx)
	}
	return idxs
}
