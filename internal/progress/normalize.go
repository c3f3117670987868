// Package progress turns raw transcoder telemetry into display records.
package progress

import (
	"fmt"
	"math"
	"time"
)

// Snapshot is one telemetry notification from the transcoder.
// Nil pointers and an empty Timemark mean the engine did not report the field.
type Snapshot struct {
	Percent     *float64 // fractional completion, 0-100
	Timemark    string   // cumulative output time, e.g. "00:01:02.50"
	CurrentKbps *float64 // instantaneous bitrate
}

// Record is the normalized, display-ready form of a snapshot.
type Record struct {
	Percent int    `json:"percent"`
	Time    string `json:"time"`
	Speed   string `json:"speed"`
	ETA     string `json:"eta"`
}

// Normalize converts s into a Record. Missing fields become the sentinel
// strings from l; nothing here fails.
func Normalize(s Snapshot, start, now time.Time, l Labels) Record {
	rec := Record{
		Time:  l.ZeroTime,
		Speed: l.ZeroSpeed,
		ETA:   l.Computing,
	}

	var pct float64
	if s.Percent != nil && !math.IsNaN(*s.Percent) {
		pct = *s.Percent
	}
	rec.Percent = clampPercent(int(math.Round(pct)))

	if s.Timemark != "" {
		rec.Time = s.Timemark
	}
	if s.CurrentKbps != nil && *s.CurrentKbps != 0 {
		rec.Speed = fmt.Sprintf(l.SpeedMbps, *s.CurrentKbps/1000)
	}

	if pct > 0 {
		elapsed := now.Sub(start).Seconds()
		remaining := elapsed / pct * (100 - pct)
		rec.ETA = FormatETA(remaining, l)
	}

	return rec
}

// FormatETA renders a remaining-seconds estimate. Under an hour it shows
// minutes and seconds, otherwise hours and minutes. Non-positive values
// render the computing placeholder.
func FormatETA(remaining float64, l Labels) string {
	if !(remaining > 0) {
		return l.Computing
	}
	secs := int(math.Round(remaining))
	if secs < 3600 {
		return fmt.Sprintf(l.MinutesSeconds, secs/60, secs%60)
	}
	mins := int(math.Round(remaining / 60))
	return fmt.Sprintf(l.HoursMinutes, mins/60, mins%60)
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
