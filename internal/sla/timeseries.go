package sla

import (
	"sort"
	"time"
)

// Sample is one raw probe observation. Samples are ephemeral input: they are
// consumed by the incident builder and the duration classifier and never
// persisted by the engine itself.
type Sample struct {
	Time time.Time
	Up   bool
}

// DurationBreakdown splits a period into observed-up, observed-down, and
// unknown time.
type DurationBreakdown struct {
	Up      time.Duration
	Down    time.Duration
	Unknown time.Duration
}

// gapCapFactor bounds how long a sample's state is carried forward: any gap
// larger than gapCapFactor times the inferred median sampling interval is
// classified UNKNOWN instead of being attributed to the previous state.
const gapCapFactor = 3

// ClassifyDurations walks a time-ordered status series and attributes every
// moment of [from, to) to UP, DOWN, or UNKNOWN. The state observed at a
// sample is carried forward until the next sample, except across gaps larger
// than 3x the median sampling interval, which count as UNKNOWN. Time before
// the first sample and samples with a zero timestamp are UNKNOWN as well.
//
// This is the legacy duration-based availability path, kept behind the same
// downtime abstraction as the incident-based path.
func ClassifyDurations(samples []Sample, from, to time.Time) DurationBreakdown {
	var b DurationBreakdown
	if !to.After(from) {
		return b
	}

	points := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Time.IsZero() || s.Time.Before(from) || !s.Time.Before(to) {
			continue
		}
		points = append(points, s)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})

	if len(points) < 2 {
		b.Unknown = to.Sub(from)
		return b
	}

	cap := gapCapFactor * medianInterval(points)

	// Time before the first observation is unknowable.
	b.Unknown += points[0].Time.Sub(from)

	for i := 1; i < len(points); i++ {
		attribute(&b, points[i-1].Up, points[i].Time.Sub(points[i-1].Time), cap)
	}

	// Carry the last observed state to the end of the period, same cap.
	attribute(&b, points[len(points)-1].Up, to.Sub(points[len(points)-1].Time), cap)

	return b
}

func attribute(b *DurationBreakdown, up bool, gap, cap time.Duration) {
	if gap <= 0 {
		return
	}
	if gap > cap {
		b.Unknown += gap
		return
	}
	if up {
		b.Up += gap
	} else {
		b.Down += gap
	}
}

// medianInterval infers the sampling interval as the median of the gaps
// between consecutive samples. Requires at least two samples.
func medianInterval(points []Sample) time.Duration {
	gaps := make([]time.Duration, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		gaps = append(gaps, points[i].Time.Sub(points[i-1].Time))
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	return gaps[len(gaps)/2]
}
