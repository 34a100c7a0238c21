package sla

import (
	"testing"
	"time"
)

func ts(sec int) time.Time {
	return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second)
}

func TestClassifyDurations(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
		from    time.Time
		to      time.Time
		want    DurationBreakdown
	}{
		{
			name:    "no samples is all unknown",
			samples: nil,
			from:    ts(0),
			to:      ts(300),
			want:    DurationBreakdown{Unknown: 300 * time.Second},
		},
		{
			name:    "single sample is all unknown",
			samples: []Sample{{Time: ts(60), Up: true}},
			from:    ts(0),
			to:      ts(300),
			want:    DurationBreakdown{Unknown: 300 * time.Second},
		},
		{
			name: "steady up series",
			samples: []Sample{
				{Time: ts(0), Up: true},
				{Time: ts(30), Up: true},
				{Time: ts(60), Up: true},
				{Time: ts(90), Up: true},
			},
			from: ts(0),
			to:   ts(120),
			want: DurationBreakdown{Up: 120 * time.Second},
		},
		{
			name: "down stretch in the middle",
			samples: []Sample{
				{Time: ts(0), Up: true},
				{Time: ts(30), Up: false},
				{Time: ts(60), Up: false},
				{Time: ts(90), Up: true},
			},
			from: ts(0),
			to:   ts(120),
			want: DurationBreakdown{Up: 60 * time.Second, Down: 60 * time.Second},
		},
		{
			name: "gap over 3x median is unknown",
			samples: []Sample{
				{Time: ts(0), Up: true},
				{Time: ts(30), Up: true},
				{Time: ts(60), Up: true},
				// 150s gap against a 30s median interval.
				{Time: ts(210), Up: true},
				{Time: ts(240), Up: true},
			},
			from: ts(0),
			to:   ts(240),
			want: DurationBreakdown{Up: 90 * time.Second, Unknown: 150 * time.Second},
		},
		{
			name: "gap at exactly 3x median is still attributed",
			samples: []Sample{
				{Time: ts(0), Up: false},
				{Time: ts(30), Up: false},
				{Time: ts(60), Up: false},
				{Time: ts(150), Up: true},
			},
			from: ts(0),
			to:   ts(150),
			want: DurationBreakdown{Down: 150 * time.Second},
		},
		{
			name: "time before first sample is unknown",
			samples: []Sample{
				{Time: ts(60), Up: true},
				{Time: ts(90), Up: true},
			},
			from: ts(0),
			to:   ts(120),
			want: DurationBreakdown{Up: 60 * time.Second, Unknown: 60 * time.Second},
		},
		{
			name: "trailing carry respects gap cap",
			samples: []Sample{
				{Time: ts(0), Up: false},
				{Time: ts(30), Up: false},
				{Time: ts(60), Up: false},
			},
			from: ts(0),
			to:   ts(600),
			want: DurationBreakdown{Down: 60 * time.Second, Unknown: 540 * time.Second},
		},
		{
			name: "zero-timestamp samples are dropped",
			samples: []Sample{
				{Time: time.Time{}, Up: false},
				{Time: ts(0), Up: true},
				{Time: ts(30), Up: true},
			},
			from: ts(0),
			to:   ts(60),
			want: DurationBreakdown{Up: 60 * time.Second},
		},
		{
			name: "samples outside the window are ignored",
			samples: []Sample{
				{Time: ts(-60), Up: false},
				{Time: ts(0), Up: true},
				{Time: ts(30), Up: true},
				{Time: ts(120), Up: false},
			},
			from: ts(0),
			to:   ts(60),
			want: DurationBreakdown{Up: 60 * time.Second},
		},
		{
			name: "unsorted input",
			samples: []Sample{
				{Time: ts(90), Up: true},
				{Time: ts(0), Up: true},
				{Time: ts(60), Up: false},
				{Time: ts(30), Up: false},
			},
			from: ts(0),
			to:   ts(120),
			want: DurationBreakdown{Up: 60 * time.Second, Down: 60 * time.Second},
		},
		{
			name:    "inverted range",
			samples: []Sample{{Time: ts(0), Up: true}, {Time: ts(30), Up: true}},
			from:    ts(300),
			to:      ts(0),
			want:    DurationBreakdown{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyDurations(tt.samples, tt.from, tt.to)
			if got != tt.want {
				t.Errorf("ClassifyDurations() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClassifyDurations_CoversPeriod(t *testing.T) {
	samples := []Sample{
		{Time: ts(10), Up: true},
		{Time: ts(40), Up: false},
		{Time: ts(70), Up: false},
		{Time: ts(100), Up: true},
	}
	from, to := ts(0), ts(180)
	b := ClassifyDurations(samples, from, to)
	total := b.Up + b.Down + b.Unknown
	if total != to.Sub(from) {
		t.Errorf("breakdown sums to %v, want %v", total, to.Sub(from))
	}
}

func TestMedianInterval(t *testing.T) {
	points := []Sample{
		{Time: ts(0)},
		{Time: ts(30)},
		{Time: ts(60)},
		{Time: ts(200)},
	}
	if got := medianInterval(points); got != 30*time.Second {
		t.Errorf("medianInterval() = %v, want 30s", got)
	}
}
