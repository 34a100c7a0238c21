package interval

import (
	"sort"
	"time"
)

// Span is a half-open time span [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the span, or 0 for an empty/inverted span.
func (s Span) Duration() time.Duration {
	if !s.End.After(s.Start) {
		return 0
	}
	return s.End.Sub(s.Start)
}

// Merge sorts spans by start time and coalesces them into a disjoint,
// ascending list. Spans that touch (next start == current end) are merged.
// Spans with End <= Start are discarded before merging.
func Merge(spans []Span) []Span {
	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.End.After(s.Start) {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Start.Before(valid[j].Start)
	})

	merged := []Span{valid[0]}
	for _, s := range valid[1:] {
		last := &merged[len(merged)-1]
		if !s.Start.After(last.End) {
			if s.End.After(last.End) {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// Overlap returns the total duration of the intersection between the given
// spans and [span.Start, span.End). The input is merged first, so callers may
// pass overlapping or unordered spans.
func Overlap(spans []Span, span Span) time.Duration {
	if !span.End.After(span.Start) {
		return 0
	}

	var total time.Duration
	for _, s := range Merge(spans) {
		start := s.Start
		if span.Start.After(start) {
			start = span.Start
		}
		end := s.End
		if span.End.Before(end) {
			end = span.End
		}
		if end.After(start) {
			total += end.Sub(start)
		}
	}
	return total
}

// Clamp restricts s to the bounds span. The second return value is false if
// the clamped span is empty.
func Clamp(s, bounds Span) (Span, bool) {
	if s.Start.Before(bounds.Start) {
		s.Start = bounds.Start
	}
	if s.End.After(bounds.End) {
		s.End = bounds.End
	}
	if !s.End.After(s.Start) {
		return Span{}, false
	}
	return s, true
}
