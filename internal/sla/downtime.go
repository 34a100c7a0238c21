package sla

import (
	"time"

	"github.com/sentinelsla/sentinel/internal/interval"
)

// UnplannedDowntime returns the part of [start, end) not covered by any of
// the given maintenance windows. Windows with EndsAt <= StartsAt are ignored;
// overlapping windows are merged before the overlap is subtracted, so stacked
// windows never subtract the same time twice.
func UnplannedDowntime(start, end time.Time, windows []MaintenanceWindow) time.Duration {
	if !end.After(start) {
		return 0
	}

	spans := make([]interval.Span, 0, len(windows))
	for _, w := range windows {
		if w.EndsAt.After(w.StartsAt) {
			spans = append(spans, interval.Span{Start: w.StartsAt, End: w.EndsAt})
		}
	}

	covered := interval.Overlap(spans, interval.Span{Start: start, End: end})
	unplanned := end.Sub(start) - covered
	if unplanned < 0 {
		return 0
	}
	return unplanned
}
