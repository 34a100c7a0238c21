package eval

import (
	"fmt"
	"time"

	"github.com/sentinelsla/sentinel/internal/interval"
	"github.com/sentinelsla/sentinel/internal/sla"
	"github.com/sentinelsla/sentinel/internal/storage"
)

// DowntimeSource yields the unplanned downtime accumulated by a subject over
// a period. The incident-based implementation is the primary path; the
// sample-duration implementation is the legacy alternate kept for parity.
type DowntimeSource interface {
	UsedDowntime(subject sla.Subject, periodStart, periodEnd, now time.Time) (time.Duration, error)
}

// IncidentSource computes downtime from materialized incidents, subtracting
// approved maintenance from each incident span.
type IncidentSource struct {
	incidents   storage.IncidentStore
	maintenance storage.MaintenanceStore
}

// NewIncidentSource creates the incident-based downtime source.
func NewIncidentSource(incidents storage.IncidentStore, maintenance storage.MaintenanceStore) *IncidentSource {
	return &IncidentSource{incidents: incidents, maintenance: maintenance}
}

// UsedDowntime sums unplanned downtime over all incidents overlapping the
// period. Open incidents are treated as ongoing through now; each incident
// is clamped to the period before maintenance is subtracted.
func (s *IncidentSource) UsedDowntime(subject sla.Subject, periodStart, periodEnd, now time.Time) (time.Duration, error) {
	incidents, err := s.incidents.ListIncidents(subject.ID, periodStart, periodEnd)
	if err != nil {
		return 0, fmt.Errorf("list incidents for %s: %w", subject, err)
	}

	windows, err := s.maintenance.ListMaintenance(subject, periodStart, periodEnd)
	if err != nil {
		return 0, fmt.Errorf("list maintenance for %s: %w", subject, err)
	}

	period := interval.Span{Start: periodStart, End: periodEnd}

	var used time.Duration
	for _, inc := range incidents {
		if inc.IsPlanned {
			continue
		}

		end := now
		if inc.EndedAt != nil {
			end = *inc.EndedAt
		}

		span, ok := interval.Clamp(interval.Span{Start: inc.StartedAt, End: end}, period)
		if !ok {
			continue
		}

		used += sla.UnplannedDowntime(span.Start, span.End, windows)
	}

	return used, nil
}

// SampleProvider supplies raw status samples for the duration-based path.
type SampleProvider interface {
	ListSamples(serviceID string, from, to time.Time) ([]sla.Sample, error)
}

// SampleDurationSource computes downtime by classifying a raw sample series
// into UP/DOWN/UNKNOWN durations. Only classified DOWN time counts as used
// budget; UNKNOWN gaps are never attributed to downtime.
type SampleDurationSource struct {
	samples SampleProvider
}

// NewSampleDurationSource creates the sample-duration downtime source.
func NewSampleDurationSource(samples SampleProvider) *SampleDurationSource {
	return &SampleDurationSource{samples: samples}
}

// UsedDowntime implements DowntimeSource over the raw sample series.
func (s *SampleDurationSource) UsedDowntime(subject sla.Subject, periodStart, periodEnd, now time.Time) (time.Duration, error) {
	to := periodEnd
	if now.Before(to) {
		to = now
	}

	samples, err := s.samples.ListSamples(subject.ID, periodStart, to)
	if err != nil {
		return 0, fmt.Errorf("list samples for %s: %w", subject, err)
	}

	breakdown := sla.ClassifyDurations(samples, periodStart, to)
	return breakdown.Down, nil
}
