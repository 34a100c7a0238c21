package incident

import (
	"fmt"
	"sort"
	"time"

	"github.com/sentinelsla/sentinel/internal/interval"
	"github.com/sentinelsla/sentinel/internal/policy"
	"github.com/sentinelsla/sentinel/internal/sla"
	"github.com/sentinelsla/sentinel/internal/storage"
)

// SourceSamples marks incidents materialized from probe samples.
const SourceSamples = "samples"

// Config holds the debouncing policy for turning raw samples into incidents.
type Config struct {
	// HysteresisFailures is the number of consecutive down samples required
	// before an incident is declared. The incident start is recorded at the
	// sample that crosses this threshold, so reported downtime under-counts
	// by up to HysteresisFailures-1 sample intervals.
	HysteresisFailures int

	// MinIncidentDuration discards tentative incidents shorter than this;
	// they are treated as transient blips.
	MinIncidentDuration time.Duration

	// MergeGap coalesces incidents separated by a recovery shorter than
	// this into one.
	MergeGap time.Duration
}

// DefaultConfig returns the default debouncing policy.
func DefaultConfig() Config {
	return Config{
		HysteresisFailures:  3,
		MinIncidentDuration: 30 * time.Second,
		MergeGap:            60 * time.Second,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.HysteresisFailures < 1 {
		return fmt.Errorf("hysteresisFailures must be >= 1, got %d", c.HysteresisFailures)
	}
	if c.MinIncidentDuration < 0 {
		return fmt.Errorf("minIncidentDuration must be >= 0, got %v", c.MinIncidentDuration)
	}
	if c.MergeGap < 0 {
		return fmt.Errorf("mergeGap must be >= 0, got %v", c.MergeGap)
	}
	return nil
}

// Builder converts batches of raw probe samples into debounced, merged
// incident intervals.
type Builder struct {
	cfg   Config
	store storage.IncidentStore
}

// NewBuilder creates a builder that persists detected incidents through the
// given store.
func NewBuilder(cfg Config, store storage.IncidentStore) *Builder {
	return &Builder{cfg: cfg, store: store}
}

// WithPolicy returns a builder whose debouncing knobs are overridden by a
// policy's detection stanza. Zero values keep the base configuration, so a
// policy without a detection stanza yields the builder unchanged.
func (b *Builder) WithPolicy(det policy.Detection) (*Builder, error) {
	cfg := b.cfg

	if det.HysteresisFailures > 0 {
		cfg.HysteresisFailures = det.HysteresisFailures
	}
	if det.MinIncidentDuration != "" {
		d, err := policy.ParseDuration(det.MinIncidentDuration)
		if err != nil {
			return nil, fmt.Errorf("minIncidentDuration: %w", err)
		}
		cfg.MinIncidentDuration = d
	}
	if det.MergeGap != "" {
		d, err := policy.ParseDuration(det.MergeGap)
		if err != nil {
			return nil, fmt.Errorf("mergeGap: %w", err)
		}
		cfg.MergeGap = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, store: b.store}, nil
}

// Detect runs the hysteresis state machine over a sample batch and returns
// the finalized incident spans plus the number of samples skipped as
// malformed. Samples are sorted defensively; a batch still down at its end
// is closed at now, subject to the same minimum-duration filter.
func (b *Builder) Detect(samples []sla.Sample, now time.Time) ([]interval.Span, int) {
	valid := make([]sla.Sample, 0, len(samples))
	skipped := 0
	for _, s := range samples {
		if s.Time.IsZero() {
			skipped++
			continue
		}
		valid = append(valid, s)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Time.Before(valid[j].Time)
	})

	var (
		spans     []interval.Span
		failures  int
		down      bool
		downSince time.Time
	)

	finalize := func(end time.Time) {
		if end.Sub(downSince) >= b.cfg.MinIncidentDuration {
			spans = append(spans, interval.Span{Start: downSince, End: end})
		}
	}

	for _, s := range valid {
		if s.Up {
			if down {
				finalize(s.Time)
			}
			failures = 0
			down = false
			continue
		}

		failures++
		if !down && failures >= b.cfg.HysteresisFailures {
			down = true
			downSince = s.Time
		}
	}

	if down {
		finalize(now)
	}

	return b.mergeClose(spans), skipped
}

// mergeClose coalesces time-ordered spans separated by a gap of at most
// MergeGap.
func (b *Builder) mergeClose(spans []interval.Span) []interval.Span {
	if len(spans) == 0 {
		return nil
	}

	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.Start.Sub(last.End) <= b.cfg.MergeGap {
			if s.End.After(last.End) {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// Run detects incidents in a sample batch and persists them with
// source="samples". It returns the created incidents and the number of
// skipped samples.
func (b *Builder) Run(serviceID string, samples []sla.Sample, now time.Time) ([]sla.Incident, int, error) {
	spans, skipped := b.Detect(samples, now)

	created := make([]sla.Incident, 0, len(spans))
	for _, span := range spans {
		end := span.End
		inc, err := b.store.CreateIncident(sla.Incident{
			ServiceID: serviceID,
			StartedAt: span.Start,
			EndedAt:   &end,
			Source:    SourceSamples,
		})
		if err != nil {
			return created, skipped, fmt.Errorf("persist incident for %s: %w", serviceID, err)
		}
		created = append(created, inc)
	}

	return created, skipped, nil
}
