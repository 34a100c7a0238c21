package incident

import (
	"testing"
	"time"

	"github.com/sentinelsla/sentinel/internal/interval"
	"github.com/sentinelsla/sentinel/internal/policy"
	"github.com/sentinelsla/sentinel/internal/sla"
)

func at(sec int) time.Time {
	return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second)
}

func up(sec int) sla.Sample   { return sla.Sample{Time: at(sec), Up: true} }
func down(sec int) sla.Sample { return sla.Sample{Time: at(sec), Up: false} }

func TestDetect(t *testing.T) {
	now := at(3600)

	tests := []struct {
		name    string
		cfg     Config
		samples []sla.Sample
		want    []interval.Span
	}{
		{
			name: "four down samples then recovery",
			cfg:  DefaultConfig(),
			samples: []sla.Sample{
				down(10), down(20), down(30), down(40), up(90),
			},
			// Incident starts at the third down sample, where the
			// hysteresis threshold is crossed.
			want: []interval.Span{{Start: at(30), End: at(90)}},
		},
		{
			name: "two down samples stay below threshold",
			cfg:  DefaultConfig(),
			samples: []sla.Sample{
				up(0), down(10), down(20), up(30), up(40),
			},
			want: nil,
		},
		{
			name: "short blip discarded by minimum duration",
			cfg:  DefaultConfig(),
			samples: []sla.Sample{
				down(10), down(20), down(30), up(50),
			},
			// 20s from threshold crossing to recovery, under the 30s floor.
			want: nil,
		},
		{
			name: "recovery resets the failure counter",
			cfg:  DefaultConfig(),
			samples: []sla.Sample{
				down(0), down(10), up(20), down(30), down(40), up(50),
			},
			want: nil,
		},
		{
			name: "incidents within merge gap coalesce",
			cfg:  DefaultConfig(),
			samples: []sla.Sample{
				down(0), down(10), down(20), up(60),
				down(100), down(110), down(120), up(160),
			},
			// Two 40s incidents, 40s apart, under the 60s merge gap.
			want: []interval.Span{{Start: at(20), End: at(160)}},
		},
		{
			name: "incidents past merge gap stay separate",
			cfg:  DefaultConfig(),
			samples: []sla.Sample{
				down(0), down(10), down(20), up(60),
				down(200), down(210), down(220), up(260),
			},
			want: []interval.Span{
				{Start: at(20), End: at(60)},
				{Start: at(220), End: at(260)},
			},
		},
		{
			name: "batch still down closes at now",
			cfg:  DefaultConfig(),
			samples: []sla.Sample{
				down(3500), down(3510), down(3520),
			},
			want: []interval.Span{{Start: at(3520), End: now}},
		},
		{
			name: "unsorted input",
			cfg:  DefaultConfig(),
			samples: []sla.Sample{
				up(90), down(30), down(10), down(40), down(20),
			},
			want: []interval.Span{{Start: at(30), End: at(90)}},
		},
		{
			name: "hysteresis of one declares on first failure",
			cfg:  Config{HysteresisFailures: 1, MinIncidentDuration: 0, MergeGap: 0},
			samples: []sla.Sample{
				up(0), down(10), up(20),
			},
			want: []interval.Span{{Start: at(10), End: at(20)}},
		},
		{
			name:    "empty batch",
			cfg:     DefaultConfig(),
			samples: nil,
			want:    nil,
		},
		{
			name: "all up",
			cfg:  DefaultConfig(),
			samples: []sla.Sample{
				up(0), up(10), up(20),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(tt.cfg, nil)
			got, skipped := b.Detect(tt.samples, now)
			if skipped != 0 {
				t.Errorf("skipped = %d, want 0", skipped)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Detect() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if !got[i].Start.Equal(tt.want[i].Start) || !got[i].End.Equal(tt.want[i].End) {
					t.Errorf("span %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDetect_SkipsMalformedSamples(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	samples := []sla.Sample{
		{Time: time.Time{}, Up: false},
		down(10), down(20), down(30),
		{Time: time.Time{}, Up: true},
		up(90),
	}
	spans, skipped := b.Detect(samples, at(3600))
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if !spans[0].Start.Equal(at(30)) || !spans[0].End.Equal(at(90)) {
		t.Errorf("span = %v, want [%v, %v)", spans[0], at(30), at(90))
	}
}

func TestWithPolicy(t *testing.T) {
	base := NewBuilder(DefaultConfig(), nil)

	t.Run("empty stanza keeps defaults", func(t *testing.T) {
		b, err := base.WithPolicy(policy.Detection{})
		if err != nil {
			t.Fatalf("WithPolicy() error = %v", err)
		}
		if b.cfg != DefaultConfig() {
			t.Errorf("cfg = %+v, want defaults", b.cfg)
		}
	})

	t.Run("overrides apply", func(t *testing.T) {
		b, err := base.WithPolicy(policy.Detection{
			HysteresisFailures:  5,
			MinIncidentDuration: "60s",
			MergeGap:            "2m",
		})
		if err != nil {
			t.Fatalf("WithPolicy() error = %v", err)
		}
		want := Config{
			HysteresisFailures:  5,
			MinIncidentDuration: 60 * time.Second,
			MergeGap:            2 * time.Minute,
		}
		if b.cfg != want {
			t.Errorf("cfg = %+v, want %+v", b.cfg, want)
		}
	})

	t.Run("bad duration is rejected", func(t *testing.T) {
		if _, err := base.WithPolicy(policy.Detection{MergeGap: "soon"}); err == nil {
			t.Error("expected error for invalid mergeGap")
		}
	})

	t.Run("raised hysteresis changes detection", func(t *testing.T) {
		b, err := base.WithPolicy(policy.Detection{HysteresisFailures: 5})
		if err != nil {
			t.Fatalf("WithPolicy() error = %v", err)
		}

		// Four consecutive failures open an incident at the default
		// threshold but not at five.
		samples := []sla.Sample{down(10), down(20), down(30), down(40), up(90)}
		if spans, _ := base.Detect(samples, at(3600)); len(spans) != 1 {
			t.Fatalf("default builder detected %d incidents, want 1", len(spans))
		}
		if spans, _ := b.Detect(samples, at(3600)); len(spans) != 0 {
			t.Errorf("overridden builder detected %d incidents, want 0", len(spans))
		}
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero hysteresis", Config{HysteresisFailures: 0}, true},
		{"negative min duration", Config{HysteresisFailures: 1, MinIncidentDuration: -time.Second}, true},
		{"negative merge gap", Config{HysteresisFailures: 1, MergeGap: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type fakeIncidentStore struct {
	incidents []sla.Incident
}

func (f *fakeIncidentStore) CreateIncident(inc sla.Incident) (sla.Incident, error) {
	inc.ID = "inc-" + string(rune('a'+len(f.incidents)))
	f.incidents = append(f.incidents, inc)
	return inc, nil
}

func (f *fakeIncidentStore) CloseIncident(id string, endedAt time.Time) error {
	return nil
}

func (f *fakeIncidentStore) ListIncidents(serviceID string, from, to time.Time) ([]sla.Incident, error) {
	return f.incidents, nil
}

func TestRun_PersistsDetectedIncidents(t *testing.T) {
	store := &fakeIncidentStore{}
	b := NewBuilder(DefaultConfig(), store)

	samples := []sla.Sample{
		down(10), down(20), down(30), down(40), up(90),
	}
	created, skipped, err := b.Run("checkout", samples, at(3600))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(created))
	}
	inc := created[0]
	if inc.ServiceID != "checkout" {
		t.Errorf("serviceID = %q", inc.ServiceID)
	}
	if inc.Source != SourceSamples {
		t.Errorf("source = %q, want %q", inc.Source, SourceSamples)
	}
	if !inc.StartedAt.Equal(at(30)) {
		t.Errorf("startedAt = %v, want %v", inc.StartedAt, at(30))
	}
	if inc.EndedAt == nil || !inc.EndedAt.Equal(at(90)) {
		t.Errorf("endedAt = %v, want %v", inc.EndedAt, at(90))
	}
}
