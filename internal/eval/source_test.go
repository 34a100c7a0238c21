package eval

import (
	"testing"
	"time"

	"github.com/sentinelsla/sentinel/internal/sla"
)

type fakeIncidents struct {
	incidents []sla.Incident
}

func (f *fakeIncidents) CreateIncident(inc sla.Incident) (sla.Incident, error) {
	f.incidents = append(f.incidents, inc)
	return inc, nil
}

func (f *fakeIncidents) CloseIncident(id string, endedAt time.Time) error { return nil }

func (f *fakeIncidents) ListIncidents(serviceID string, from, to time.Time) ([]sla.Incident, error) {
	return f.incidents, nil
}

type fakeMaintenance struct {
	windows []sla.MaintenanceWindow
}

func (f *fakeMaintenance) CreateMaintenance(mw sla.MaintenanceWindow) (sla.MaintenanceWindow, error) {
	f.windows = append(f.windows, mw)
	return mw, nil
}

func (f *fakeMaintenance) ListMaintenance(subject sla.Subject, from, to time.Time) ([]sla.MaintenanceWindow, error) {
	return f.windows, nil
}

func hm(hour, min int) time.Time {
	return time.Date(2025, 7, 10, hour, min, 0, 0, time.UTC)
}

func closedIncident(start, end time.Time) sla.Incident {
	return sla.Incident{ServiceID: "checkout", StartedAt: start, EndedAt: &end}
}

func TestIncidentSource_UsedDowntime(t *testing.T) {
	now := hm(12, 0)

	tests := []struct {
		name        string
		incidents   []sla.Incident
		maintenance []sla.MaintenanceWindow
		periodStart time.Time
		periodEnd   time.Time
		want        time.Duration
	}{
		{
			name:        "no incidents",
			periodStart: julyStart,
			periodEnd:   julyEnd,
			want:        0,
		},
		{
			name: "closed incident counts in full",
			incidents: []sla.Incident{
				closedIncident(hm(10, 0), hm(11, 0)),
			},
			periodStart: julyStart,
			periodEnd:   julyEnd,
			want:        time.Hour,
		},
		{
			name: "maintenance overlap is subtracted",
			incidents: []sla.Incident{
				closedIncident(hm(10, 0), hm(11, 0)),
			},
			maintenance: []sla.MaintenanceWindow{
				{Subject: checkout, StartsAt: hm(10, 15), EndsAt: hm(10, 45)},
			},
			periodStart: julyStart,
			periodEnd:   julyEnd,
			want:        30 * time.Minute,
		},
		{
			name: "planned incident is skipped",
			incidents: []sla.Incident{
				{ServiceID: "checkout", StartedAt: hm(10, 0), EndedAt: timePtr(hm(11, 0)), IsPlanned: true},
			},
			periodStart: julyStart,
			periodEnd:   julyEnd,
			want:        0,
		},
		{
			name: "open incident runs through now",
			incidents: []sla.Incident{
				{ServiceID: "checkout", StartedAt: hm(11, 0)},
			},
			periodStart: julyStart,
			periodEnd:   julyEnd,
			want:        time.Hour,
		},
		{
			name: "incident is clamped to the period",
			incidents: []sla.Incident{
				closedIncident(julyStart.Add(-time.Hour), julyStart.Add(time.Hour)),
			},
			periodStart: julyStart,
			periodEnd:   julyEnd,
			want:        time.Hour,
		},
		{
			name: "incident entirely outside the period",
			incidents: []sla.Incident{
				closedIncident(julyStart.Add(-2*time.Hour), julyStart.Add(-time.Hour)),
			},
			periodStart: julyStart,
			periodEnd:   julyEnd,
			want:        0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewIncidentSource(
				&fakeIncidents{incidents: tt.incidents},
				&fakeMaintenance{windows: tt.maintenance},
			)
			got, err := src.UsedDowntime(checkout, tt.periodStart, tt.periodEnd, now)
			if err != nil {
				t.Fatalf("UsedDowntime() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("UsedDowntime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIncidentSource_UsedDowntime_AdditiveAcrossSplit(t *testing.T) {
	// Splitting a period at a boundary no incident crosses must not change
	// the total: used(whole) == used(first half) + used(second half).
	now := hm(23, 0)
	mid := hm(12, 0)

	src := NewIncidentSource(
		&fakeIncidents{incidents: []sla.Incident{
			closedIncident(hm(9, 0), hm(9, 30)),
			closedIncident(hm(14, 0), hm(14, 20)),
		}},
		&fakeMaintenance{windows: []sla.MaintenanceWindow{
			{Subject: checkout, StartsAt: hm(9, 10), EndsAt: hm(9, 20)},
		}},
	)

	whole, err := src.UsedDowntime(checkout, julyStart, julyEnd, now)
	if err != nil {
		t.Fatalf("UsedDowntime(whole) error = %v", err)
	}
	first, err := src.UsedDowntime(checkout, julyStart, mid, now)
	if err != nil {
		t.Fatalf("UsedDowntime(first) error = %v", err)
	}
	second, err := src.UsedDowntime(checkout, mid, julyEnd, now)
	if err != nil {
		t.Fatalf("UsedDowntime(second) error = %v", err)
	}

	if whole != 40*time.Minute {
		t.Errorf("UsedDowntime(whole) = %v, want 40m", whole)
	}
	if first != 20*time.Minute {
		t.Errorf("UsedDowntime(first) = %v, want 20m", first)
	}
	if first+second != whole {
		t.Errorf("split sum = %v, whole = %v; want equal", first+second, whole)
	}
}

type fakeSamples struct {
	samples []sla.Sample
	gotFrom time.Time
	gotTo   time.Time
}

func (f *fakeSamples) ListSamples(serviceID string, from, to time.Time) ([]sla.Sample, error) {
	f.gotFrom, f.gotTo = from, to
	return f.samples, nil
}

func TestSampleDurationSource_UsedDowntime(t *testing.T) {
	provider := &fakeSamples{samples: []sla.Sample{
		{Time: hm(10, 0), Up: true},
		{Time: hm(10, 1), Up: false},
		{Time: hm(10, 2), Up: false},
		{Time: hm(10, 3), Up: true},
	}}
	src := NewSampleDurationSource(provider)

	got, err := src.UsedDowntime(checkout, hm(10, 0), hm(10, 4), hm(12, 0))
	if err != nil {
		t.Fatalf("UsedDowntime() error = %v", err)
	}
	if got != 2*time.Minute {
		t.Errorf("UsedDowntime() = %v, want 2m", got)
	}
}

func TestSampleDurationSource_ClampsToNow(t *testing.T) {
	provider := &fakeSamples{}
	src := NewSampleDurationSource(provider)

	now := hm(11, 0)
	if _, err := src.UsedDowntime(checkout, hm(10, 0), hm(14, 0), now); err != nil {
		t.Fatalf("UsedDowntime() error = %v", err)
	}
	if !provider.gotTo.Equal(now) {
		t.Errorf("queried through %v, want clamped to now %v", provider.gotTo, now)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
