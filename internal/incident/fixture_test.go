package incident

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFixture(t *testing.T) {
	serviceID, samples, err := LoadFixture("../../fixtures/samples/outage.json")
	if err != nil {
		t.Fatalf("failed to load fixture: %v", err)
	}
	if serviceID != "checkout" {
		t.Errorf("serviceID = %s, want checkout", serviceID)
	}
	if len(samples) != 9 {
		t.Fatalf("expected 9 samples, got %d", len(samples))
	}

	zeros := 0
	for _, s := range samples {
		if s.Time.IsZero() {
			zeros++
		}
	}
	if zeros != 1 {
		t.Errorf("expected 1 unparseable sample kept as zero time, got %d", zeros)
	}
}

func TestLoadFixture_ReplayThroughBuilder(t *testing.T) {
	serviceID, samples, err := LoadFixture("../../fixtures/samples/outage.json")
	if err != nil {
		t.Fatalf("failed to load fixture: %v", err)
	}

	b := NewBuilder(DefaultConfig(), nil)
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	spans, skipped := b.Detect(samples, now)

	if serviceID != "checkout" {
		t.Errorf("serviceID = %s", serviceID)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if len(spans) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(spans))
	}

	wantStart := time.Date(2025, 6, 10, 10, 0, 40, 0, time.UTC)
	wantEnd := time.Date(2025, 6, 10, 10, 1, 30, 0, time.UTC)
	if !spans[0].Start.Equal(wantStart) || !spans[0].End.Equal(wantEnd) {
		t.Errorf("span = %v, want [%v, %v)", spans[0], wantStart, wantEnd)
	}
}

func TestLoadFixture_Errors(t *testing.T) {
	if _, _, err := LoadFixture("does-not-exist.json"); err == nil {
		t.Error("expected error for missing file")
	}

	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFixture(bad); err == nil {
		t.Error("expected error for malformed JSON")
	}

	noService := filepath.Join(dir, "no-service.json")
	if err := os.WriteFile(noService, []byte(`{"samples":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFixture(noService); err == nil {
		t.Error("expected error for missing serviceID")
	}
}
