package incident

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sentinelsla/sentinel/internal/sla"
)

// SampleFixture is the JSON fixture format for offline sample replay.
type SampleFixture struct {
	ServiceID string          `json:"serviceID"`
	Samples   []FixtureSample `json:"samples"`
}

// FixtureSample is one observation in a fixture file. Time is an ISO-8601
// timestamp; unparseable values are kept as zero times so the builder skips
// and counts them the same way it does for live batches.
type FixtureSample struct {
	Time string `json:"time"`
	Up   bool   `json:"up"`
}

// LoadFixture reads a sample fixture file and converts it into a sample
// batch for the builder.
func LoadFixture(path string) (string, []sla.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read fixture: %w", err)
	}

	var fixture SampleFixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return "", nil, fmt.Errorf("parse fixture: %w", err)
	}
	if fixture.ServiceID == "" {
		return "", nil, fmt.Errorf("fixture %s: serviceID is required", path)
	}

	samples := make([]sla.Sample, 0, len(fixture.Samples))
	for _, fs := range fixture.Samples {
		ts, err := time.Parse(time.RFC3339, fs.Time)
		if err != nil {
			// Zero time: the builder counts it as skipped.
			samples = append(samples, sla.Sample{Up: fs.Up})
			continue
		}
		samples = append(samples, sla.Sample{Time: ts, Up: fs.Up})
	}

	return fixture.ServiceID, samples, nil
}
