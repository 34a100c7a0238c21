package eval

import (
	"fmt"

	"github.com/sentinelsla/sentinel/internal/sla"
	"github.com/sentinelsla/sentinel/internal/storage"
)

// Recorder creates violations idempotently per (policyID, windowID).
type Recorder struct {
	store storage.ViolationStore
}

// NewRecorder creates a violation recorder backed by the given store.
func NewRecorder(store storage.ViolationStore) *Recorder {
	return &Recorder{store: store}
}

// Record returns the existing violation for the pair if one is already
// stored, otherwise inserts a new one. Repeated recomputation of the same
// breached window therefore never double-reports.
func (r *Recorder) Record(policyID, windowID string, expectedPct, observedPct float64, reason string) (*sla.Violation, error) {
	existing, err := r.store.FindViolation(policyID, windowID)
	if err != nil {
		return nil, fmt.Errorf("find violation (%s, %s): %w", policyID, windowID, err)
	}
	if existing != nil {
		return existing, nil
	}

	created, err := r.store.CreateViolation(sla.Violation{
		PolicyID:    policyID,
		WindowID:    windowID,
		ExpectedPct: expectedPct,
		ObservedPct: observedPct,
		Reason:      reason,
	})
	if err != nil {
		return nil, fmt.Errorf("create violation (%s, %s): %w", policyID, windowID, err)
	}

	return &created, nil
}
