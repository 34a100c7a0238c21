package eval

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/sentinelsla/sentinel/internal/policy"
	"github.com/sentinelsla/sentinel/internal/sla"
	"github.com/sentinelsla/sentinel/internal/storage"
)

// atRiskBudgetFraction is the remaining-budget threshold below which a
// window is flagged AT_RISK even without a breaching projection.
const atRiskBudgetFraction = 0.25

// Calculator computes and persists the error-budget window for one
// (subject, period) pair. Recomputation with unchanged inputs and a fixed
// now is deterministic and upserts the same logical row.
type Calculator struct {
	source     DowntimeSource
	windows    storage.WindowStore
	violations *Recorder
	now        func() time.Time
}

// NewCalculator creates a calculator. violations may be nil, in which case
// breaches are computed but never recorded.
func NewCalculator(source DowntimeSource, windows storage.WindowStore, violations *Recorder) *Calculator {
	return &Calculator{
		source:     source,
		windows:    windows,
		violations: violations,
		now:        time.Now,
	}
}

// SetNowFunc overrides the clock, used by tests to fix the open-incident
// clamp and the burn-rate projection.
func (c *Calculator) SetNowFunc(now func() time.Time) {
	c.now = now
}

// Compute fetches downtime for the subject over [periodStart, periodEnd),
// derives the error budget from the policy target, classifies the status,
// and upserts the window row. On breach it records a violation best-effort:
// a recording failure is logged, not returned.
func (c *Calculator) Compute(subject sla.Subject, pol *policy.Policy, periodStart, periodEnd time.Time) (*sla.Window, error) {
	if !periodEnd.After(periodStart) {
		return nil, fmt.Errorf("%w: period [%s, %s)", sla.ErrInvalidRange,
			periodStart.Format(time.RFC3339), periodEnd.Format(time.RFC3339))
	}
	if pol == nil {
		return nil, fmt.Errorf("compute window for %s: %w", subject, policy.ErrNotFound)
	}

	now := c.now()

	used, err := c.source.UsedDowntime(subject, periodStart, periodEnd, now)
	if err != nil {
		return nil, err
	}

	totalMs := periodEnd.Sub(periodStart).Milliseconds()
	usedMs := used.Milliseconds()

	allowedMs := int64(math.Round(float64(totalMs) * (1 - pol.Spec.TargetPct/100)))
	if allowedMs < 0 {
		allowedMs = 0
	}

	availabilityPct := round4(float64(totalMs-usedMs) / float64(totalMs) * 100)
	status := classify(usedMs, allowedMs, totalMs, periodStart, periodEnd, now)

	stored, err := c.windows.UpsertWindow(sla.Window{
		Subject:              subject,
		PeriodStart:          periodStart,
		PeriodEnd:            periodEnd,
		AvailabilityPct:      availabilityPct,
		ErrorBudgetAllowedMs: allowedMs,
		ErrorBudgetUsedMs:    usedMs,
		Status:               status,
		ComputedAt:           now,
		NeedsRecompute:       false,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert window for %s: %w", subject, err)
	}

	if status == sla.StatusBreached && c.violations != nil {
		reason := fmt.Sprintf("error budget exhausted: used %dms of %dms allowed", usedMs, allowedMs)
		if _, err := c.violations.Record(pol.Metadata.ID, stored.ID, pol.Spec.TargetPct, availabilityPct, reason); err != nil {
			log.Printf("Warning: failed to record violation for window %s: %v", stored.ID, err)
		}
	}

	return &stored, nil
}

// classify applies the status rules in order: budget exhausted wins, then a
// linear burn-rate projection or low remaining budget flags AT_RISK.
func classify(usedMs, allowedMs, totalMs int64, periodStart, periodEnd, now time.Time) sla.Status {
	if usedMs >= allowedMs && allowedMs > 0 {
		return sla.StatusBreached
	}

	ref := now
	if periodEnd.Before(ref) {
		ref = periodEnd
	}
	elapsedMs := ref.Sub(periodStart).Milliseconds()
	if elapsedMs < 1 {
		elapsedMs = 1
	}

	projectedMs := float64(usedMs) + float64(usedMs)/float64(elapsedMs)*float64(totalMs-elapsedMs)

	if projectedMs >= float64(allowedMs) && allowedMs > 0 {
		return sla.StatusAtRisk
	}
	if float64(allowedMs-usedMs) < float64(allowedMs)*atRiskBudgetFraction {
		return sla.StatusAtRisk
	}

	return sla.StatusOK
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
