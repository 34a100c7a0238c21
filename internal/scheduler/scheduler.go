package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sentinelsla/sentinel/internal/eval"
	"github.com/sentinelsla/sentinel/internal/policy"
	"github.com/sentinelsla/sentinel/internal/sla"
)

// Scheduler periodically recomputes the current window for every subject
// with an effective policy. Fan-out across subjects runs with bounded
// parallelism; recomputation of a single subject is sequential.
type Scheduler struct {
	calc          *eval.Calculator
	resolver      *policy.Resolver
	interval      time.Duration
	maxConcurrent int64
	cache         *StateCache
	now           func() time.Time

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler that recomputes every interval with at
// most maxConcurrent recomputes in flight.
func NewScheduler(calc *eval.Calculator, resolver *policy.Resolver, interval time.Duration, maxConcurrent int64) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		calc:          calc,
		resolver:      resolver,
		interval:      interval,
		maxConcurrent: maxConcurrent,
		cache:         NewStateCache(),
		now:           time.Now,
	}
}

// Start begins the recompute loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.run(ctx)

	log.Printf("Started scheduler (interval=%s, maxConcurrent=%d)", s.interval, s.maxConcurrent)
	return nil
}

// Stop stops the scheduler and waits for in-flight recomputes to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	log.Println("Stopping scheduler...")
	s.wg.Wait()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	s.RecomputeAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RecomputeAll(ctx)
		}
	}
}

// RecomputeAll recomputes the current window for every subject that has an
// effective policy, bounded by the concurrency limit.
func (s *Scheduler) RecomputeAll(ctx context.Context) {
	now := s.now()
	subjects := s.activeSubjects(now)
	if len(subjects) == 0 {
		return
	}

	sem := semaphore.NewWeighted(s.maxConcurrent)
	var wg sync.WaitGroup

	for _, subject := range subjects {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(subject sla.Subject) {
			defer wg.Done()
			defer sem.Release(1)

			if _, err := s.recomputeSubject(subject, now, nil, nil); err != nil {
				log.Printf("Error recomputing window for %s: %v", subject, err)
			}
		}(subject)
	}

	wg.Wait()
}

// RecomputeNow forces an immediate recompute for a subject. When
// periodStart/periodEnd are nil, the current period in the policy's
// timezone is used.
func (s *Scheduler) RecomputeNow(subject sla.Subject, periodStart, periodEnd *time.Time) (*sla.Window, error) {
	return s.recomputeSubject(subject, s.now(), periodStart, periodEnd)
}

func (s *Scheduler) recomputeSubject(subject sla.Subject, now time.Time, periodStart, periodEnd *time.Time) (*sla.Window, error) {
	pol, err := s.resolver.Resolve(subject, now)
	if err != nil {
		return nil, err
	}

	var start, end time.Time
	if periodStart != nil && periodEnd != nil {
		start, end = *periodStart, *periodEnd
	} else {
		offset, ok := sla.ZoneOffset(pol.Spec.Timezone)
		if !ok {
			return nil, fmt.Errorf("policy %s: unknown timezone %q", pol.Metadata.ID, pol.Spec.Timezone)
		}
		start, end = sla.MonthBounds(now, offset)
	}

	w, err := s.calc.Compute(subject, pol, start, end)
	if err != nil {
		return nil, err
	}

	s.cache.Set(subject, &WindowState{
		Window:    w,
		PolicyID:  pol.Metadata.ID,
		UpdatedAt: now,
	})

	log.Printf("Computed window for %s: status=%s, availability=%.4f%%",
		subject, w.Status, w.AvailabilityPct)

	return w, nil
}

// activeSubjects returns the distinct subjects of all policies active now
// and not closed.
func (s *Scheduler) activeSubjects(now time.Time) []sla.Subject {
	seen := make(map[string]struct{})
	var subjects []sla.Subject

	for _, pwf := range s.resolver.Policies() {
		pol := pwf.Policy
		if !pol.ActiveAt(now) || pol.Closed() {
			continue
		}
		subject := pol.Subject()
		if subject.ID == "" {
			continue
		}
		if _, ok := seen[subject.Key()]; ok {
			continue
		}
		seen[subject.Key()] = struct{}{}
		subjects = append(subjects, subject)
	}

	return subjects
}

// GetCache returns the latest-window cache.
func (s *Scheduler) GetCache() *StateCache {
	return s.cache
}

// GetResolver returns the policy resolver.
func (s *Scheduler) GetResolver() *policy.Resolver {
	return s.resolver
}

// SetNowFunc overrides the clock for tests.
func (s *Scheduler) SetNowFunc(now func() time.Time) {
	s.now = now
}
