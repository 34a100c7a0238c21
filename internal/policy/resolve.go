package policy

import (
	"sort"
	"sync"
	"time"

	"github.com/sentinelsla/sentinel/internal/sla"
)

// Resolver picks the effective policy for a subject at evaluation time. The
// loaded policy set can be swapped atomically, which is how hot reload works.
type Resolver struct {
	mu       sync.RWMutex
	policies []PolicyWithFile
	builtin  *Policy
}

// NewResolver creates a resolver over the given policy set. builtin, when
// non-nil, is the hard-coded last-resort default; pass nil to make
// resolution fail with ErrNotFound instead of guessing.
func NewResolver(policies []PolicyWithFile, builtin *Policy) *Resolver {
	return &Resolver{policies: policies, builtin: builtin}
}

// SetPolicies replaces the loaded policy set.
func (r *Resolver) SetPolicies(policies []PolicyWithFile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies = policies
}

// Policies returns a copy of the loaded policy set.
func (r *Resolver) Policies() []PolicyWithFile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PolicyWithFile, len(r.policies))
	copy(out, r.policies)
	return out
}

// Get returns the loaded policy with the given id, or nil.
func (r *Resolver) Get(id string) *Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, pwf := range r.policies {
		if pwf.Policy.Metadata.ID == id {
			return pwf.Policy
		}
	}
	return nil
}

// Resolve returns the effective policy for a subject at the given time:
// the most recent (by activeFrom) policy for that subject that is active and
// has no closing date, falling back to a policy marked default, falling back
// to the built-in default. Returns ErrNotFound when nothing resolves.
func (r *Resolver) Resolve(subject sla.Subject, at time.Time) (*Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []*Policy
	var defaults []*Policy
	for _, pwf := range r.policies {
		pol := pwf.Policy
		if !pol.ActiveAt(at) || pol.Closed() {
			continue
		}
		if pol.Subject() == subject {
			candidates = append(candidates, pol)
		}
		if pol.Spec.Default {
			defaults = append(defaults, pol)
		}
	}

	if pol := newest(candidates); pol != nil {
		return pol, nil
	}
	if pol := newest(defaults); pol != nil {
		return pol, nil
	}
	if r.builtin != nil {
		return r.builtin, nil
	}

	return nil, ErrNotFound
}

func newest(policies []*Policy) *Policy {
	if len(policies) == 0 {
		return nil
	}
	sort.Slice(policies, func(i, j int) bool {
		ti, _ := time.Parse(time.RFC3339, policies[i].Spec.ActiveFrom)
		tj, _ := time.Parse(time.RFC3339, policies[j].Spec.ActiveFrom)
		return ti.After(tj)
	})
	return policies[0]
}

// BuiltinDefault returns the hard-coded fallback policy used when the
// -default-target flag is set.
func BuiltinDefault(targetPct float64) *Policy {
	return &Policy{
		APIVersion: "sentinel/v1",
		Kind:       "SlaPolicy",
		Metadata: Metadata{
			ID: "builtin-default",
		},
		Spec: Spec{
			TargetPct:  targetPct,
			Period:     PeriodMonth,
			Timezone:   "UTC",
			ActiveFrom: "1970-01-01T00:00:00Z",
		},
	}
}
