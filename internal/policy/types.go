package policy

import (
	"errors"
	"time"

	"github.com/sentinelsla/sentinel/internal/sla"
)

// ErrNotFound is returned when no effective policy can be resolved for a
// subject. The calculator never guesses a target: callers decide whether to
// skip the subject or surface the error.
var ErrNotFound = errors.New("no effective SLA policy")

// PeriodMonth is the only supported compliance period.
const PeriodMonth = "MONTH"

// Policy is the parsed SLA policy definition.
type Policy struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       Spec     `yaml:"spec"`
}

// Metadata contains policy identity. Exactly one of Service or System must
// be set.
type Metadata struct {
	ID          string `yaml:"id"`
	Service     string `yaml:"service,omitempty"`
	System      string `yaml:"system,omitempty"`
	Owner       string `yaml:"owner,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Spec contains the policy target and activation bounds.
type Spec struct {
	TargetPct  float64   `yaml:"targetPct"`
	Period     string    `yaml:"period"`
	Timezone   string    `yaml:"timezone"`
	ActiveFrom string    `yaml:"activeFrom"`
	ActiveTo   string    `yaml:"activeTo,omitempty"`
	Default    bool      `yaml:"default,omitempty"`
	Detection  Detection `yaml:"detection,omitempty"`
}

// Detection overrides the incident builder debouncing knobs for subjects
// covered by this policy. Zero values fall back to the builder defaults.
type Detection struct {
	HysteresisFailures  int    `yaml:"hysteresisFailures,omitempty"`
	MinIncidentDuration string `yaml:"minIncidentDuration,omitempty"`
	MergeGap            string `yaml:"mergeGap,omitempty"`
}

// Subject returns the subject this policy applies to.
func (p *Policy) Subject() sla.Subject {
	if p.Metadata.System != "" {
		return sla.Subject{Kind: sla.SubjectSystem, ID: p.Metadata.System}
	}
	return sla.Subject{Kind: sla.SubjectService, ID: p.Metadata.Service}
}

// ActiveAt reports whether the policy is active at the given time. A policy
// with an unparseable ActiveFrom is never active.
func (p *Policy) ActiveAt(at time.Time) bool {
	from, err := time.Parse(time.RFC3339, p.Spec.ActiveFrom)
	if err != nil || at.Before(from) {
		return false
	}
	if p.Spec.ActiveTo == "" {
		return true
	}
	to, err := time.Parse(time.RFC3339, p.Spec.ActiveTo)
	return err == nil && at.Before(to)
}

// Closed reports whether the policy has a closing date set.
func (p *Policy) Closed() bool {
	return p.Spec.ActiveTo != ""
}

// PolicyWithFile pairs a policy with its source file path.
type PolicyWithFile struct {
	Policy *Policy
	File   string
}

// ValidationError represents a validation error for a specific file.
type ValidationError struct {
	File    string
	Path    string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.File + ": " + e.Path + ": " + e.Message
	}
	return e.File + ": " + e.Message
}
