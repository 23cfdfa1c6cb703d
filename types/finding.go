// Package types holds the shared data model for the dependency audit pipeline.
package types

import (
	"fmt"
	"strings"
)

// Decision classifies a dependency occurrence against the policy.
type Decision string

const (
	DecisionForbidden   Decision = "forbidden"
	DecisionConditional Decision = "conditional"
)

// TransitionStatus is the temporal state of a tracked exception. It is
// recomputed from wall-clock time on every run and never persisted.
type TransitionStatus string

const (
	TransitionNone     TransitionStatus = "none"
	TransitionActive   TransitionStatus = "active"
	TransitionExpired  TransitionStatus = "expired"
	TransitionResolved TransitionStatus = "resolved"
)

// ChainDelimiter joins ancestor chains for sort keys and display.
const ChainDelimiter = ">"

// MissingParent is the placeholder inserted when the tree listing skips an
// ancestor depth level.
const MissingParent = "<missing-parent>"

// UnknownVersion is the sentinel used when a version token does not carry
// the expected "v" marker.
const UnknownVersion = "v?"

// DependencyOccurrence is one node of a profile's resolved dependency tree.
// Chain runs from the workspace root to the crate itself, inclusive.
type DependencyOccurrence struct {
	ProfileID string   `json:"profile_id"`
	Crate     string   `json:"crate"`
	Version   string   `json:"version"`
	Chain     []string `json:"transitive_chain"`
}

// Finding is a policy-relevant dependency occurrence. Occurrences outside
// policy scope never become findings.
type Finding struct {
	ProfileID        string           `json:"profile_id"`
	Target           string           `json:"target"`
	Crate            string           `json:"crate"`
	Version          string           `json:"version"`
	Chain            []string         `json:"transitive_chain"`
	Decision         Decision         `json:"decision"`
	Reason           string           `json:"decision_reason"`
	Remediation      string           `json:"remediation"`
	RiskScore        int              `json:"risk_score"`
	TransitionStatus TransitionStatus `json:"transition_status"`
	TransitionIssue  string           `json:"transition_issue,omitempty"`
}

// Key identifies a finding for deduplication. Two findings with the same key
// describe the same policy hit and collapse into one report row.
func (f Finding) Key() string {
	return strings.Join([]string{
		f.ProfileID,
		string(f.Decision),
		f.Crate,
		f.Version,
		strings.Join(f.Chain, ChainDelimiter),
	}, "\x00")
}

// Less orders findings by (profile, decision, crate, version, chain) so the
// report is byte-identical across runs on identical input.
func (f Finding) Less(other Finding) bool {
	if f.ProfileID != other.ProfileID {
		return f.ProfileID < other.ProfileID
	}
	if f.Decision != other.Decision {
		return f.Decision < other.Decision
	}
	if f.Crate != other.Crate {
		return f.Crate < other.Crate
	}
	if f.Version != other.Version {
		return f.Version < other.Version
	}
	return strings.Join(f.Chain, ChainDelimiter) < strings.Join(other.Chain, ChainDelimiter)
}

// Describe renders the one-line human form used in gate failure output.
func (f Finding) Describe() string {
	return fmt.Sprintf("[%s] %s %s %s via %s (risk=%d transition=%s)",
		f.ProfileID, f.Decision, f.Crate, f.Version,
		strings.Join(f.Chain, ChainDelimiter), f.RiskScore, f.TransitionStatus)
}

// GateSummary aggregates findings into the gate verdict.
type GateSummary struct {
	Passed                  bool `json:"passed"`
	ForbiddenCount          int  `json:"forbidden_count"`
	UnresolvedHighRiskCount int  `json:"unresolved_high_risk_count"`
	ExpiredTransitionCount  int  `json:"expired_transition_count"`
	HighRiskThreshold       int  `json:"high_risk_threshold"`
}

// ProfileStats records per-profile scan statistics for the report.
type ProfileStats struct {
	ProfileID        string `json:"profile_id"`
	Target           string `json:"target"`
	Command          string `json:"command"`
	LineCount        int    `json:"line_count"`
	FindingCount     int    `json:"finding_count"`
	ForbiddenCount   int    `json:"forbidden_count"`
	ConditionalCount int    `json:"conditional_count"`
}
