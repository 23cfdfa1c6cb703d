// Package policy loads the dependency policy document and classifies
// dependency occurrences against it.
package policy

import "time"

// SchemaVersion is the only policy document schema this build accepts.
const SchemaVersion = "crate-dependency-policy-v1"

// Entry is one forbidden or conditional crate.
type Entry struct {
	Name        string `json:"name"`
	Reason      string `json:"reason"`
	Remediation string `json:"remediation"`
	RiskScore   int    `json:"risk_score"`
}

// Transition is a time-boxed exception tracking planned removal or
// replacement of a policy-managed crate.
type Transition struct {
	Crate            string `json:"crate"`
	Status           string `json:"status"`
	Owner            string `json:"owner"`
	ReplacementIssue string `json:"replacement_issue"`
	ExpiresAt        string `json:"expires_at"`
	Notes            string `json:"notes"`

	expiresAt time.Time
}

// Transition status values.
const (
	StatusActive   = "active"
	StatusResolved = "resolved"
)

// Expiry returns the parsed expires_at timestamp in UTC.
func (t Transition) Expiry() time.Time {
	return t.expiresAt
}

// Profile is one build configuration to scan.
type Profile struct {
	ID                string   `json:"id"`
	Target            string   `json:"target"`
	Features          []string `json:"features,omitempty"`
	AllFeatures       bool     `json:"all_features,omitempty"`
	NoDefaultFeatures bool     `json:"no_default_features,omitempty"`
}

// Output configures where the audit report and finding log are written.
type Output struct {
	SummaryPath string `json:"summary_path"`
	LogPath     string `json:"log_path"`
}

// Store is the validated, immutable view of a policy document. All maps are
// built once by Load and never mutated afterwards.
type Store struct {
	SchemaVersion string
	Profiles      []Profile
	Forbidden     map[string]Entry
	Conditional   map[string]Entry
	Transitions   map[string]Transition
	HighThreshold int
	Output        Output
}

// document mirrors the raw JSON shape before validation.
type document struct {
	SchemaVersion     string       `json:"schema_version"`
	Profiles          []Profile    `json:"profiles"`
	ForbiddenCrates   []Entry      `json:"forbidden_crates"`
	ConditionalCrates []Entry      `json:"conditional_crates"`
	Transitions       []Transition `json:"transitions"`
	RiskThresholds    *thresholds  `json:"risk_thresholds"`
	Output            *Output      `json:"output"`
}

type thresholds struct {
	High *int `json:"high"`
}

// TransitionFor returns the tracked exception for a crate, if any.
func (s *Store) TransitionFor(crate string) (Transition, bool) {
	t, ok := s.Transitions[crate]
	return t, ok
}

// Scope reports whether a crate is policy-managed at all.
func (s *Store) Scope(crate string) bool {
	_, forbidden := s.Forbidden[crate]
	_, conditional := s.Conditional[crate]
	return forbidden || conditional
}
