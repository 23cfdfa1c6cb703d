package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrConfig marks a malformed or self-contradictory policy document. It is
// raised before any scanning begins and maps to the configuration exit code,
// distinct from a gate failure.
var ErrConfig = errors.New("policy: configuration error")

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Load reads and validates a policy document from disk. Validation is
// fail-fast: the first violation aborts the load and no partial Store
// escapes.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, configErr("read policy file: %v", err)
	}
	return Parse(data)
}

// Parse validates a raw policy document and builds the immutable Store.
func Parse(data []byte) (*Store, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, configErr("invalid policy JSON: %v", err)
	}

	if doc.SchemaVersion != SchemaVersion {
		return nil, configErr("unsupported or missing schema_version %q", doc.SchemaVersion)
	}
	if doc.RiskThresholds == nil || doc.RiskThresholds.High == nil {
		return nil, configErr("risk_thresholds.high is required")
	}
	if doc.Output == nil || doc.Output.SummaryPath == "" || doc.Output.LogPath == "" {
		return nil, configErr("output.summary_path and output.log_path are required")
	}

	profiles, err := validateProfiles(doc.Profiles)
	if err != nil {
		return nil, err
	}

	forbidden, err := buildEntryMap(doc.ForbiddenCrates, "forbidden_crates")
	if err != nil {
		return nil, err
	}
	conditional, err := buildEntryMap(doc.ConditionalCrates, "conditional_crates")
	if err != nil {
		return nil, err
	}
	transitions, err := buildTransitionMap(doc.Transitions)
	if err != nil {
		return nil, err
	}

	if err := validateCrossRefs(forbidden, conditional, transitions); err != nil {
		return nil, err
	}

	return &Store{
		SchemaVersion: doc.SchemaVersion,
		Profiles:      profiles,
		Forbidden:     forbidden,
		Conditional:   conditional,
		Transitions:   transitions,
		HighThreshold: *doc.RiskThresholds.High,
		Output:        *doc.Output,
	}, nil
}

func validateProfiles(profiles []Profile) ([]Profile, error) {
	if len(profiles) == 0 {
		return nil, configErr("profiles must not be empty")
	}
	seen := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if p.ID == "" || p.Target == "" {
			return nil, configErr("profile id and target must be non-empty")
		}
		if seen[p.ID] {
			return nil, configErr("duplicate profile id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return profiles, nil
}

func buildEntryMap(entries []Entry, section string) (map[string]Entry, error) {
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, configErr("%s: entry name must be non-empty", section)
		}
		if strings.TrimSpace(e.Reason) == "" {
			return nil, configErr("%s.%s: reason must be non-empty", section, e.Name)
		}
		if strings.TrimSpace(e.Remediation) == "" {
			return nil, configErr("%s.%s: remediation must be non-empty", section, e.Name)
		}
		if e.RiskScore < 0 || e.RiskScore > 100 {
			return nil, configErr("%s.%s: risk_score %d outside [0,100]", section, e.Name, e.RiskScore)
		}
		if _, dup := out[e.Name]; dup {
			return nil, configErr("duplicate entry %q in %s", e.Name, section)
		}
		out[e.Name] = e
	}
	return out, nil
}

func buildTransitionMap(transitions []Transition) (map[string]Transition, error) {
	out := make(map[string]Transition, len(transitions))
	for _, t := range transitions {
		if t.Crate == "" {
			return nil, configErr("transition crate must be non-empty")
		}
		if t.Status != StatusActive && t.Status != StatusResolved {
			return nil, configErr("transition %s: status must be active|resolved, got %q", t.Crate, t.Status)
		}
		if strings.TrimSpace(t.Owner) == "" {
			return nil, configErr("transition %s: owner must be non-empty", t.Crate)
		}
		if strings.TrimSpace(t.ReplacementIssue) == "" {
			return nil, configErr("transition %s: replacement_issue must be non-empty", t.Crate)
		}
		expiry, err := parseTimestamp(t.ExpiresAt)
		if err != nil {
			return nil, configErr("transition %s: %v", t.Crate, err)
		}
		if _, dup := out[t.Crate]; dup {
			return nil, configErr("duplicate transition for crate %s", t.Crate)
		}
		t.expiresAt = expiry
		out[t.Crate] = t
	}
	return out, nil
}

func validateCrossRefs(forbidden, conditional map[string]Entry, transitions map[string]Transition) error {
	var overlap []string
	for name := range forbidden {
		if _, ok := conditional[name]; ok {
			overlap = append(overlap, name)
		}
	}
	if len(overlap) > 0 {
		return configErr("crate(s) present in both forbidden and conditional maps: %s",
			strings.Join(overlap, ", "))
	}

	for crate := range transitions {
		if _, ok := forbidden[crate]; ok {
			continue
		}
		if _, ok := conditional[crate]; ok {
			continue
		}
		return configErr("transition references crate absent from forbidden/conditional maps: %s", crate)
	}
	return nil
}

// parseTimestamp accepts RFC3339 with an explicit offset (Z counts). A bare
// local timestamp is rejected so expiry comparison is unambiguous.
func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("expires_at must be non-empty")
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expires_at %q lacks an explicit timezone or is malformed", raw)
	}
	return ts.UTC(), nil
}
