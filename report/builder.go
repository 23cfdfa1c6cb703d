// Package report deduplicates, orders, and writes the audit artifacts.
package report

import (
	"sort"
	"time"

	"github.com/crategate/crategate/types"
)

// SchemaVersion marks the audit report format.
const SchemaVersion = "crate-dependency-audit-report-v1"

// LogEvent tags every NDJSON finding row.
const LogEvent = "crate_dependency_policy_finding"

// Report is the JSON audit summary consumed by CI and operators.
type Report struct {
	SchemaVersion       string               `json:"schema_version"`
	GeneratedAt         string               `json:"generated_at"`
	PolicyPath          string               `json:"policy_path"`
	PolicySchemaVersion string               `json:"policy_schema_version"`
	Profiles            []types.ProfileStats `json:"profiles"`
	Gate                types.GateSummary    `json:"gate"`
	FindingCount        int                  `json:"finding_count"`
	Findings            []types.Finding      `json:"findings"`
}

// Dedupe collapses findings with identical (profile, decision, crate,
// version, chain) and returns them in the canonical report order. The result
// is byte-stable: identical input always yields identical output.
func Dedupe(findings []types.Finding) []types.Finding {
	seen := make(map[string]bool, len(findings))
	out := make([]types.Finding, 0, len(findings))
	for _, f := range findings {
		key := f.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Less(out[j])
	})
	return out
}

// Build assembles the final report. Findings must already be deduplicated
// and sorted; profile stats are re-sorted by profile id here.
func Build(policyPath, policySchema string, now time.Time, stats []types.ProfileStats, gate types.GateSummary, findings []types.Finding) Report {
	ordered := make([]types.ProfileStats, len(stats))
	copy(ordered, stats)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ProfileID < ordered[j].ProfileID
	})

	return Report{
		SchemaVersion:       SchemaVersion,
		GeneratedAt:         Timestamp(now),
		PolicyPath:          policyPath,
		PolicySchemaVersion: policySchema,
		Profiles:            ordered,
		Gate:                gate,
		FindingCount:        len(findings),
		Findings:            findings,
	}
}

// Timestamp renders the canonical report timestamp: RFC3339, UTC, second
// precision so reruns with an injected now reproduce identical bytes.
func Timestamp(now time.Time) string {
	return now.UTC().Truncate(time.Second).Format(time.RFC3339)
}
