package policy

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDoc() string {
	return `{
		"schema_version": "crate-dependency-policy-v1",
		"profiles": [
			{"id": "wasm-browser", "target": "wasm32-unknown-unknown", "features": ["browser"], "no_default_features": true},
			{"id": "native", "target": "x86_64-unknown-linux-gnu", "all_features": true}
		],
		"forbidden_crates": [
			{"name": "tokio", "reason": "multi-threaded runtime is banned in wasm builds", "remediation": "remove the dependency", "risk_score": 100}
		],
		"conditional_crates": [
			{"name": "tower", "reason": "allowed only during migration", "remediation": "feature-gate it out", "risk_score": 70}
		],
		"transitions": [
			{"crate": "tower", "status": "active", "owner": "runtime-core", "replacement_issue": "DEP-312", "expires_at": "2027-06-01T00:00:00Z", "notes": "tracked"}
		],
		"risk_thresholds": {"high": 90},
		"output": {"summary_path": "out/report.json", "log_path": "out/findings.ndjson"}
	}`
}

func TestParseValidPolicy(t *testing.T) {
	store, err := Parse([]byte(validDoc()))
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, store.SchemaVersion)
	assert.Len(t, store.Profiles, 2)
	assert.Equal(t, "wasm-browser", store.Profiles[0].ID)
	assert.Equal(t, 90, store.HighThreshold)
	assert.Equal(t, "out/report.json", store.Output.SummaryPath)

	entry, ok := store.Forbidden["tokio"]
	require.True(t, ok)
	assert.Equal(t, 100, entry.RiskScore)

	transition, ok := store.TransitionFor("tower")
	require.True(t, ok)
	assert.Equal(t, "DEP-312", transition.ReplacementIssue)
	assert.False(t, transition.Expiry().IsZero())
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(doc map[string]any)
		message string
	}{
		{
			name:    "missing schema version",
			mutate:  func(doc map[string]any) { delete(doc, "schema_version") },
			message: "schema_version",
		},
		{
			name:    "unknown schema version",
			mutate:  func(doc map[string]any) { doc["schema_version"] = "crate-dependency-policy-v99" },
			message: "schema_version",
		},
		{
			name: "duplicate forbidden entry",
			mutate: func(doc map[string]any) {
				doc["forbidden_crates"] = []map[string]any{
					{"name": "tokio", "reason": "r", "remediation": "m", "risk_score": 100},
					{"name": "tokio", "reason": "r", "remediation": "m", "risk_score": 100},
				}
			},
			message: "duplicate entry",
		},
		{
			name: "blank reason",
			mutate: func(doc map[string]any) {
				doc["forbidden_crates"] = []map[string]any{
					{"name": "tokio", "reason": "   ", "remediation": "m", "risk_score": 100},
				}
			},
			message: "reason",
		},
		{
			name: "risk score out of range",
			mutate: func(doc map[string]any) {
				doc["forbidden_crates"] = []map[string]any{
					{"name": "tokio", "reason": "r", "remediation": "m", "risk_score": 101},
				}
			},
			message: "risk_score",
		},
		{
			name: "crate in both maps",
			mutate: func(doc map[string]any) {
				doc["conditional_crates"] = []map[string]any{
					{"name": "tokio", "reason": "r", "remediation": "m", "risk_score": 10},
				}
				doc["transitions"] = []map[string]any{}
			},
			message: "both forbidden and conditional",
		},
		{
			name: "transition for unknown crate",
			mutate: func(doc map[string]any) {
				doc["transitions"] = []map[string]any{
					{"crate": "serde", "status": "active", "owner": "o", "replacement_issue": "i", "expires_at": "2027-01-01T00:00:00Z"},
				}
			},
			message: "absent from forbidden/conditional",
		},
		{
			name: "transition bad status",
			mutate: func(doc map[string]any) {
				doc["transitions"] = []map[string]any{
					{"crate": "tower", "status": "paused", "owner": "o", "replacement_issue": "i", "expires_at": "2027-01-01T00:00:00Z"},
				}
			},
			message: "status",
		},
		{
			name: "transition expiry without timezone",
			mutate: func(doc map[string]any) {
				doc["transitions"] = []map[string]any{
					{"crate": "tower", "status": "active", "owner": "o", "replacement_issue": "i", "expires_at": "2027-01-01T00:00:00"},
				}
			},
			message: "timezone",
		},
		{
			name: "duplicate transition",
			mutate: func(doc map[string]any) {
				doc["transitions"] = []map[string]any{
					{"crate": "tower", "status": "active", "owner": "o", "replacement_issue": "i", "expires_at": "2027-01-01T00:00:00Z"},
					{"crate": "tower", "status": "resolved", "owner": "o", "replacement_issue": "i", "expires_at": "2027-01-01T00:00:00Z"},
				}
			},
			message: "duplicate transition",
		},
		{
			name:    "duplicate profile id",
			mutate:  func(doc map[string]any) { doc["profiles"] = duplicateProfiles() },
			message: "duplicate profile",
		},
		{
			name:    "missing threshold",
			mutate:  func(doc map[string]any) { delete(doc, "risk_thresholds") },
			message: "risk_thresholds.high",
		},
		{
			name:    "missing output",
			mutate:  func(doc map[string]any) { delete(doc, "output") },
			message: "output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(mutateDoc(t, tt.mutate))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig), "expected ErrConfig, got %v", err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(validDoc()), 0644))

	store, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, store.Profiles, 2)
}

func duplicateProfiles() []map[string]any {
	return []map[string]any{
		{"id": "native", "target": "x86_64-unknown-linux-gnu"},
		{"id": "native", "target": "aarch64-unknown-linux-gnu"},
	}
}

func mutateDoc(t *testing.T, mutate func(map[string]any)) []byte {
	t.Helper()

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(validDoc()), &doc))
	mutate(doc)
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}
