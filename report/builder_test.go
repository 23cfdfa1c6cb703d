package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crategate/crategate/types"
)

func finding(profile, crate, version string, decision types.Decision, chain ...string) types.Finding {
	return types.Finding{
		ProfileID: profile,
		Crate:     crate,
		Version:   version,
		Decision:  decision,
		Chain:     chain,
	}
}

func TestDedupeCollapsesAndSorts(t *testing.T) {
	findings := []types.Finding{
		finding("native", "tokio", "v1", types.DecisionForbidden, "app", "tokio"),
		finding("native", "tokio", "v1", types.DecisionForbidden, "app", "tokio"),
		finding("a-profile", "zzz", "v1", types.DecisionConditional, "app", "zzz"),
		finding("native", "serde", "v1", types.DecisionForbidden, "app", "serde"),
	}

	out := Dedupe(findings)
	require.Len(t, out, 3)
	assert.Equal(t, "a-profile", out[0].ProfileID)
	assert.Equal(t, "serde", out[1].Crate)
	assert.Equal(t, "tokio", out[2].Crate)
}

func TestDedupeKeepsDistinctChains(t *testing.T) {
	findings := []types.Finding{
		finding("native", "tokio", "v1", types.DecisionForbidden, "app", "tokio"),
		finding("native", "tokio", "v1", types.DecisionForbidden, "app", "hyper", "tokio"),
	}

	assert.Len(t, Dedupe(findings), 2)
}

func TestDedupeIsDeterministic(t *testing.T) {
	forward := []types.Finding{
		finding("native", "tokio", "v1", types.DecisionForbidden, "app", "tokio"),
		finding("native", "serde", "v1", types.DecisionForbidden, "app", "serde"),
		finding("wasm", "tower", "v2", types.DecisionConditional, "app", "tower"),
	}
	reversed := []types.Finding{forward[2], forward[1], forward[0]}

	assert.Equal(t, Dedupe(forward), Dedupe(reversed))
}

func TestBuildOrdersProfileStats(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stats := []types.ProfileStats{
		{ProfileID: "zz-profile"},
		{ProfileID: "aa-profile"},
	}

	r := Build("policy.json", "crate-dependency-policy-v1", now, stats, types.GateSummary{Passed: true}, nil)

	assert.Equal(t, SchemaVersion, r.SchemaVersion)
	assert.Equal(t, "2026-03-01T12:00:00Z", r.GeneratedAt)
	assert.Equal(t, "aa-profile", r.Profiles[0].ProfileID)
	assert.Equal(t, "zz-profile", r.Profiles[1].ProfileID)
	assert.Equal(t, 0, r.FindingCount)
}

func TestTimestampDropsSubsecond(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 987654321, time.FixedZone("CET", 3600))
	assert.Equal(t, "2026-03-01T11:00:00Z", Timestamp(now))
}
