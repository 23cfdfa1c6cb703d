package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crategate/crategate/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Parse([]byte(validDoc()))
	require.NoError(t, err)
	return store
}

func occurrence(crate string) types.DependencyOccurrence {
	return types.DependencyOccurrence{
		ProfileID: "wasm-browser",
		Crate:     crate,
		Version:   "v1.0.0",
		Chain:     []string{"app", crate},
	}
}

func TestClassifyForbidden(t *testing.T) {
	classifier := NewClassifier(testStore(t))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	finding := classifier.Classify(occurrence("tokio"), "wasm32-unknown-unknown", now)
	require.NotNil(t, finding)
	assert.Equal(t, types.DecisionForbidden, finding.Decision)
	assert.Equal(t, 100, finding.RiskScore)
	assert.Equal(t, types.TransitionNone, finding.TransitionStatus)
	assert.Equal(t, "wasm32-unknown-unknown", finding.Target)
	assert.Equal(t, []string{"app", "tokio"}, finding.Chain)
}

func TestClassifyConditionalWithActiveTransition(t *testing.T) {
	classifier := NewClassifier(testStore(t))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	finding := classifier.Classify(occurrence("tower"), "wasm32-unknown-unknown", now)
	require.NotNil(t, finding)
	assert.Equal(t, types.DecisionConditional, finding.Decision)
	assert.Equal(t, types.TransitionActive, finding.TransitionStatus)
	assert.Equal(t, "DEP-312", finding.TransitionIssue)
}

func TestClassifyOutOfScope(t *testing.T) {
	classifier := NewClassifier(testStore(t))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, classifier.Classify(occurrence("serde"), "wasm32-unknown-unknown", now))
}

func TestClassifyChainIsSnapshot(t *testing.T) {
	classifier := NewClassifier(testStore(t))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	occ := occurrence("tokio")
	finding := classifier.Classify(occ, "wasm32-unknown-unknown", now)
	require.NotNil(t, finding)

	occ.Chain[0] = "mutated"
	assert.Equal(t, "app", finding.Chain[0], "finding chain must not alias caller slice")
}

func TestTransitionValidity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		status string
		expiry time.Time
		want   types.TransitionStatus
	}{
		{"active before expiry", StatusActive, future, types.TransitionActive},
		{"active past expiry", StatusActive, past, types.TransitionExpired},
		{"active exactly at expiry", StatusActive, now, types.TransitionExpired},
		{"resolved never expires", StatusResolved, past, types.TransitionResolved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transition := Transition{
				Crate:     "tower",
				Status:    tt.status,
				expiresAt: tt.expiry,
			}
			assert.Equal(t, tt.want, TransitionValidity(transition, now))
		})
	}
}
