package policy

import (
	"time"

	"github.com/crategate/crategate/types"
)

// Classifier assigns policy decisions to dependency occurrences using the
// immutable Store maps.
type Classifier struct {
	store *Store
}

// NewClassifier creates a classifier bound to a validated store.
func NewClassifier(store *Store) *Classifier {
	return &Classifier{store: store}
}

// Classify returns a finding for a policy-managed occurrence, or nil when the
// crate is outside policy scope. The forbidden map wins over the conditional
// map; transition content never changes the decision itself, only the
// transition status attached to it.
func (c *Classifier) Classify(occ types.DependencyOccurrence, target string, now time.Time) *types.Finding {
	var (
		entry    Entry
		decision types.Decision
	)

	switch {
	case c.hasForbidden(occ.Crate):
		entry = c.store.Forbidden[occ.Crate]
		decision = types.DecisionForbidden
	case c.hasConditional(occ.Crate):
		entry = c.store.Conditional[occ.Crate]
		decision = types.DecisionConditional
	default:
		return nil
	}

	status := types.TransitionNone
	issue := ""
	if transition, ok := c.store.TransitionFor(occ.Crate); ok {
		status = TransitionValidity(transition, now)
		issue = transition.ReplacementIssue
	}

	chain := make([]string, len(occ.Chain))
	copy(chain, occ.Chain)

	return &types.Finding{
		ProfileID:        occ.ProfileID,
		Target:           target,
		Crate:            occ.Crate,
		Version:          occ.Version,
		Chain:            chain,
		Decision:         decision,
		Reason:           entry.Reason,
		Remediation:      entry.Remediation,
		RiskScore:        entry.RiskScore,
		TransitionStatus: status,
		TransitionIssue:  issue,
	}
}

func (c *Classifier) hasForbidden(crate string) bool {
	_, ok := c.store.Forbidden[crate]
	return ok
}

func (c *Classifier) hasConditional(crate string) bool {
	_, ok := c.store.Conditional[crate]
	return ok
}

// TransitionValidity computes the temporal status of a tracked exception. It
// is a pure function of (record, now): resolved never expires, active flips
// to expired the instant expires_at is reached.
func TransitionValidity(t Transition, now time.Time) types.TransitionStatus {
	if t.Status == StatusResolved {
		return types.TransitionResolved
	}
	if !t.Expiry().After(now) {
		return types.TransitionExpired
	}
	return types.TransitionActive
}
