// Package gate aggregates findings into the single pass/fail verdict.
package gate

import "github.com/crategate/crategate/types"

// Evaluate folds all findings across all profiles into the gate summary.
//
// A forbidden dependency always counts, even with an active transition: the
// transition only shields it from the high-risk count, never from the
// forbidden count. An expired transition always blocks regardless of risk,
// because the exception's time budget has lapsed.
func Evaluate(findings []types.Finding, highThreshold int) types.GateSummary {
	summary := types.GateSummary{
		HighRiskThreshold: highThreshold,
	}

	for _, f := range findings {
		if f.Decision == types.DecisionForbidden {
			summary.ForbiddenCount++
		}
		if f.RiskScore >= highThreshold && !covered(f.TransitionStatus) {
			summary.UnresolvedHighRiskCount++
		}
		if f.TransitionStatus == types.TransitionExpired {
			summary.ExpiredTransitionCount++
		}
	}

	summary.Passed = summary.ForbiddenCount == 0 &&
		summary.UnresolvedHighRiskCount == 0 &&
		summary.ExpiredTransitionCount == 0
	return summary
}

// covered reports whether a transition status exempts a high-risk finding.
func covered(status types.TransitionStatus) bool {
	return status == types.TransitionActive || status == types.TransitionResolved
}
