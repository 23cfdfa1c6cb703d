// Package audit orchestrates the dependency-policy audit pipeline: profile
// selection, listing acquisition, tree parsing, classification, gate
// evaluation, and report assembly.
package audit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/crategate/crategate/gate"
	"github.com/crategate/crategate/policy"
	"github.com/crategate/crategate/report"
	"github.com/crategate/crategate/telemetry"
	"github.com/crategate/crategate/tree"
	"github.com/crategate/crategate/types"
)

// Pipeline runs a full audit. It holds no mutable state between runs; every
// Run re-reads nothing and recomputes everything from the immutable store,
// the runner output, and the injected clock.
type Pipeline struct {
	store       *policy.Store
	runner      tree.Runner
	classifier  *policy.Classifier
	rules       *policy.RuleEngine
	logger      *telemetry.Logger
	tracer      trace.Tracer
	policyPath  string
	concurrency int
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRules attaches an optional Rego rule engine.
func WithRules(rules *policy.RuleEngine) Option {
	return func(p *Pipeline) { p.rules = rules }
}

// WithNow overrides the clock. The pipeline captures one timestamp per run;
// injecting it makes full runs reproducible byte for byte.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithConcurrency bounds how many profiles scan in parallel. Zero or
// negative means one goroutine per profile.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// New creates a pipeline over a validated policy store.
func New(store *policy.Store, runner tree.Runner, policyPath string, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		runner:     runner,
		classifier: policy.NewClassifier(store),
		logger:     telemetry.NewLogger("audit"),
		tracer:     otel.Tracer("audit"),
		policyPath: policyPath,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// profileResult keeps one profile's output in its submission slot so the
// merge order never depends on goroutine scheduling.
type profileResult struct {
	findings []types.Finding
	stats    types.ProfileStats
}

// Run executes the audit for the requested profile ids (empty = all). Any
// listing or parse failure aborts the whole run: a report built on an
// incomplete graph could hide a forbidden dependency.
func (p *Pipeline) Run(ctx context.Context, profileIDs []string) (report.Report, error) {
	ctx, span := p.tracer.Start(ctx, "audit.run")
	defer span.End()

	profiles, err := policy.SelectProfiles(p.store.Profiles, profileIDs)
	if err != nil {
		return report.Report{}, err
	}

	now := p.now()
	span.SetAttributes(attribute.Int("profiles", len(profiles)))

	p.logger.WithContext(ctx).Info().
		Int("profiles", len(profiles)).
		Int("forbidden_crates", len(p.store.Forbidden)).
		Int("conditional_crates", len(p.store.Conditional)).
		Int("transitions", len(p.store.Transitions)).
		Msg("starting audit")

	results := make([]profileResult, len(profiles))

	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for i, profile := range profiles {
		g.Go(func() error {
			result, err := p.scanProfile(gctx, profile, now)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report.Report{}, err
	}

	var all []types.Finding
	stats := make([]types.ProfileStats, 0, len(profiles))
	for _, result := range results {
		all = append(all, result.findings...)
		stats = append(stats, result.stats)
	}

	findings := report.Dedupe(all)
	summary := gate.Evaluate(findings, p.store.HighThreshold)

	p.logger.WithContext(ctx).Info().
		Int("findings", len(findings)).
		Bool("passed", summary.Passed).
		Int("forbidden", summary.ForbiddenCount).
		Int("unresolved_high_risk", summary.UnresolvedHighRiskCount).
		Int("expired_transitions", summary.ExpiredTransitionCount).
		Msg("audit complete")

	return report.Build(p.policyPath, p.store.SchemaVersion, now, stats, summary, findings), nil
}

func (p *Pipeline) scanProfile(ctx context.Context, profile policy.Profile, now time.Time) (profileResult, error) {
	ctx, span := p.tracer.Start(ctx, "audit.scan_profile",
		trace.WithAttributes(
			attribute.String("profile_id", profile.ID),
			attribute.String("target", profile.Target)))
	defer span.End()

	listing, err := p.runner.List(ctx, profile)
	if err != nil {
		return profileResult{}, err
	}

	occurrences, err := tree.Parse(profile.ID, listing.Lines)
	if err != nil {
		return profileResult{}, err
	}

	var findings []types.Finding
	for _, occ := range occurrences {
		if finding := p.classifier.Classify(occ, profile.Target, now); finding != nil {
			findings = append(findings, *finding)
			continue
		}
		if p.rules != nil {
			finding, err := p.rules.Evaluate(ctx, occ, profile.Target)
			if err != nil {
				return profileResult{}, err
			}
			if finding != nil {
				findings = append(findings, *finding)
			}
		}
	}

	findings = report.Dedupe(findings)

	stats := types.ProfileStats{
		ProfileID:    profile.ID,
		Target:       profile.Target,
		Command:      listing.Command,
		LineCount:    len(listing.Lines),
		FindingCount: len(findings),
	}
	for _, f := range findings {
		switch f.Decision {
		case types.DecisionForbidden:
			stats.ForbiddenCount++
		case types.DecisionConditional:
			stats.ConditionalCount++
		}
	}

	p.logger.WithContext(ctx).Debug().
		Str("profile_id", profile.ID).
		Int("lines", stats.LineCount).
		Int("findings", stats.FindingCount).
		Msg("profile scanned")

	return profileResult{findings: findings, stats: stats}, nil
}
