package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/crategate/crategate/telemetry"
	"github.com/crategate/crategate/types"
)

// RuleEngine evaluates optional Rego deny rules against dependency
// occurrences. Rules only add forbidden findings on top of the map
// classification; they can never downgrade a map verdict, and crates already
// covered by the forbidden/conditional maps are not offered to rules.
type RuleEngine struct {
	store   *Store
	logger  *telemetry.Logger
	tracer  trace.Tracer
	queries map[string]rego.PreparedEvalQuery
}

// RuleInput is the document handed to each rule as `input`.
type RuleInput struct {
	ProfileID string   `json:"profile_id"`
	Target    string   `json:"target"`
	Crate     string   `json:"crate"`
	Version   string   `json:"version"`
	Chain     []string `json:"transitive_chain"`
}

// denial is the shape a rule's `deny` object must produce.
type denial struct {
	Reason      string
	Remediation string
	RiskScore   int
}

// NewRuleEngine creates an empty rule engine bound to the policy store.
func NewRuleEngine(store *Store) *RuleEngine {
	return &RuleEngine{
		store:   store,
		logger:  telemetry.NewLogger("rule-engine"),
		tracer:  otel.Tracer("rule-engine"),
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// LoadDir compiles every .rego file under dir. A missing directory is a
// configuration error; a compile failure names the offending rule.
func (e *RuleEngine) LoadDir(ctx context.Context, dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return configErr("rule directory %s: %v", dir, err)
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".rego") {
			return nil
		}

		content, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return configErr("read rule file %s: %v", path, err)
		}

		name := strings.TrimSuffix(filepath.Base(path), ".rego")
		return e.LoadRule(ctx, name, string(content))
	})
}

// LoadRule compiles a single Rego module.
func (e *RuleEngine) LoadRule(ctx context.Context, name, source string) error {
	ctx, span := e.tracer.Start(ctx, "rule_engine.load_rule",
		trace.WithAttributes(attribute.String("rule.name", name)))
	defer span.End()

	query := rego.New(
		rego.Query("data.crategate"),
		rego.Module(name, source),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return configErr("compile rule %s: %v", name, err)
	}

	e.queries[name] = prepared

	e.logger.WithContext(ctx).Debug().
		Str("rule_name", name).
		Msg("rule loaded")
	return nil
}

// Len reports how many rules are loaded.
func (e *RuleEngine) Len() int {
	return len(e.queries)
}

// Evaluate runs all loaded rules against one occurrence and returns a
// forbidden finding for the first denial, or nil. Occurrences already in
// policy scope are skipped so map decisions stay authoritative.
func (e *RuleEngine) Evaluate(ctx context.Context, occ types.DependencyOccurrence, target string) (*types.Finding, error) {
	if len(e.queries) == 0 || e.store.Scope(occ.Crate) {
		return nil, nil
	}

	ctx, span := e.tracer.Start(ctx, "rule_engine.evaluate",
		trace.WithAttributes(
			attribute.String("crate", occ.Crate),
			attribute.String("profile_id", occ.ProfileID)))
	defer span.End()

	input := RuleInput{
		ProfileID: occ.ProfileID,
		Target:    target,
		Crate:     occ.Crate,
		Version:   occ.Version,
		Chain:     occ.Chain,
	}

	// Rule order must be stable so the first matching denial, and with it the
	// report bytes, cannot depend on map iteration order.
	names := make([]string, 0, len(e.queries))
	for name := range e.queries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rs, err := e.queries[name].Eval(ctx, rego.EvalInput(input))
		if err != nil {
			return nil, fmt.Errorf("evaluate rule %s: %w", name, err)
		}

		deny, ok := extractDenial(rs)
		if !ok {
			continue
		}

		e.logger.WithContext(ctx).Info().
			Str("rule_name", name).
			Str("crate", occ.Crate).
			Str("profile_id", occ.ProfileID).
			Msg("rule denied dependency")

		chain := make([]string, len(occ.Chain))
		copy(chain, occ.Chain)

		return &types.Finding{
			ProfileID:        occ.ProfileID,
			Target:           target,
			Crate:            occ.Crate,
			Version:          occ.Version,
			Chain:            chain,
			Decision:         types.DecisionForbidden,
			Reason:           deny.Reason,
			Remediation:      deny.Remediation,
			RiskScore:        deny.RiskScore,
			TransitionStatus: types.TransitionNone,
		}, nil
	}

	return nil, nil
}

// extractDenial digs the first `deny` object out of the data.crategate tree.
func extractDenial(rs rego.ResultSet) (denial, bool) {
	for _, result := range rs {
		for _, expr := range result.Expressions {
			if d, ok := findDeny(expr.Value); ok {
				return d, true
			}
		}
	}
	return denial{}, false
}

func findDeny(value any) (denial, bool) {
	node, ok := value.(map[string]any)
	if !ok {
		return denial{}, false
	}
	if raw, ok := node["deny"]; ok {
		return parseDeny(raw)
	}
	for _, child := range node {
		if d, ok := findDeny(child); ok {
			return d, true
		}
	}
	return denial{}, false
}

func parseDeny(raw any) (denial, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return denial{}, false
	}

	d := denial{
		Reason:      "denied by rule",
		Remediation: "remove dependency",
	}
	if reason, ok := obj["reason"].(string); ok && reason != "" {
		d.Reason = reason
	}
	if remediation, ok := obj["remediation"].(string); ok && remediation != "" {
		d.Remediation = remediation
	}
	switch score := obj["risk_score"].(type) {
	case float64:
		d.RiskScore = int(score)
	case int:
		d.RiskScore = score
	case json.Number:
		if f, err := score.Float64(); err == nil {
			d.RiskScore = int(f)
		}
	}
	if d.RiskScore < 0 {
		d.RiskScore = 0
	}
	if d.RiskScore > 100 {
		d.RiskScore = 100
	}
	return d, true
}
