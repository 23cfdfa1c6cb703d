package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crategate/crategate/config"
	"github.com/crategate/crategate/report"
	"github.com/crategate/crategate/types"
)

func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	return cmd, &buf
}

func TestPrintVerdict_Passed(t *testing.T) {
	cmd, buf := newTestCommand()

	result := report.Report{
		Gate: types.GateSummary{Passed: true, HighRiskThreshold: 70},
	}

	err := printVerdict(cmd, result, "report.json", "findings.ndjson")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "gate passed")
}

func TestPrintVerdict_FailedListsFindings(t *testing.T) {
	cmd, buf := newTestCommand()

	result := report.Report{
		Gate: types.GateSummary{
			Passed:         false,
			ForbiddenCount: 1,
		},
		FindingCount: 1,
		Findings: []types.Finding{
			{
				ProfileID: "wasm-browser",
				Crate:     "openssl",
				Version:   "v0.10.66",
				Chain:     []string{"app", "native-tls", "openssl"},
				Decision:  types.DecisionForbidden,
				Reason:    "native TLS stack",
			},
		},
	}

	err := printVerdict(cmd, result, "report.json", "findings.ndjson")
	assert.ErrorIs(t, err, errGateFailed)

	out := buf.String()
	assert.Contains(t, out, "gate failed")
	assert.Contains(t, out, "openssl")
	assert.Contains(t, out, "Summary: report.json")
	assert.Contains(t, out, "Log: findings.ndjson")
}

func TestPickConcurrency(t *testing.T) {
	cfg = config.Default()
	cfg.Concurrency = 4

	assert.Equal(t, 8, pickConcurrency(8))
	assert.Equal(t, 4, pickConcurrency(0))
	assert.Equal(t, 4, pickConcurrency(-1))
}

func TestLoadRules_NoDirectoryConfigured(t *testing.T) {
	cfg = config.Default()
	cmd, _ := newTestCommand()

	rules, err := loadRules(cmd, nil, "")
	require.NoError(t, err)
	assert.Nil(t, rules)
}
