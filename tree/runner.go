package tree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/crategate/crategate/policy"
	"github.com/crategate/crategate/telemetry"
)

// ErrTool marks a failed or unavailable external listing command.
var ErrTool = errors.New("tree: external tool error")

// Listing is the raw output of one profile's dependency-graph invocation.
type Listing struct {
	// Command is the rendered argument vector, recorded in profile stats so
	// a report reader can reproduce the scan by hand.
	Command string
	Lines   []string
}

// Runner produces the raw dependency listing for a profile. The production
// implementation shells out to cargo; tests substitute a fake.
type Runner interface {
	List(ctx context.Context, profile policy.Profile) (Listing, error)
}

// CargoRunner invokes `cargo tree` with profile-specific arguments. The
// invocation is side-effect free and runs exactly once per profile per run;
// re-invocation by the caller is the only retry mechanism.
type CargoRunner struct {
	// Dir is the workspace directory cargo runs in. Empty means the current
	// working directory.
	Dir    string
	logger *telemetry.Logger
}

// NewCargoRunner creates a runner rooted at the given workspace directory.
func NewCargoRunner(dir string) *CargoRunner {
	return &CargoRunner{
		Dir:    dir,
		logger: telemetry.NewLogger("cargo-runner"),
	}
}

// List runs cargo tree for the profile and returns its non-empty lines.
func (r *CargoRunner) List(ctx context.Context, profile policy.Profile) (Listing, error) {
	args := Args(profile)

	r.logger.WithContext(ctx).Debug().
		Str("profile_id", profile.ID).
		Str("target", profile.Target).
		Strs("args", args).
		Msg("invoking cargo tree")

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Listing{}, fmt.Errorf("%w: cargo tree failed for profile=%s target=%s: %s",
			ErrTool, profile.ID, profile.Target, strings.TrimSpace(stderr.String()))
	}

	var lines []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	return Listing{
		Command: strings.Join(args, " "),
		Lines:   lines,
	}, nil
}

// Args renders the cargo tree argument vector for a profile.
func Args(profile policy.Profile) []string {
	args := []string{
		"cargo", "tree",
		"--workspace",
		"--target", profile.Target,
		"-e", "normal",
		"--prefix", "depth",
		"--charset", "ascii",
	}
	if profile.NoDefaultFeatures {
		args = append(args, "--no-default-features")
	}
	if profile.AllFeatures {
		args = append(args, "--all-features")
	}
	if len(profile.Features) > 0 {
		features := make([]string, len(profile.Features))
		copy(features, profile.Features)
		sort.Strings(features)
		args = append(args, "--features", strings.Join(features, ","))
	}
	return args
}
