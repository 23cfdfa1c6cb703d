package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/crategate/crategate/audit"
	"github.com/crategate/crategate/policy"
	"github.com/crategate/crategate/telemetry"
)

var (
	watchPolicyPath  string
	watchWorkspace   string
	watchRulesDir    string
	watchInterval    time.Duration
	watchMetricsAddr string
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the audit on an interval and expose metrics",
	Long: `Daemon mode for long-lived environments: re-runs the full audit on a
fixed interval and exposes gate state as Prometheus metrics. Each iteration
is a fresh, independent run; nothing carries over between scans.`,
	Example: `  crategate watch --interval 15m
  crategate watch --metrics :9090`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchPolicyPath, "policy", ".github/crate_dependency_policy.json", "Path to policy JSON")
	watchCmd.Flags().StringVar(&watchWorkspace, "workspace", "", "Cargo workspace directory")
	watchCmd.Flags().StringVar(&watchRulesDir, "rules", "", "Directory of Rego deny rules")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Audit interval (default from config, 15m)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics", "", "Metrics listen address (default from config, :9090)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := telemetry.NewLogger("watch")

	store, err := policy.Load(watchPolicyPath)
	if err != nil {
		return err
	}
	rules, err := loadRules(cmd, store, watchRulesDir)
	if err != nil {
		return err
	}

	interval := watchInterval
	if interval <= 0 {
		interval = cfg.Watch.Interval
	}
	metricsAddr := watchMetricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.Watch.MetricsAddr
	}

	ctx := cmd.Context()

	provider, err := telemetry.NewProvider(ctx, telemetry.OTELConfig{
		ServiceName: "crategate",
		Endpoint:    cfg.OTEL.Endpoint,
		Insecure:    cfg.OTEL.Insecure,
		Traces:      cfg.OTEL.Traces,
		Metrics:     cfg.OTEL.Metrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	opts := []audit.Option{
		audit.WithConcurrency(cfg.Concurrency),
	}
	if rules != nil {
		opts = append(opts, audit.WithRules(rules))
	}
	pipeline := audit.New(store, newRunner(watchWorkspace), watchPolicyPath, opts...)

	var group run.Group

	// Signal handling.
	group.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	// Audit loop.
	loopCtx, loopCancel := context.WithCancel(ctx)
	group.Add(func() error {
		runOnce(loopCtx, pipeline, provider, logger)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runOnce(loopCtx, pipeline, provider, logger)
			case <-loopCtx.Done():
				return loopCtx.Err()
			}
		}
	}, func(error) {
		loopCancel()
	})

	// Metrics server.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	group.Add(func() error {
		logger.Info().Str("addr", metricsAddr).Msg("starting metrics server")
		return server.ListenAndServe()
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})

	logger.Info().
		Dur("interval", interval).
		Str("metrics_addr", metricsAddr).
		Msg("watch mode starting")

	err = group.Run()
	var signalErr run.SignalError
	if errors.As(err, &signalErr) || errors.Is(err, context.Canceled) {
		logger.Info().Msg("shutting down")
		return nil
	}
	return err
}

// runOnce executes a single audit iteration. Gate failure is a reported
// outcome, not a daemon error; only tool malfunctions are logged as errors.
func runOnce(ctx context.Context, pipeline *audit.Pipeline, provider *telemetry.Provider, logger *telemetry.Logger) {
	start := time.Now()

	result, err := pipeline.Run(ctx, nil)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		provider.RecordError(ctx, "audit")
		logger.Error().Err(err).Msg("audit iteration failed")
		return
	}

	provider.RecordAudit(ctx, time.Since(start), result.FindingCount, result.Gate.Passed)
	logger.Info().
		Bool("passed", result.Gate.Passed).
		Int("findings", result.FindingCount).
		Dur("duration", time.Since(start)).
		Msg("audit iteration complete")
}
