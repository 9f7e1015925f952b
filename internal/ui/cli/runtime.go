package cli

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	coreapp "guardrail/internal/core/app"
	"guardrail/internal/core/config"
	"guardrail/internal/core/errors"
	"guardrail/internal/core/ports"
	"guardrail/internal/data/history"
	mcpruntime "guardrail/internal/mcp/runtime"
	"guardrail/internal/shared/observability"
	"guardrail/internal/shared/util"
	"guardrail/internal/shared/version"
	"guardrail/internal/ui/report"
	"guardrail/internal/ui/report/formats"
)

// Run executes the command line and returns the process exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return report.ExitPass
		}
		return report.ExitUsage
	}

	if opts.version {
		fmt.Fprintf(stdout, "guardrail %s (%s)\n", version.Version, version.Commit)
		return report.ExitPass
	}
	if err := validateModeCompatibility(opts); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return report.ExitUsage
	}

	cleanupLogs := configureLogging(stderr, opts.ui, opts.verbose)
	defer cleanupLogs()

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to detect working directory", "error", err)
		return report.ExitUsage
	}

	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return report.ExitConfigError
	}
	applyFlagOverrides(&opts, cfg)

	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		slog.Error("failed to resolve runtime paths", "error", err)
		return report.ExitConfigError
	}

	shutdownTracing := initTracing(ctx, cfg)
	defer shutdownTracing()

	analysis, err := coreapp.New(cfg, paths)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return exitCodeFor(err)
	}
	defer analysis.Close()
	analysis.SetConfigPath(cfgPath)

	if cfg.DB.Enabled {
		store, err := history.Open(paths.DBPath, cfg.DB.BusyTimeout)
		if err != nil {
			slog.Error("history setup failed", "error", err, "path", paths.DBPath)
			return report.ExitConfigError
		}
		analysis.AttachHistory(history.NewAdapter(store, cfg.DB.Project))
	}

	switch {
	case opts.mcp:
		return runMCPMode(ctx, cfg, analysis)
	case opts.trace:
		return runTrace(ctx, analysis, opts.args, stdout, stderr)
	case opts.impact != "":
		return runImpact(ctx, analysis, opts.impact, stdout)
	case opts.metrics > 0:
		return runMetrics(ctx, analysis, opts.metrics, stdout)
	case opts.trend:
		return runTrend(ctx, analysis, opts.since, stdout, stderr)
	case opts.watch:
		return runWatchMode(ctx, cfg, analysis, opts, stdout)
	case opts.ui:
		return runSingleUI(ctx, analysis, opts)
	default:
		return runCheck(ctx, analysis, opts, cfg, stdout)
	}
}

func runCheck(ctx context.Context, analysis *coreapp.App, opts cliOptions, cfg *config.Config, stdout io.Writer) int {
	res, err := analysis.Check(ctx, ports.CheckRequest{
		Format:        opts.format,
		WriteOutputs:  true,
		RecordHistory: cfg.DB.Enabled,
	})
	if err != nil {
		slog.Error("check failed", "error", err)
		return exitCodeFor(err)
	}
	if err := emit(res.Rendered, opts.out, stdout); err != nil {
		slog.Error("failed to write report", "error", err, "path", opts.out)
		return report.ExitUsage
	}
	return res.Report.ExitCode()
}

func runSingleUI(ctx context.Context, analysis *coreapp.App, opts cliOptions) int {
	if _, err := analysis.Check(ctx, ports.CheckRequest{WriteOutputs: true, RecordHistory: analysis.Config().DB.Enabled}); err != nil {
		slog.Error("check failed", "error", err)
		return exitCodeFor(err)
	}
	if err := runUI(ctx, analysis, nil, loadTrend(ctx, analysis, opts.since)); err != nil {
		slog.Error("failed to run UI", "error", err)
		return report.ExitUsage
	}
	return analysis.LastReport().ExitCode()
}

func runWatchMode(ctx context.Context, cfg *config.Config, analysis *coreapp.App, opts cliOptions, stdout io.Writer) int {
	if cfg.Observability.Enabled {
		obs := NewObservabilityServer(fmt.Sprintf(":%d", cfg.Observability.Port), analysis)
		if err := obs.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return report.ExitUsage
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = obs.Stop(shutdownCtx)
		}()
	}

	watch := analysis.WatchService()
	if !opts.ui {
		watch.Subscribe(func(update ports.WatchUpdate) {
			if update.Err != nil || update.Report == nil {
				return
			}
			if len(update.Changed) > 0 {
				fmt.Fprintf(stdout, "\n--- re-checked after change to %s ---\n", strings.Join(update.Changed, ", "))
			}
			if err := renderUpdate(analysis, opts, update.Report, stdout); err != nil {
				slog.Error("failed to write report", "error", err)
			}
		})
	}
	if err := watch.Start(ctx); err != nil {
		slog.Error("failed to start watcher", "error", err)
		return exitCodeFor(err)
	}

	if opts.ui {
		if err := runUI(ctx, analysis, watch, loadTrend(ctx, analysis, opts.since)); err != nil {
			slog.Error("failed to run UI", "error", err)
			return report.ExitUsage
		}
	} else {
		<-ctx.Done()
	}
	_ = watch.Close()
	if rep := analysis.LastReport(); rep != nil {
		return rep.ExitCode()
	}
	return report.ExitConfigError
}

func renderUpdate(analysis *coreapp.App, opts cliOptions, rep *report.Report, stdout io.Writer) error {
	format := opts.format
	if format == "" {
		format = analysis.Config().Output.Format
	}
	data, err := formats.Render(format, rep, analysis.Paths().ProjectRoot)
	if err != nil {
		return err
	}
	return emit(data, opts.out, stdout)
}

func runMCPMode(ctx context.Context, cfg *config.Config, analysis *coreapp.App) int {
	server, err := mcpruntime.New(cfg, mcpruntime.Dependencies{
		Service: analysis,
		Logger:  slog.Default(),
	})
	if err != nil {
		slog.Error("failed to build MCP server", "error", err)
		return report.ExitConfigError
	}
	if err := server.Run(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
		slog.Error("mcp server failed", "error", err)
		return report.ExitUsage
	}
	return report.ExitPass
}

func runTrace(ctx context.Context, analysis *coreapp.App, args []string, stdout, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, "--trace requires two unit names: --trace <from> <to>")
		return report.ExitUsage
	}
	res, err := analysis.Trace(ctx, args[0], args[1])
	if err != nil {
		slog.Error("trace failed", "error", err)
		return exitCodeFor(err)
	}
	if !res.Found {
		fmt.Fprintf(stdout, "no dependency chain from %s to %s\n", res.From, res.To)
		return report.ExitViolations
	}
	fmt.Fprintf(stdout, "%s\n", res.From)
	for _, e := range res.Edges {
		line := fmt.Sprintf("  -> %s", e.To)
		if e.Location.File != "" {
			line += fmt.Sprintf("  (%s:%d)", e.Location.File, e.Location.Line)
		}
		fmt.Fprintln(stdout, line)
	}
	return report.ExitPass
}

func runImpact(ctx context.Context, analysis *coreapp.App, unit string, stdout io.Writer) int {
	rep, err := analysis.Impact(ctx, unit)
	if err != nil {
		slog.Error("impact analysis failed", "error", err)
		return exitCodeFor(err)
	}
	fmt.Fprintf(stdout, "Impact of %s\n", rep.Target)
	fmt.Fprintf(stdout, "  direct dependents (%d):\n", len(rep.DirectDependents))
	for _, name := range rep.DirectDependents {
		fmt.Fprintf(stdout, "    %s\n", name)
	}
	fmt.Fprintf(stdout, "  transitive dependents (%d):\n", len(rep.TransitiveDependents))
	for _, name := range rep.TransitiveDependents {
		fmt.Fprintf(stdout, "    %s\n", name)
	}
	return report.ExitPass
}

func runMetrics(ctx context.Context, analysis *coreapp.App, limit int, stdout io.Writer) int {
	metrics, err := analysis.Metrics(ctx, limit)
	if err != nil {
		slog.Error("metrics failed", "error", err)
		return exitCodeFor(err)
	}
	fmt.Fprintf(stdout, "%-60s %7s %7s %5s\n", "UNIT", "FAN_IN", "FAN_OUT", "DEPTH")
	for _, m := range metrics {
		fmt.Fprintf(stdout, "%-60s %7d %7d %5d\n", m.Name, m.FanIn, m.FanOut, m.Depth)
	}
	return report.ExitPass
}

func runTrend(ctx context.Context, analysis *coreapp.App, since string, stdout, stderr io.Writer) int {
	from, err := parseSince(since)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return report.ExitUsage
	}
	trend, err := analysis.History(ctx, from, 0)
	if err != nil {
		slog.Error("history query failed", "error", err)
		return exitCodeFor(err)
	}
	fmt.Fprintf(stdout, "Project %s: %d runs\n", trend.ProjectKey, trend.RunCount)
	for _, p := range trend.Points {
		status := "pass"
		if !p.Passed {
			status = "FAIL"
		}
		line := fmt.Sprintf("%s  %s  %-4s violations=%d (%+d)", p.Timestamp.Format(time.RFC3339), shortID(p.RunID), status, p.Violations, p.DeltaViolations)
		if len(p.NewlyFailing) > 0 {
			line += " newly failing: " + strings.Join(p.NewlyFailing, ",")
		}
		if len(p.Fixed) > 0 {
			line += " fixed: " + strings.Join(p.Fixed, ",")
		}
		fmt.Fprintln(stdout, line)
	}
	return report.ExitPass
}

func loadTrend(ctx context.Context, analysis *coreapp.App, since string) *history.TrendReport {
	from, err := parseSince(since)
	if err != nil {
		slog.Warn("ignoring --since", "error", err)
	}
	trend, err := analysis.History(ctx, from, 0)
	if err != nil {
		slog.Debug("no trend available", "error", err)
		return nil
	}
	return &trend
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func emit(data []byte, path string, stdout io.Writer) error {
	if strings.TrimSpace(path) == "" {
		_, err := stdout.Write(data)
		return err
	}
	return util.WriteFileWithDirs(path, data, 0o644)
}

func loadConfig(path, cwd string) (*config.Config, string, error) {
	if strings.TrimSpace(path) != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	for _, candidate := range discoverDefaultConfig(cwd) {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		cfg, err := config.Load(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}
	slog.Debug("no config file found, using defaults")
	return config.Default(), "", nil
}

func discoverDefaultConfig(cwd string) []string {
	out := make([]string, 0, len(config.DefaultConfigCandidates))
	for _, candidate := range config.DefaultConfigCandidates {
		out = append(out, filepath.Clean(filepath.Join(cwd, candidate)))
	}
	return out
}

func applyFlagOverrides(opts *cliOptions, cfg *config.Config) {
	if len(opts.facts) > 0 {
		cfg.Facts.Files = append([]string(nil), opts.facts...)
	}
	if len(opts.rules) > 0 {
		cfg.RuleFiles = append([]string(nil), opts.rules...)
	}
	if opts.failOnWarn {
		cfg.Engine.FailOnWarn = true
	}
	if opts.history {
		cfg.DB.Enabled = true
	}
}

func validateModeCompatibility(opts cliOptions) error {
	modes := 0
	for _, on := range []bool{opts.mcp, opts.trace, opts.impact != "", opts.metrics > 0, opts.trend} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return fmt.Errorf("--mcp, --trace, --impact, --metrics and --trend are mutually exclusive")
	}
	if modes == 1 && (opts.watch || opts.ui) {
		return fmt.Errorf("--watch and --ui cannot be combined with query modes")
	}
	if opts.metrics < 0 {
		return fmt.Errorf("--metrics must be positive")
	}
	if !opts.trace && len(opts.args) > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(opts.args, " "))
	}
	switch opts.format {
	case "", "text", "json", "markdown", "sarif", "tsv":
	default:
		return fmt.Errorf("unsupported --format %q", opts.format)
	}
	return nil
}

func parseSince(value string) (time.Time, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, nil
	}

	rfc3339, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return rfc3339.UTC(), nil
	}

	dateOnly, err := time.Parse("2006-01-02", raw)
	if err == nil {
		return dateOnly.UTC(), nil
	}

	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return time.Now().UTC().Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("--since must be RFC3339, YYYY-MM-DD or a duration, got %q", value)
}

// exitCodeFor maps a run error to the process exit code.
func exitCodeFor(err error) int {
	switch {
	case errors.IsCode(err, errors.CodeConfiguration), errors.IsCode(err, errors.CodeTimeout):
		return report.ExitConfigError
	case stderrors.Is(err, context.DeadlineExceeded):
		return report.ExitConfigError
	default:
		return report.ExitUsage
	}
}

func initTracing(ctx context.Context, cfg *config.Config) func() {
	if !cfg.Observability.EnableTracing {
		return func() {}
	}
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.Observability.OTLPEndpoint,
		ServiceName: cfg.Observability.ServiceName,
		Insecure:    true,
	})
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		return func() {}
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}
}

func configureLogging(stderr io.Writer, uiMode, verbose bool) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := stderr
	closeFn := func() {}
	if uiMode {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
				fmt.Fprintf(stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
			} else {
				f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
				if err == nil {
					output = f
					closeFn = func() { _ = f.Close() }
				} else {
					fmt.Fprintf(stderr, "warning: failed to open log file %s: %v\n", logPath, err)
				}
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return closeFn
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "guardrail", "guardrail.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "guardrail", "guardrail.log")
	}

	return "guardrail.log"
}
