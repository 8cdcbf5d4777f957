// Package cli runs a load test end to end: sessions, console output,
// results table and history.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"pageswarm/internal/behavior"
	"pageswarm/internal/browser"
	"pageswarm/internal/config"
	"pageswarm/internal/metrics"
	"pageswarm/internal/report"
	"pageswarm/internal/runner"
	"pageswarm/internal/session"
	"pageswarm/internal/sink"
	"pageswarm/internal/storage"
	"pageswarm/internal/tui"
)

type App struct {
	Cfg config.Config

	// Launcher defaults to a Chrome launcher built from Cfg.
	Launcher browser.Launcher
	// Out receives console output; stdout when nil.
	Out    io.Writer
	Logger *zap.Logger
	// Pause overrides real sleeps between interactions.
	Pause behavior.PauseFunc
}

// Outcome is what a finished run produced.
type Outcome struct {
	Summary     report.Summary
	Results     []runner.Result
	ResultsPath string
	HistoryID   string
}

func (a *App) out() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

func (a *App) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

// Run executes one load test. Session failures are reported in the
// summary, never as an error; errors mean the run itself could not happen
// or its artifacts could not be written.
func (a *App) Run(ctx context.Context) (*Outcome, error) {
	cfg := a.Cfg
	out := a.out()
	log := a.logger()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	log.Debug("profile catalog loaded", zap.Strings("profiles", catalog.Names()))

	artifacts := sink.New(cfg.OutputDir)
	if err := artifacts.Ensure(); err != nil {
		return nil, err
	}

	launcher := a.Launcher
	if launcher == nil {
		launcher = browser.NewChromeLauncher(chromeConfig(cfg, log))
	}
	launcher = browser.Throttle(launcher, cfg.LaunchRate)

	opts := []session.Option{session.WithCatalog(catalog), session.WithLogger(log)}
	if a.Pause != nil {
		opts = append(opts, session.WithPause(a.Pause))
	}
	driver := session.NewDriver(cfg.SessionConfig(), launcher, artifacts, opts...)

	exporter := metrics.NewExporter()
	if cfg.MetricsAddr != "" {
		if _, err := exporter.Serve(ctx, cfg.MetricsAddr, log); err != nil {
			return nil, err
		}
	}

	printHeader(out, cfg, len(catalog))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(runner.UpdateChan, cfg.Users)
	r := runner.NewRunner(cfg.RunnerConfig(), exporter.Instrument(driver.Run), updates)
	r.OnResult = func(res runner.Result) {
		exporter.Observe(res)
		log.Debug("session finished",
			zap.Int("user", res.UserID),
			zap.Bool("success", res.Success),
			zap.Int64("load_ms", res.LoadTimeMs()),
			zap.Int("hops", res.Hops),
		)
		if !cfg.TUI {
			fmt.Fprintln(out, tui.ResultLine(res))
		}
	}

	start := time.Now()
	var results []runner.Result
	if cfg.TUI {
		results, err = runWithDashboard(runCtx, cancel, r, cfg, updates)
		if err != nil {
			return nil, err
		}
	} else {
		results = r.Run(runCtx)
	}
	elapsed := time.Since(start)

	summary := report.Summarize(results)
	fmt.Fprint(out, report.RenderSummary(cfg.TargetURL, summary))

	path, err := artifacts.WriteResults(results)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "\nDetailed results saved to: %s\n", path)
	fmt.Fprintf(out, "Screenshots saved in: %s\n", cfg.OutputDir)

	outcome := &Outcome{Summary: summary, Results: results, ResultsPath: path}
	if !cfg.NoHistory {
		id, err := saveHistory(cfg, summary, start, elapsed)
		if err != nil {
			// History is a convenience; the run itself succeeded.
			log.Warn("run history not saved", zap.Error(err))
		} else {
			outcome.HistoryID = id
		}
	}
	return outcome, nil
}

// runWithDashboard drives the runner behind the live TUI. Quitting the
// dashboard cancels remaining sessions; results are still collected in full.
func runWithDashboard(ctx context.Context, cancel context.CancelFunc, r *runner.Runner, cfg config.Config, updates runner.UpdateChan) ([]runner.Result, error) {
	done := make(chan []runner.Result, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	m := tui.NewModel(cfg.TargetURL, cfg.Users, updates, cancel)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil {
		cancel()
	}
	results := <-done
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, tea.ErrInterrupted) {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	return results, nil
}

// chromeConfig bounds clicks by the navigation timeout, like page loads.
func chromeConfig(cfg config.Config, log *zap.Logger) browser.ChromeConfig {
	return browser.ChromeConfig{
		Headless:        cfg.Headless,
		ExecPath:        cfg.ChromePath,
		NoSandbox:       cfg.NoSandbox,
		ClickTimeout:    cfg.NavigationTimeout,
		ProtocolTimeout: cfg.ProtocolTimeout,
		Logger:          log,
	}
}

func printHeader(out io.Writer, cfg config.Config, profiles int) {
	fmt.Fprintf(out, "\nStarting load test for %s\n", cfg.TargetURL)
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "Users          : %d concurrent\n", cfg.Users)
	fmt.Fprintf(out, "Timeout        : %s\n", cfg.NavigationTimeout)
	fmt.Fprintf(out, "Max hops       : %d\n", cfg.MaxHops)
	if cfg.SimulateProfiles {
		fmt.Fprintf(out, "Profiles       : Enabled (%d available)\n", profiles)
	} else {
		fmt.Fprintln(out, "Profiles       : Disabled")
	}
	if cfg.LaunchRate > 0 {
		fmt.Fprintf(out, "Launch rate    : %g/s\n", cfg.LaunchRate)
	}
	fmt.Fprintf(out, "Seed           : %d\n", cfg.Seed)
	fmt.Fprintf(out, "Results        : %s\n", cfg.OutputDir)
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintln(out)
}

func saveHistory(cfg config.Config, summary report.Summary, start time.Time, elapsed time.Duration) (string, error) {
	path, err := HistoryPath(cfg)
	if err != nil {
		return "", err
	}
	store, err := storage.Open(path)
	if err != nil {
		return "", err
	}
	defer store.Close()

	outDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		outDir = cfg.OutputDir
	}
	item := &storage.HistoryItem{
		Timestamp: start,
		Duration:  elapsed,
		Config: storage.RunConfig{
			TargetURL:         cfg.TargetURL,
			Users:             cfg.Users,
			MaxHops:           cfg.MaxHops,
			NavigationTimeout: cfg.NavigationTimeout,
			SimulateProfiles:  cfg.SimulateProfiles,
			Seed:              cfg.Seed,
			OutputDir:         outDir,
		},
		Summary: summary,
	}
	if err := store.Save(item); err != nil {
		return "", err
	}
	return item.ID, nil
}

// HistoryPath resolves the history file, falling back to the default.
func HistoryPath(cfg config.Config) (string, error) {
	if cfg.HistoryPath != "" {
		return cfg.HistoryPath, nil
	}
	return storage.DefaultPath()
}
