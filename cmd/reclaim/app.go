package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/config"
	"github.com/fenilsonani/reclaim/internal/log"
	"github.com/fenilsonani/reclaim/internal/metrics"
	"github.com/fenilsonani/reclaim/internal/oplog"
	"github.com/fenilsonani/reclaim/internal/orphan"
	"github.com/fenilsonani/reclaim/internal/owner"
	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/reporter"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// app wires the components for one command invocation
type app struct {
	cfg     *config.Config
	cfgPath string
	info    *platform.Info
	policy  *security.Policy
	engine  *scanner.Engine
	metrics *metrics.Metrics
	out     *reporter.Reporter

	progress *progress.ProgressReporter
	watchers sync.WaitGroup

	oplog *oplog.Log
	sudo  *cleaner.SudoElevator
}

func newApp() (*app, error) {
	cfgPath, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch {
	case debug:
		log.SetDebugMode()
	case verbose:
		log.SetVerbose()
	default:
		log.SetLevel(log.ParseLevel(cfg.Log.Level))
	}

	info, err := platform.GetInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get platform info: %w", err)
	}

	format, err := reporter.ParseFormat(outputFmt)
	if err != nil {
		return nil, err
	}
	styled := isatty.IsTerminal(os.Stdout.Fd()) && (format == reporter.FormatSummary || format == reporter.FormatTable)

	a := &app{
		cfg:     cfg,
		cfgPath: cfgPath,
		info:    info,
		policy:  cfg.Policy(info),
		engine: scanner.NewEngine(scanner.Options{
			IncludeHidden: cfg.Scan.IncludeHidden,
			YieldEvery:    cfg.Scan.YieldEvery,
		}),
		metrics:  metrics.New(),
		out:      reporter.New(os.Stdout, format, styled),
		progress: progress.NewProgressReporter(),
	}
	a.watchProgress()

	log.Debug().Str("config", cfgPath).Str("os", string(info.OS)).Msg("starting")
	return a, nil
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

// watchProgress prints progress to stderr when verbose
func (a *app) watchProgress() {
	if !verbose && !debug {
		return
	}
	updates := a.progress.Subscribe()
	a.watchers.Add(1)
	go func() {
		defer a.watchers.Done()
		for u := range updates {
			fmt.Fprintln(os.Stderr, progress.Format(u))
		}
	}()
}

func (a *app) close() {
	a.progress.Close()
	a.watchers.Wait()

	if a.sudo != nil {
		a.sudo.Clear()
	}
	if a.oplog != nil {
		if err := a.oplog.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close operation log")
		}
	}
	if metricsTextfile != "" {
		if err := a.metrics.WriteTextfile(metricsTextfile); err != nil {
			log.Error().Err(err).Str("path", metricsTextfile).Msg("failed to write metrics")
		}
	}
}

// run builds the app, calls fn and closes the app
func run(fn func(ctx context.Context, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), a)
	}
}

func (a *app) operationLog() *oplog.Log {
	if a.oplog == nil {
		path := a.cfg.Log.Path
		if path == "" {
			path = oplog.DefaultPath(a.info.ConfigDir)
		}
		a.oplog = oplog.Open(oplog.Options{
			Path:      a.policy.ExpandHome(path),
			MaxSizeMB: a.cfg.Log.MaxSizeMB,
		})
	}
	return a.oplog
}

func (a *app) trash() *cleaner.FileTrash {
	return cleaner.NewFileTrash(a.info.TrashDir, a.info.TrashLayout, a.engine)
}

// elevator picks the administrator prompt for the platform, or nil
func (a *app) elevator() cleaner.Elevator {
	if a.info.OS == platform.MacOS {
		if _, err := exec.LookPath("osascript"); err == nil {
			return cleaner.NewOsascriptElevator()
		}
	}
	if a.sudo == nil {
		a.sudo = cleaner.NewSudoElevator()
	}
	if !a.sudo.IsAvailable() {
		return nil
	}
	return a.sudo
}

func (a *app) cleaner(checkRunning bool) *cleaner.Cleaner {
	return cleaner.New(cleaner.Deps{
		Policy:   a.policy,
		Owners:   owner.NewDetector(owner.NewProcessLister()),
		Trash:    a.trash(),
		Elevator: a.elevator(),
		Log:      a.operationLog(),
		Metrics:  a.metrics,
		Progress: a.progress.Func(progress.PhaseCleaning),
	}, cleaner.Options{
		CheckRunning: checkRunning,
		BatchSize:    a.cfg.Clean.BatchSize,
	})
}

func (a *app) correlator() (*orphan.Correlator, error) {
	ttl, err := a.cfg.Orphans.CacheTTL()
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = orphan.DefaultCacheTTL
	}

	dirs := make([]string, 0, len(a.cfg.Orphans.AppDirs))
	for _, d := range a.cfg.Orphans.AppDirs {
		dirs = append(dirs, a.policy.ExpandHome(d))
	}

	return orphan.New(orphan.Config{
		InactivityThreshold: a.cfg.Orphans.InactivityThreshold(),
		Locations:           a.cfg.Orphans.Locations,
		ServiceDirs:         a.cfg.Orphans.ServiceDirs,
	}, a.policy, &orphan.AppSweeper{
		Dirs:    dirs,
		Running: owner.NewProcessLister(),
	}, orphan.DefaultLookup(ttl), a.engine), nil
}

// scan runs the configured targets, limited to categories when given
func (a *app) scan(ctx context.Context, categories []string) (*scanner.Session, error) {
	targets := a.cfg.Targets
	if len(categories) > 0 {
		targets = nil
		for _, t := range a.cfg.Targets {
			if slices.Contains(categories, t.Category) {
				targets = append(targets, t)
			}
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("no targets in categories %s", strings.Join(categories, ", "))
		}
	}

	start := time.Now()
	s := scanner.New(a.engine, a.info.HomeDir, a.cfg.Scan.MaxConcurrency)
	session, err := s.Scan(ctx, targets, a.progress.Func(progress.PhaseScanning))
	if err != nil {
		return nil, err
	}

	a.metrics.ObserveScanDuration(time.Since(start))
	for _, c := range session.Categories {
		a.metrics.RecordScan(c.Category, c.TotalSize)
	}
	log.Info().Str("session", session.ID).Int("items", len(session.Items())).Dur("took", time.Since(start)).Msg("scan complete")
	return session, nil
}

// confirm asks a yes/no question on the terminal. Without a terminal the
// answer is no.
func confirm(question string) bool {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return false
	}
	fmt.Fprintf(os.Stderr, "%s (y/N): ", question)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
