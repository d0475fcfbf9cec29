package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"focal/pkg/config"
	"focal/pkg/engine"
	"focal/pkg/eventbus"
	"focal/pkg/eventlog"
	"focal/pkg/gitpool"
)

// watchConfig holds configuration for the watch command.
type watchConfig struct {
	configPath string
	pidPath    string
}

// newWatchCmd creates the "focal watch" subcommand.
func newWatchCmd() *cobra.Command {
	var cfg watchConfig

	cmd := &cobra.Command{
		Use:   "watch <project-path> [project-path...]",
		Short: "Track the active git context for a set of project paths",
		Long:  "Runs the reconciliation engine over the given project paths until\ninterrupted, journaling every context event and reacting to external\nrepository changes (commits, checkouts) via the head watcher.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.configPath, "config", "", "config file (default ~/.focal/config.toml)")
	cmd.Flags().StringVar(&cfg.pidPath, "pid-file", "", "PID file (default ~/.focal/focal.pid)")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string, wc watchConfig) error {
	cfgPath := wc.configPath
	if cfgPath == "" {
		var err error
		if cfgPath, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	pidPath := wc.pidPath
	if pidPath == "" {
		if pidPath, err = DefaultPIDPath(); err != nil {
			return err
		}
	}
	if err := acquirePIDFile(pidPath); err != nil {
		return err
	}
	defer func() { _ = RemovePIDFile(pidPath) }()

	paths := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", arg, err)
		}
		paths = append(paths, abs)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.EventLogPath), 0o700); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	journal, err := eventlog.Open(cfg.EventLogPath)
	if err != nil {
		return err
	}
	defer func() { _ = journal.Close() }()

	bus := eventbus.New()
	recorder := eventlog.NewRecorder(journal, bus)

	saved, err := engine.LoadState(cfg.StatePath)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Config{
		Projects: engine.StaticProjects(paths),
		Bus:      bus,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := gitpool.NewHeadWatcher(bus, cfg.Debounce(), func(workdirPath string) {
		_ = eng.ScheduleActiveContextUpdate(ctx, gitpool.SavedState{})
	})
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Keep the watch set glued to pool membership: every finished
	// reconciliation re-syncs it.
	sub := bus.Subscribe()
	go func() {
		for evt := range sub {
			if evt.Kind == eventbus.KindUpdateFinished {
				watcher.Sync(eng.Pool().Workdirs())
			}
		}
	}()

	if err := eng.Start(ctx, saved); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "focal: tracking %d project(s), %d pooled workdir(s)\n", len(paths), eng.Pool().Size())
	if dir := eng.ActiveWorkdir(); dir != "" {
		fmt.Fprintf(out, "focal: active workdir %s\n", dir)
	}

	<-ctx.Done()

	// Persist the last active workdir so the next session restores it.
	if dir := eng.ActiveWorkdir(); dir != "" {
		if err := engine.SaveState(cfg.StatePath, gitpool.SavedState{ActiveRepositoryPath: dir}); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "focal: save state: %v\n", err)
		}
	}

	bus.Unsubscribe(sub)
	eng.Teardown()
	recorder.Stop()
	return nil
}
