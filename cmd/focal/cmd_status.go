package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"focal/pkg/config"
	"focal/pkg/engine"
	"focal/pkg/eventbus"
	"focal/pkg/eventlog"
)

// statusConfig holds configuration for the status command.
type statusConfig struct {
	configPath string
	logPath    string
	tail       int
	kind       string
	workdir    string
}

// newStatusCmd creates the "focal status" subcommand.
func newStatusCmd() *cobra.Command {
	var cfg statusConfig

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the saved active context and recent events",
		Long:  "Displays the last saved active repository path and the most recent\nentries from the event journal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.configPath, "config", "", "config file (default ~/.focal/config.toml)")
	cmd.Flags().StringVar(&cfg.logPath, "log", "", "event journal (default from config)")
	cmd.Flags().IntVar(&cfg.tail, "tail", 20, "number of recent events to show")
	cmd.Flags().StringVar(&cfg.kind, "kind", "", "filter events by kind")
	cmd.Flags().StringVar(&cfg.workdir, "workdir", "", "filter events by working directory")

	return cmd
}

func runStatus(cmd *cobra.Command, sc statusConfig) error {
	cfgPath := sc.configPath
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

	out := cmd.OutOrStdout()

	saved, err := engine.LoadState(cfg.StatePath)
	if err != nil {
		return err
	}
	if saved.ActiveRepositoryPath != "" {
		fmt.Fprintf(out, "saved active repository: %s\n", saved.ActiveRepositoryPath)
	} else {
		fmt.Fprintln(out, "saved active repository: none")
	}

	logPath := sc.logPath
	if logPath == "" {
		logPath = cfg.EventLogPath
	}
	if _, err := os.Stat(logPath); err != nil {
		fmt.Fprintln(out, "event journal: none")
		return nil
	}

	journal, err := eventlog.Open(logPath)
	if err != nil {
		return err
	}
	defer func() { _ = journal.Close() }()

	records, err := journal.Query(cmd.Context(), eventlog.QueryOpts{
		Kind:    eventbus.Kind(sc.kind),
		Workdir: sc.workdir,
		Limit:   sc.tail,
	})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "event journal: empty")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTIME\tKIND\tWORKDIR")
	for _, rec := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			rec.Seq, rec.CreatedAt.Local().Format("15:04:05"), rec.Kind, rec.Workdir)
	}
	return w.Flush()
}
