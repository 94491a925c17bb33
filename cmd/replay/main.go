package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/glyph-controller/internal/config"
	"github.com/danielpatrickdp/glyph-controller/internal/logging"
	"github.com/danielpatrickdp/glyph-controller/internal/replay"
	"github.com/danielpatrickdp/glyph-controller/internal/state"
)

// errMismatch makes the process exit 1 after the report has been printed.
var errMismatch = errors.New("replayed decisions differ from expectations")

// #region main

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errMismatch) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

type options struct {
	configPath string
	jsonOut    bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "replay",
		Short:         "Replay entropy sequences through the decision controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "controller config YAML (defaults apply when empty)")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "output the report as JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every decision")

	root.AddCommand(newFixtureCmd(opts), newDBCmd(opts))
	return root
}

func (o *options) replayOptions() (replay.Options, error) {
	ro := replay.DefaultOptions()
	if !o.verbose {
		return ro, nil
	}
	logger, err := logging.NewLogger("info", "console")
	if err != nil {
		return ro, err
	}
	ro.Logger = logger
	return ro, nil
}

// #endregion main

// #region fixture-mode

func newFixtureCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fixture <path>",
		Short: "Replay a YAML or JSON fixture and check its expected kinds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := replay.LoadFixture(args[0])
			if err != nil {
				return err
			}
			return runFixture(cmd.OutOrStdout(), f, opts)
		},
	}
}

// #endregion fixture-mode

// #region db-mode

func newDBCmd(opts *options) *cobra.Command {
	var dbPath string
	var last int
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Replay persisted snapshots and compare with the recorded decisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("open db %s: %w", dbPath, err)
			}
			store, err := state.NewStore(dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			snaps, err := store.ListSnapshots(last)
			if err != nil {
				return err
			}
			decisions, err := store.ListDecisions(last)
			if err != nil {
				return err
			}
			f, err := replay.ExportFixture(snaps, decisions, fmt.Sprintf("replay of %s", dbPath))
			if err != nil {
				return err
			}
			return runFixture(cmd.OutOrStdout(), f, opts)
		},
	}
	defaults := config.Default()
	defaults.ApplyEnv(os.LookupEnv)
	cmd.Flags().StringVar(&dbPath, "db", defaults.DBPath, "path to the controller database")
	cmd.Flags().IntVar(&last, "last", 200, "number of most recent ticks to replay")
	return cmd
}

// #endregion db-mode

// #region report

func runFixture(w io.Writer, f *replay.Fixture, opts *options) error {
	base, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	ro, err := opts.replayOptions()
	if err != nil {
		return err
	}
	if ro.Logger != nil {
		defer func() { _ = ro.Logger.Sync() }()
	}

	report, err := replay.RunFixture(f, base, ro)
	if err != nil {
		return err
	}

	if opts.jsonOut {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		fmt.Fprintln(w, string(data))
	} else {
		printReport(w, f, report)
	}
	if !report.Passed() {
		return errMismatch
	}
	return nil
}

func printReport(w io.Writer, f *replay.Fixture, report replay.Report) {
	if f.Description != "" {
		fmt.Fprintf(w, "%s\n\n", f.Description)
	}
	fmt.Fprintf(w, "%-12s  %7s  %7s  %8s  %-17s  %-17s\n", "Step", "Entropy", "Thresh", "Margin", "Selected", "Chosen")
	fmt.Fprintf(w, "%-12s+-%7s+-%7s+-%8s+-%-17s+-%-17s\n", "------------", "-------", "-------", "--------", "-----------------", "-----------------")
	for _, r := range report.Results {
		rec := r.Record
		fmt.Fprintf(w, "%-12s  %7.4f  %7.4f  %+8.4f  %-17s  %-17s\n",
			r.StepID, rec.Entropy, rec.EffectiveThreshold, rec.Margin, rec.Selected, rec.Chosen)
	}

	s := report.Summary
	fmt.Fprintf(w, "\n%d steps, %d dispatched, %d downgrades, %d loop breaks, longest run %d, max margin %+.4f\n",
		s.TotalSteps, s.Dispatched, s.Downgrades, s.LoopBreaks, s.LongestRun, s.MaxMargin)

	if len(f.Expected) == 0 {
		fmt.Fprintln(w, "no expectations")
		return
	}
	if report.Passed() {
		fmt.Fprintf(w, "PASS: %d/%d steps match\n", len(f.Expected), len(f.Expected))
		return
	}
	fmt.Fprintf(w, "FAIL: %d mismatches\n", len(report.Mismatches))
	for _, m := range report.Mismatches {
		fmt.Fprintf(w, "  %s %s: expected %s, got %s (%s)\n", m.StepID, m.Field, m.Expected, m.Actual, m.Reason)
	}
}

// #endregion report
