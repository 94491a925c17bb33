package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/glyph-controller/internal/config"
	"github.com/danielpatrickdp/glyph-controller/internal/replay"
	"github.com/danielpatrickdp/glyph-controller/internal/state"
)

// #region main

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := config.Default()
	defaults.ApplyEnv(os.LookupEnv)

	var (
		dbPath      string
		outPath     string
		configPath  string
		description string
		last        int
	)
	cmd := &cobra.Command{
		Use:           "fixture-export",
		Short:         "Export persisted ticks as a replay fixture",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			f, err := export(dbPath, last, description)
			if err != nil {
				return err
			}
			if configPath != "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				pinConfig(f, cfg)
			}
			if err := replay.WriteFixture(outPath, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote fixture to %s (%d steps, %d expectations)\n",
				outPath, len(f.Steps), len(f.Expected))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", defaults.DBPath, "path to the controller database")
	cmd.Flags().StringVar(&outPath, "out", "", "output fixture path (YAML)")
	cmd.Flags().StringVar(&configPath, "config", "", "controller config whose thresholds are pinned into the fixture")
	cmd.Flags().StringVar(&description, "description", "", "fixture description")
	cmd.Flags().IntVar(&last, "last", 50, "number of most recent ticks to export")
	return cmd
}

// #endregion main

// #region extract

func export(dbPath string, last int, description string) (*replay.Fixture, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open db %s: %w", dbPath, err)
	}
	store, err := state.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	snaps, err := store.ListSnapshots(last)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	decisions, err := store.ListDecisions(last)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	if description == "" {
		description = fmt.Sprintf("export of %d ticks from %s", len(snaps), dbPath)
	}
	return replay.ExportFixture(snaps, decisions, description)
}

// pinConfig records the thresholds the ticks were decided under, so the
// fixture replays identically against future defaults.
func pinConfig(f *replay.Fixture, cfg config.Config) {
	base := cfg.Decision.BaseThreshold
	raise := cfg.Decision.HysteresisRaise
	limit := cfg.Decision.RepeatLimit
	cooldown := cfg.Gate.Cooldown
	f.Config = replay.FixtureConfig{
		BaseThreshold:   &base,
		HysteresisRaise: &raise,
		RepeatLimit:     &limit,
		Cooldown:        &cooldown,
	}
}

// #endregion extract
