package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/glyph-controller/internal/config"
	"github.com/danielpatrickdp/glyph-controller/internal/feed"
	"github.com/danielpatrickdp/glyph-controller/internal/state"
)

// #region main

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	dbPath  string
	jsonOut bool
}

func newRootCmd() *cobra.Command {
	defaults := config.Default()
	defaults.ApplyEnv(os.LookupEnv)
	opts := &options{}

	root := &cobra.Command{
		Use:           "inspect",
		Short:         "Inspect persisted decisions and events, or tail the live feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", defaults.DBPath, "path to the controller database")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "output as JSON instead of table")

	root.AddCommand(
		newDecisionsCmd(opts),
		newEventsCmd(opts),
		newSnapshotsCmd(opts),
		newCountsCmd(opts),
		newTailCmd(opts, defaults.FeedAddr),
	)
	return root
}

func withStore(opts *options, fn func(*state.Store) error) error {
	if _, err := os.Stat(opts.dbPath); err != nil {
		return fmt.Errorf("open db %s: %w", opts.dbPath, err)
	}
	store, err := state.NewStore(opts.dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// #endregion main

// #region decisions

func newDecisionsCmd(opts *options) *cobra.Command {
	var last int
	var id string
	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List recent decisions, or show one with --id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(opts, func(store *state.Store) error {
				out := cmd.OutOrStdout()
				if id != "" {
					rec, err := store.GetDecision(id)
					if err != nil {
						return err
					}
					if opts.jsonOut {
						return printJSON(out, rec)
					}
					printDecisionDetail(out, rec)
					return nil
				}
				recs, err := store.ListDecisions(last)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), "no decisions found")
					return nil
				}
				// store returns newest first; print chronologically
				slices.Reverse(recs)
				if opts.jsonOut {
					return printJSON(out, recs)
				}
				printDecisionTable(out, recs)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent decisions")
	cmd.Flags().StringVar(&id, "id", "", "show a single decision")
	return cmd
}

func printDecisionTable(w io.Writer, recs []state.DecisionRecord) {
	fmt.Fprintf(w, "%-8s  %6s  %7s  %7s  %8s  %-17s  %-17s  %-5s  %s\n",
		"ID", "Tick", "Entropy", "Thresh", "Margin", "Selected", "Chosen", "Flags", "Outcome")
	fmt.Fprintf(w, "%-8s+-%6s+-%7s+-%7s+-%8s+-%-17s+-%-17s+-%-5s+-%s\n",
		"--------", "------", "-------", "-------", "--------", "-----------------", "-----------------", "-----", "--------")
	for _, r := range recs {
		fmt.Fprintf(w, "%-8s  %6d  %7.4f  %7.4f  %+8.4f  %-17s  %-17s  %-5s  %s\n",
			shortID(r.ID), r.Tick, r.Entropy, r.EffectiveThreshold, r.Margin,
			r.Selected, r.Chosen, flags(r), r.Outcome)
	}
}

// flags marks stale (S), raised threshold (H), loop break (L) and downgrade (D).
func flags(r state.DecisionRecord) string {
	f := ""
	for _, m := range []struct {
		set  bool
		mark string
	}{
		{r.StaleSnapshot, "S"},
		{r.HysteresisRaised, "H"},
		{r.LoopBroken, "L"},
		{r.Downgraded, "D"},
	} {
		if m.set {
			f += m.mark
		}
	}
	if f == "" {
		return "-"
	}
	return f
}

func printDecisionDetail(w io.Writer, r state.DecisionRecord) {
	fmt.Fprintf(w, "Decision:   %s\n", r.ID)
	fmt.Fprintf(w, "Tick:       %d at %s\n", r.Tick, r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Entropy:    %.4f (coherence %.4f, stale %t)\n", r.Entropy, r.Coherence, r.StaleSnapshot)
	fmt.Fprintf(w, "Threshold:  %.4f (raised %t), margin %+.4f\n", r.EffectiveThreshold, r.HysteresisRaised, r.Margin)
	fmt.Fprintf(w, "Selected:   %s (score %.1f, repetition %d)\n", r.Selected, r.Score, r.RepetitionCount)
	fmt.Fprintf(w, "Chosen:     %s (downgraded %t, loop broken %t)\n", r.Chosen, r.Downgraded, r.LoopBroken)
	fmt.Fprintf(w, "Severity:   %s  Pattern: %s\n", r.Severity, r.Pattern)
	fmt.Fprintf(w, "Outcome:    %s\n", r.Outcome)
	if r.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", r.Error)
	}
	fmt.Fprintf(w, "Rationale:  %s\n", r.Rationale)
}

// #endregion decisions

// #region events

func newEventsCmd(opts *options) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent loop breaks, downgrades and handler failures",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(opts, func(store *state.Store) error {
				events, err := store.ListEvents(last)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, events)
				}
				fmt.Fprintf(out, "%6s  %-16s  %-17s  %-20s  %s\n", "Tick", "Event", "Kind", "Time", "Detail")
				for _, e := range events {
					fmt.Fprintf(out, "%6d  %-16s  %-17s  %-20s  %s\n",
						e.Tick, e.EventType, e.Kind, e.CreatedAt.Format("2006-01-02T15:04:05Z"), e.Detail)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent events")
	return cmd
}

// #endregion events

// #region snapshots

func newSnapshotsCmd(opts *options) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List recent metric snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(opts, func(store *state.Store) error {
				snaps, err := store.ListSnapshots(last)
				if err != nil {
					return err
				}
				slices.Reverse(snaps)
				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, snaps)
				}
				fmt.Fprintf(out, "%6s  %7s  %9s  %s\n", "Tick", "Entropy", "Coherence", "Time")
				for _, s := range snaps {
					fmt.Fprintf(out, "%6d  %7.4f  %9.4f  %s\n",
						s.Tick, s.Entropy, s.Coherence, s.Timestamp.Format("2006-01-02T15:04:05Z"))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent snapshots")
	return cmd
}

// #endregion snapshots

// #region counts

type countsOutput struct {
	Kinds            map[string]int    `json:"kinds"`
	LastIntervention *time.Time        `json:"last_intervention,omitempty"`
	Checkpoint       *state.Checkpoint `json:"checkpoint,omitempty"`
}

func newCountsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Summarize dispatched kinds and the saved checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(opts, func(store *state.Store) error {
				counts, err := store.KindCounts()
				if err != nil {
					return err
				}
				last, err := store.LastIntervention()
				if err != nil {
					return err
				}
				cp, ok, err := store.LoadCheckpoint()
				if err != nil {
					return err
				}

				res := countsOutput{Kinds: make(map[string]int, len(counts))}
				for k, n := range counts {
					res.Kinds[string(k)] = n
				}
				if !last.IsZero() {
					res.LastIntervention = &last
				}
				if ok {
					res.Checkpoint = &cp
				}

				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, res)
				}
				keys := make([]string, 0, len(res.Kinds))
				for k := range res.Kinds {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "%-20s %d\n", k, res.Kinds[k])
				}
				if res.LastIntervention != nil {
					fmt.Fprintf(out, "\nLast intervention: %s\n", res.LastIntervention.Format(time.RFC3339))
				}
				if res.Checkpoint != nil {
					fmt.Fprintf(out, "Checkpoint: tick %d, last kind %s x%d\n",
						cp.Tick, cp.LastKind, cp.ConsecutiveSame)
				}
				return nil
			})
		},
	}
}

// #endregion counts

// #region tail

func newTailCmd(opts *options, defaultAddr string) *cobra.Command {
	var addr string
	var interventionsOnly bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream decisions from a running controller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return tail(ctx, cmd.OutOrStdout(), addr, interventionsOnly, opts.jsonOut)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "decision feed address")
	cmd.Flags().BoolVar(&interventionsOnly, "interventions", false, "only show dispatched interventions")
	return cmd
}

func tail(ctx context.Context, w io.Writer, addr string, interventionsOnly, jsonOut bool) error {
	client, err := feed.NewClient(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	stream, err := client.Subscribe(ctx, interventionsOnly)
	if err != nil {
		return err
	}
	for {
		rec, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if jsonOut {
			if err := json.NewEncoder(w).Encode(rec); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(w, "%s  tick %-6d  entropy %.4f  margin %+.4f  %-17s -> %-17s %s\n",
			rec.Timestamp.Format("15:04:05"), rec.Tick, rec.Entropy, rec.Margin,
			rec.Selected, rec.Chosen, flags(rec))
	}
}

// #endregion tail

// #region output

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
