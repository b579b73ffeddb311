package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/streamsim/internal/backup"
	"github.com/nvandessel/streamsim/internal/cycle"
	"github.com/nvandessel/streamsim/internal/ledger"
	"github.com/nvandessel/streamsim/internal/logging"
	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate the next day",
		Long: `Simulate one day and commit it atomically.

The day simulated is the day after the latest one in the audit ledger, or the
epoch when the ledger is empty or --full-reset is given. A full reset wipes
every table and seeds a fresh population; when reset.backup is enabled the
existing dataset is archived first.

Examples:
  streamsim run
  streamsim run --seed 42
  streamsim run --full-reset --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			root, _ := cmd.Flags().GetString("root")
			fullReset, _ := cmd.Flags().GetBool("full-reset")

			var opts cycle.Options
			opts.FullReset = fullReset
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetUint64("seed")
				opts.Seed = &seed
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			logger := newLogger(cmd, cfg)
			trace := logging.NewCycleTrace(store.DataDir(root), cfg.Logging.Level)
			defer trace.Close()

			runOpts := []cycle.Option{cycle.WithLogger(logger), cycle.WithTrace(trace)}
			if cfg.Reset.Backup {
				archiver := backup.NewArchiver(s, cfg.Reset.BackupDir, cfg.Reset.Keep, backup.WithLogger(logger))
				runOpts = append(runOpts, cycle.WithArchiver(archiver))
			}

			res, err := cycle.New(s, cfg, runOpts...).Run(ctx, opts)
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printRunResult(cmd, res)
			return nil
		},
	}

	cmd.Flags().Bool("full-reset", false, "Discard all history and restart at the epoch")
	cmd.Flags().Uint64("seed", 0, "Generator seed (default: random, recorded in the ledger)")
	return cmd
}

func printRunResult(cmd *cobra.Command, res *cycle.Result) {
	out := cmd.OutOrStdout()
	if res.Archive != "" {
		fmt.Fprintf(out, "Archived previous dataset to %s\n", res.Archive)
	}
	for _, table := range models.Tables {
		c := res.Counts[table]
		fmt.Fprintf(out, "%-7s +%d ~%d -%d", table, c.Inserted, c.Updated, c.Deleted)
		if ir, ok := res.Inserted[table]; ok {
			fmt.Fprintf(out, "  (ids %s..%s)", ir.First, ir.Last)
		}
		fmt.Fprintln(out)
	}
	kind := "Ingestion"
	if res.Reset {
		kind = "Full reset"
	}
	fmt.Fprintf(out, "%s for simulated date %s complete (seed %d, run %s)\n",
		kind, ledger.FormatDay(res.Day), res.Seed, res.RunID)
}
