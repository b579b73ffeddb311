package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/streamsim/internal/export"
	"github.com/nvandessel/streamsim/internal/ledger"
	"github.com/nvandessel/streamsim/internal/store"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dataset as pipeline fixtures",
		Long: `Write users, posts, events and the audit ledger to one file per table.

With --day only the rows touched on that simulated day are written, in their
current state, along with the day's events and ledger rows.

Examples:
  streamsim export --out fixtures
  streamsim export --format jsonl --day 2100-01-03 --out fixtures/day3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			root, _ := cmd.Flags().GetString("root")
			formatName, _ := cmd.Flags().GetString("format")
			dayFlag, _ := cmd.Flags().GetString("day")
			out, _ := cmd.Flags().GetString("out")

			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(store.DataDir(root), "export")
			}

			s, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			ds, err := s.LoadDataset(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}
			if dayFlag != "" {
				day, err := ledger.ParseDay(dayFlag)
				if err != nil {
					return err
				}
				ds = ds.Day(day)
			}

			paths, err := export.Write(ds, out, format)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"format": format,
					"files":  paths,
					"users":  len(ds.Users),
					"posts":  len(ds.Posts),
					"events": len(ds.Events),
				})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Exported %d users, %d posts, %d events:\n", len(ds.Users), len(ds.Posts), len(ds.Events))
			for _, p := range paths {
				fmt.Fprintf(w, "  %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().String("format", string(export.FormatArrow), "Output format: arrow or jsonl")
	cmd.Flags().String("day", "", "Export only this simulated day (YYYY-MM-DD)")
	cmd.Flags().String("out", "", "Output directory (default <root>/.streamsim/export)")
	return cmd
}
