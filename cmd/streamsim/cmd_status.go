package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/streamsim/internal/ledger"
	"github.com/nvandessel/streamsim/internal/models"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the audit ledger, one line per simulated day",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			last, _ := cmd.Flags().GetInt("last")

			s, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.Ledger(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read ledger: %w", err)
			}
			days, err := ledger.Summarize(entries)
			if err != nil {
				return err
			}
			if last > 0 && len(days) > last {
				days = days[len(days)-last:]
			}

			if jsonOutput(cmd) {
				type jsonDay struct {
					Day    string                   `json:"sim_day"`
					RunID  string                   `json:"run_id"`
					Seed   uint64                   `json:"seed"`
					Tables map[string]models.Counts `json:"tables"`
				}
				out := make([]jsonDay, 0, len(days))
				for _, d := range days {
					out = append(out, jsonDay{Day: ledger.FormatDay(d.Day), RunID: d.RunID, Seed: d.Seed, Tables: d.Tables})
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"driver": s.Driver(),
					"days":   out,
				})
			}

			w := cmd.OutOrStdout()
			if len(days) == 0 {
				fmt.Fprintln(w, "No simulated days yet. Run 'streamsim run' to start.")
				return nil
			}
			for _, d := range days {
				fmt.Fprintln(w, d.String())
			}
			fmt.Fprintf(w, "Latest simulated day: %s\n", ledger.FormatDay(days[len(days)-1].Day))
			return nil
		},
	}
	cmd.Flags().Int("last", 0, "Show only the last N days")
	return cmd
}
