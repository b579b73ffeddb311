package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/streamsim/internal/simerr"
	"github.com/nvandessel/streamsim/internal/store"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the persisted dataset against its invariants",
		Long: `Load every row and check the temporal and referential invariants:
timestamps in order, posts owned by users living at creation, events
referencing rows living at the event, likes preceded by a view, and one
ledger row per table for every contiguous day.

Repeated (user, post, type) events are reported as a count; they are allowed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
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
			report := store.ValidateDataset(ds)

			if jsonOutput(cmd) {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Checked %d users, %d posts, %d events over %d days\n",
					report.Users, report.Posts, report.Events, report.Days)
				fmt.Fprintf(w, "Duplicate events: %d\n", report.Duplicates)
				for _, e := range report.Errors {
					fmt.Fprintf(w, "  %s\n", e)
				}
				if report.OK() {
					fmt.Fprintln(w, "Dataset is valid")
				}
			}

			if !report.OK() {
				return simerr.Consistency("verify", "%d invariant violations", len(report.Errors))
			}
			return nil
		},
	}
}
