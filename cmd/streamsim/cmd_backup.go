package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/streamsim/internal/backup"
	"github.com/nvandessel/streamsim/internal/pathutil"
	"github.com/nvandessel/streamsim/internal/simerr"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage dataset backups",
		Long: `Create, list, verify and prune dataset backups.

A backup holds every row of every table, deleted rows included. 'run
--full-reset' writes one automatically when reset.backup is enabled.`,
	}

	cmd.AddCommand(
		newBackupCreateCmd(),
		newBackupListCmd(),
		newBackupVerifyCmd(),
		newBackupPruneCmd(),
	)
	return cmd
}

func newBackupCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Archive the current dataset",
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

			a := backup.NewArchiver(s, cfg.Reset.BackupDir, cfg.Reset.Keep, backup.WithLogger(newLogger(cmd, cfg)))
			path, err := a.Archive(cmd.Context())
			if err != nil {
				return err
			}
			header, err := backup.ReadHeader(path)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"path":   path,
					"header": header,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s (%d users, %d posts, %d events)\n",
				path, header.Users, header.Posts, header.Events)
			return nil
		},
	}
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all backups with metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir := cfg.Reset.BackupDir

			backups, err := backup.List(dir)
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}

			if jsonOutput(cmd) {
				type jsonEntry struct {
					Path      string         `json:"path"`
					Size      int64          `json:"size_bytes"`
					CreatedAt string         `json:"created_at"`
					Header    *backup.Header `json:"header,omitempty"`
				}
				entries := make([]jsonEntry, 0, len(backups))
				for _, b := range backups {
					entries = append(entries, jsonEntry{
						Path:      b.Path,
						Size:      b.Size,
						CreatedAt: b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
						Header:    b.Header,
					})
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"backups":     entries,
					"total_count": len(entries),
					"directory":   dir,
				})
			}

			w := cmd.OutOrStdout()
			if len(backups) == 0 {
				fmt.Fprintf(w, "No backups found in %s\n", dir)
				return nil
			}

			fmt.Fprintf(w, "Backups in %s:\n", dir)
			var totalSize int64
			for _, b := range backups {
				totalSize += b.Size
				lastDay := "-"
				users, posts, events := 0, 0, 0
				if h := b.Header; h != nil {
					users, posts, events = h.Users, h.Posts, h.Events
					if h.LastDay != "" {
						lastDay = h.LastDay
					}
				}
				fmt.Fprintf(w, "  %s  %s  through %s  %d users  %d posts  %d events  %s\n",
					b.CreatedAt.Format("2006-01-02 15:04"),
					formatBytes(b.Size),
					lastDay,
					users, posts, events,
					filepath.Base(b.Path),
				)
			}
			fmt.Fprintf(w, "Total: %d backups, %s\n", len(backups), formatBytes(totalSize))
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a backup file's checksum",
		Long: `Verify a backup file's checksum without restoring it. The file may be
given by name or by path but must live in the backup directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path, err := pathutil.Within(cfg.Reset.BackupDir, args[0])
			if err != nil {
				return err
			}
			if err := backup.VerifyChecksum(path); err != nil {
				return fmt.Errorf("backup %s is corrupt: %w", pathutil.RedactPath(path), err)
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]any{"path": path, "valid": true})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: checksum OK\n", filepath.Base(path))
			return nil
		},
	}
}

func newBackupPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old backups",
		Long: `Delete backups not kept by the retention rules. A backup survives if
either rule keeps it.

Examples:
  streamsim backup prune --keep 3
  streamsim backup prune --keep 1 --older-than 2w`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			keep, _ := cmd.Flags().GetInt("keep")
			olderThan, _ := cmd.Flags().GetString("older-than")

			if !cmd.Flags().Changed("keep") {
				keep = cfg.Reset.Keep
			}
			if keep <= 0 && olderThan == "" {
				return simerr.Configuration("backup.prune", "refusing to delete every backup: set --keep or --older-than")
			}
			policy := &backup.CompositePolicy{Policies: []backup.RetentionPolicy{&backup.CountPolicy{MaxCount: keep}}}
			if olderThan != "" {
				age, err := backup.ParseDuration(olderThan)
				if err != nil {
					return err
				}
				policy.Policies = append(policy.Policies, &backup.AgePolicy{MaxAge: age})
			}

			deleted, err := backup.ApplyRetention(cfg.Reset.BackupDir, policy)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]any{"deleted": deleted})
			}
			w := cmd.OutOrStdout()
			for _, d := range deleted {
				fmt.Fprintf(w, "Removed %s\n", filepath.Base(d))
			}
			fmt.Fprintf(w, "Pruned %d backups\n", len(deleted))
			return nil
		},
	}
	cmd.Flags().Int("keep", 0, "Number of newest backups to keep (default reset.keep)")
	cmd.Flags().String("older-than", "", "Also keep backups younger than this (e.g. 30d, 2w, 72h)")
	return cmd
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1fGB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1fMB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1fKB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%dB", b)
	}
}
