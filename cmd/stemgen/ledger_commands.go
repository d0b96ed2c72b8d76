package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"stemgen/internal/engine"
	"stemgen/internal/ledger"
	"stemgen/internal/outputs"
	"stemgen/internal/quality"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the job ledger",
	}
	ledgerCmd.AddCommand(newLedgerStatusCommand(ctx))
	ledgerCmd.AddCommand(newLedgerHistoryCommand(ctx))
	return ledgerCmd
}

func newLedgerStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize tracks, jobs, and average stem quality",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Tracks", fmt.Sprintf("%d", stats.Tracks)},
				{"Jobs", fmt.Sprintf("%d", stats.Jobs)},
				{"Completed", fmt.Sprintf("%d", stats.CompletedJobs)},
				{"Failed", fmt.Sprintf("%d", stats.FailedJobs)},
				{"In flight", fmt.Sprintf("%d", stats.PendingJobs)},
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Metric", "Value"},
				rows,
				1,
			))

			if len(stats.AverageScores) > 0 {
				scoreRows := make([][]string, 0, len(stats.AverageScores))
				for _, name := range engine.StemNames {
					avg, ok := stats.AverageScores[name]
					if !ok {
						continue
					}
					scoreRows = append(scoreRows, []string{
						name, fmt.Sprintf("%.1f dB", avg), quality.Label(avg),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Stem", "Average", "Quality"},
					scoreRows,
					1,
				))
			}
			return nil
		},
	}
}

func newLedgerHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history FILE",
		Short: "Show every separation attempt recorded for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			hash, err := outputs.ContentHash(path)
			if err != nil {
				return err
			}

			store, err := ctx.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			track, err := store.TrackByHash(cmd.Context(), hash)
			if errors.Is(err, ledger.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No ledger record for this file.")
				return nil
			}
			if err != nil {
				return err
			}

			jobs, err := store.JobsForTrack(cmd.Context(), track.ID)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				detail := job.ErrorMessage
				if job.Status == ledger.StatusCompleted {
					scores, err := store.QualityScores(cmd.Context(), job.ID)
					if err != nil {
						return err
					}
					detail = formatScores(scores)
				}
				completed := ""
				if !job.CompletedAt.IsZero() {
					completed = job.CompletedAt.Local().Format("2006-01-02 15:04:05")
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", job.ID),
					job.Engine,
					job.Status,
					completed,
					detail,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s - %s (%s)\n", track.Artist, track.Title, hash[:8])
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Job", "Engine", "Status", "Finished", "Detail"},
				rows,
				0,
			))
			return nil
		},
	}
}

func formatScores(scores map[string]float64) string {
	if len(scores) == 0 {
		return ""
	}
	parts := ""
	for _, name := range engine.StemNames {
		score, ok := scores[name]
		if !ok {
			continue
		}
		if parts != "" {
			parts += "  "
		}
		parts += fmt.Sprintf("%s %.1f", name, score)
	}
	return parts
}
