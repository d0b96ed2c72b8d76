package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"stemgen/internal/scanner"
)

const timeRounding = 100 * time.Millisecond

func newScanCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan DIR...",
		Short: "List library tracks in batch processing order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracks, err := scanDirs(ctx, cmd, args)
			if err != nil {
				return err
			}
			printTracks(cmd, tracks)
			return nil
		},
	}
	return cmd
}

func newPendingCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending DIR",
		Short: "List tracks that still lack separated stems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			session, err := ctx.openSession(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer session.Close()

			tracks, err := session.processor.PendingTracks(cmd.Context())
			if err != nil {
				return err
			}
			printTracks(cmd, tracks)
			return nil
		},
	}
	return cmd
}

func scanDirs(ctx *commandContext, cmd *cobra.Command, dirs []string) ([]scanner.Track, error) {
	roots := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		root, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	scan := scanner.New(roots[0], cfg.Scanner.Recursive, cfg.Scanner.PriorityCrates, logger)
	return scan.ScanAll(cmd.Context(), roots...)
}

func printTracks(cmd *cobra.Command, tracks []scanner.Track) {
	out := cmd.OutOrStdout()
	if len(tracks) == 0 {
		fmt.Fprintln(out, "No tracks found.")
		return
	}
	rows := make([][]string, 0, len(tracks))
	for _, track := range tracks {
		bpm := ""
		if track.BPM > 0 {
			bpm = fmt.Sprintf("%.0f", track.BPM)
		}
		rows = append(rows, []string{
			track.Priority.String(),
			track.DisplayName(),
			track.Genre,
			bpm,
			fmt.Sprintf("%.1f MB", float64(track.Size)/(1024*1024)),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Priority", "Track", "Genre", "BPM", "Size"},
		rows,
		3, 4,
	))
	fmt.Fprintf(out, "%d tracks\n", len(tracks))
}
