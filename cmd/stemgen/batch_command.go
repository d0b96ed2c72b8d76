package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"stemgen/internal/batch"
	"stemgen/internal/pipeline"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var engineFlag string
	var limit int
	var resume bool
	var noFallback bool

	cmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Separate every audio file under a directory in priority order",
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

			opts := batch.Options{
				Engine:          engineFlag,
				Limit:           limit,
				SkipIfExisting:  resume,
				QualityFallback: session.cfg.Pipeline.QualityFallback && !noFallback,
			}

			var bar *progressbar.ProgressBar
			if isatty.IsTerminal(os.Stderr.Fd()) {
				opts.Progress = func(p batch.Progress) {
					if bar == nil {
						bar = progressbar.NewOptions(p.Total,
							progressbar.OptionSetWriter(os.Stderr),
							progressbar.OptionSetDescription("separating"),
							progressbar.OptionShowCount(),
						)
					}
					bar.Describe(p.Current.DisplayName())
					_ = bar.Add(1)
				}
			}

			var report batch.Report
			if resume {
				report, err = session.processor.Resume(cmd.Context(), opts)
			} else {
				report, err = session.processor.ProcessDirectory(cmd.Context(), opts)
			}
			if bar != nil {
				_ = bar.Finish()
				fmt.Fprintln(os.Stderr)
			}
			if err != nil {
				return err
			}

			printReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&engineFlag, "engine", pipeline.EngineAuto, "Engine to use (demucs, lalal, auto)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Process at most N tracks (0 = no limit)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Skip tracks whose stems already exist")
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Disable the quality fallback hop")
	return cmd
}

func printReport(cmd *cobra.Command, report batch.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processed %d tracks in %s: %d completed, %d skipped, %d failed\n",
		report.Total, report.Elapsed.Round(timeRounding), report.Completed, report.Skipped, report.Failed)

	if len(report.Errors) == 0 {
		return
	}
	rows := make([][]string, 0, len(report.Errors))
	for _, trackErr := range report.Errors {
		rows = append(rows, []string{trackErr.Track.DisplayName(), trackErr.Message})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Track", "Error"},
		rows,
	))
}
