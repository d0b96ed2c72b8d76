package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"stemgen/internal/engine"
	"stemgen/internal/pipeline"
	"stemgen/internal/quality"
)

func newSeparateCommand(ctx *commandContext) *cobra.Command {
	var engineFlag string
	var skipExisting bool
	var noFallback bool

	cmd := &cobra.Command{
		Use:   "separate FILE",
		Short: "Separate one audio file into stems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			session, err := ctx.openSession(cmd.Context(), filepath.Dir(path))
			if err != nil {
				return err
			}
			defer session.Close()

			fallback := session.cfg.Pipeline.QualityFallback && !noFallback
			outcome, err := session.pipeline.Separate(cmd.Context(), path, pipeline.Options{
				Engine:          engineFlag,
				SkipIfExisting:  skipExisting,
				QualityFallback: fallback,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !outcome.Result.Success {
				return fmt.Errorf("separation failed on %s: %s",
					outcome.Result.EngineName, outcome.Result.ErrMessage)
			}
			fmt.Fprintf(out, "Separated with %s into %s\n", outcome.Result.EngineName, outcome.OutputDir)
			if outcome.FellBack {
				fmt.Fprintln(out, "Quality fallback reprocessed this track on an alternate engine.")
			}
			if len(outcome.Scores) > 0 {
				rows := make([][]string, 0, len(outcome.Scores))
				for _, name := range engine.StemNames {
					score, ok := outcome.Scores[name]
					if !ok {
						continue
					}
					rows = append(rows, []string{
						name,
						fmt.Sprintf("%.1f dB", score),
						quality.Label(score),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Stem", "Score", "Quality"},
					rows,
					1,
				))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&engineFlag, "engine", pipeline.EngineAuto, "Engine to use (demucs, lalal, auto)")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Skip when all four stems already exist")
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Disable the quality fallback hop")
	return cmd
}
