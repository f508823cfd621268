package main

import (
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/zoobzio/moodrank/internal/catalog"
	"github.com/zoobzio/moodrank/internal/telemetry"
	"go.uber.org/zap"
)

func newRankCmd(a *app) *cobra.Command {
	var (
		file  string
		moods []string
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a catalog file and print the result as JSON",
		Long: `Rank the candidates of a YAML or JSON catalog file.

Moods given with -m replace the catalog's own moods.

Example catalog:
  moods: [Cozy]
  candidates:
    - id: stardew
      title: Stardew Valley
      description: Farm, fish and befriend a small town.
      matchedMoods: [Cozy]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := catalog.Load(file)
			if err != nil {
				return err
			}
			if len(moods) == 0 {
				moods = c.Moods
			}

			stop := telemetry.NewBridge(a.log, nil).Attach()
			defer stop()

			rec, err := newRecommender(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			resp := rec.Rerank(cmd.Context(), moods, c.Candidates)
			a.log.Info("ranked catalog",
				zap.String("file", file),
				zap.String("stage", resp.Stage.String()),
				zap.Int("items", len(resp.Items)),
			)

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog file (YAML or JSON)")
	cmd.Flags().StringSliceVarP(&moods, "mood", "m", nil, "mood to rank for (repeatable)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
