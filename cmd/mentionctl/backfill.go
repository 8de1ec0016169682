package main

import (
	"github.com/spacesedan/brandpulse/internal/sentiment"
	"github.com/spf13/cobra"
)

func newBackfillCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Score stored posts that have no sentiment yet",
		Long:  "Re-annotates stored posts whose sentiment is missing, skipping manual overrides and posts without text.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := sentiment.NewBackfill(a.Posts, a.Gateway, limit).Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 500, "maximum posts to process")
	return cmd
}
