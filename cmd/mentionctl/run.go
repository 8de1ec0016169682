package main

import (
	"errors"
	"strings"

	"github.com/spacesedan/brandpulse/internal/models"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var brandID, groupID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one collection for a brand and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(brandID) == "" {
				return errors.New("--brand is required")
			}
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var summary models.RunSummary
			if groupID != "" {
				summary, err = a.Orchestrator.RunGroup(cmd.Context(), brandID, groupID)
			} else {
				summary, err = a.Orchestrator.RunForBrand(cmd.Context(), brandID)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&brandID, "brand", "", "brand identifier")
	cmd.Flags().StringVar(&groupID, "group", "", "run a single keyword group")
	return cmd
}
