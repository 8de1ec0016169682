package main

import (
	"errors"

	"github.com/spacesedan/brandpulse/internal/clients"
	"github.com/spacesedan/brandpulse/internal/db"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	var (
		brandID string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent run summaries from the run ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if brandID == "" {
				return errors.New("--brand is required")
			}
			cfg := loadConfig()
			if cfg.RunLedgerTable == "" {
				return errors.New("RUN_LEDGER_TABLE is not configured")
			}
			client, err := clients.NewDynamoDBClient(cmd.Context(), cfg.AWSRegion, cfg.AWSEndpoint)
			if err != nil {
				return err
			}

			runs, err := db.NewRunLedger(client, cfg.RunLedgerTable).RecentRuns(cmd.Context(), brandID, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().StringVar(&brandID, "brand", "", "brand identifier")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}
