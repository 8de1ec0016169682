package main

import (
	"context"
	"errors"
	"os/user"

	"github.com/spacesedan/brandpulse/config"
	"github.com/spacesedan/brandpulse/internal/clients"
	"github.com/spacesedan/brandpulse/internal/db"
	"github.com/spacesedan/brandpulse/internal/sentiment"
	"github.com/spf13/cobra"
)

func newOverrideCmd() *cobra.Command {
	var postID, label, actor, reason string

	cmd := &cobra.Command{
		Use:   "override",
		Short: "Set a post's sentiment by hand",
		Long:  "Writes a manual sentiment label and a change-log entry. Manual labels are never replaced by automated scoring.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if postID == "" || label == "" {
				return errors.New("--post and --sentiment are required")
			}
			if actor == "" {
				actor = currentUser()
			}

			pg, err := connect(cmd.Context(), loadConfig())
			if err != nil {
				return err
			}
			defer pg.Close()

			change, err := sentiment.NewOverrideService(db.NewPostRepository(pg.DB)).
				Override(cmd.Context(), postID, label, actor, reason)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), change)
		},
	}

	cmd.Flags().StringVar(&postID, "post", "", "stored post id")
	cmd.Flags().StringVar(&label, "sentiment", "", "positive|neutral|negative")
	cmd.Flags().StringVar(&actor, "actor", "", "who made the change (default: current OS user)")
	cmd.Flags().StringVar(&reason, "reason", "", "free-text reason kept in the change log")
	return cmd
}

func connect(ctx context.Context, cfg config.Config) (*clients.Postgres, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return clients.NewPostgres(ctx, cfg.DatabaseURL)
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "mentionctl"
}
