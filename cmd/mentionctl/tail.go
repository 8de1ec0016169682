package main

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/spacesedan/brandpulse/internal/clients/kafka_client"
	"github.com/spf13/cobra"
)

func newTailCmd() *cobra.Command {
	var (
		brandID       string
		groupID       string
		fromBeginning bool
		limit         int
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow newly stored mentions from the mentions topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("--max must not be negative")
			}
			cfg := loadConfig()
			if cfg.KafkaBroker == "" {
				return errors.New("KAFKA_BROKER is not configured")
			}

			consumer, err := kafka_client.NewConsumer(kafka_client.KafkaConfig{
				Broker:        cfg.KafkaBroker,
				Topic:         cfg.KafkaMentionsTopic,
				GroupID:       groupID,
				FromBeginning: fromBeginning,
			})
			if err != nil {
				return err
			}
			defer consumer.Close()

			ctx := cmd.Context()
			messages := consumer.Messages(ctx)
			committer := consumer.Committer(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())

			printed := 0
			for limit == 0 || printed < limit {
				msg, err := messages.Next()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}

				event, err := kafka_client.DecodeMention(msg)
				if err != nil {
					slog.Warn("[mentionctl] Skipping undecodable event", slog.String("error", err.Error()))
				} else if brandID == "" || event.BrandID == brandID {
					if err := enc.Encode(event); err != nil {
						return err
					}
					printed++
				}

				if err := committer.Commit(msg); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&brandID, "brand", "", "only print mentions of this brand")
	cmd.Flags().StringVar(&groupID, "group-id", "", "consumer group (default brandpulse-mentionctl)")
	cmd.Flags().BoolVar(&fromBeginning, "from-beginning", false, "start from the oldest retained event when the group has no offset")
	cmd.Flags().IntVar(&limit, "max", 0, "stop after printing this many mentions (0 follows forever)")
	return cmd
}
