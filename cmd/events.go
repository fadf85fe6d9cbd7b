/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/fastcrud/apiserver/internal/mq"
	"github.com/fastcrud/apiserver/internal/services"
	"github.com/spf13/cobra"
)

var tailChannel string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect identity events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log identity events from a channel until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer broker.Close()

		logger.Info("tailing events", "backend", broker.Backend(), "channel", tailChannel)
		err = broker.Subscribe(ctx, tailChannel, func(ctx context.Context, msg mq.Message) error {
			var evt services.UserEvent
			if err := json.Unmarshal(msg.Data, &evt); err != nil {
				// Malformed payloads are acked so they are not redelivered forever.
				logger.WarnContext(ctx, "undecodable event", "message_id", msg.ID, "error", err)
				return nil
			}
			logger.InfoContext(ctx, "event",
				"message_id", msg.ID,
				"type", evt.Type,
				"user_id", evt.UserID,
				"email", evt.Email,
				"occurred_at", evt.OccurredAt,
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
	eventsTailCmd.Flags().StringVar(&tailChannel, "channel", services.EventUserRegistered, "channel to consume")
}
