package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-reservation/internal/queue"
)

func newConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Drain the notification queues into the notification log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx = logg.WithField(ctx, "component", "notify-consumer")
			logg.Info(ctx, "consumer starting")
			err = queue.NewConsumer(cfg.RabbitMQ, logg).Run(ctx)
			if errors.Is(err, context.Canceled) {
				logg.Info(ctx, "consumer stopped")
				return nil
			}
			return err
		},
	}
}
