/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/foodgram/apiserver/config"
	"github.com/foodgram/apiserver/internal/logger"
	"github.com/foodgram/apiserver/internal/mq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect domain events",
}

// eventsWatchCmd subscribes to the domain event topics and logs every event.
var eventsWatchCmd = &cobra.Command{
	Use:   "watch [topic...]",
	Short: "Log domain events as they are published",
	Long: `Subscribes to the given topics (all domain topics by default) on the
configured MQ backend and logs each event until interrupted.

	foodgram events watch recipes.created
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, err := logger.New(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is none: nothing to watch")
		}
		defer queue.Close()

		topics := args
		if len(topics) == 0 {
			topics = []string{mq.TopicUserRegistered, mq.TopicRecipeCreated}
		}

		g, ctx := errgroup.WithContext(ctx)
		for _, topic := range topics {
			g.Go(func() error {
				return queue.Subscribe(ctx, topic, logEvent(log, topic))
			})
		}
		log.Info("watching events", zap.Strings("topics", topics))
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func logEvent(log *zap.Logger, topic string) mq.Handler {
	return func(_ context.Context, msg mq.Message) error {
		event, err := mq.DecodeEvent(msg.Data)
		if err != nil {
			log.Warn("undecodable message", zap.String("topic", topic), zap.String("id", msg.ID), zap.Error(err))
			return nil
		}
		log.Info("event",
			zap.String("topic", topic),
			zap.String("id", msg.ID),
			zap.String("type", event.Type),
			zap.Time("occurred_at", event.OccurredAt),
			zap.ByteString("payload", event.Payload),
		)
		return nil
	}
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
