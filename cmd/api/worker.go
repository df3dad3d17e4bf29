package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xavierca1/kviz-leads/internal/config"
	"github.com/xavierca1/kviz-leads/internal/infra/analytics"
	"github.com/xavierca1/kviz-leads/internal/infra/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued analytics events into the analytics log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger, err := config.NewAnalyticsLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		rabbit, err := queue.NewRabbitMQ(cfg.Queue.URL)
		if err != nil {
			return eris.Wrap(err, "worker: connect")
		}
		defer rabbit.Close()

		zap.L().Info("starting analytics worker", zap.String("queue", queue.QueueName))
		return queue.NewWorker(rabbit.Ch, analytics.NewFileSink(logger)).Start(ctx, queue.QueueName)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
