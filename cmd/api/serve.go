package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/kviz-leads/internal/infra/http/handlers"
	"github.com/xavierca1/kviz-leads/internal/infra/http/middleware"
	"github.com/xavierca1/kviz-leads/internal/infra/queue"
	"github.com/xavierca1/kviz-leads/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lead intake HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)
		router := newRouter(routerDeps{
			Lead:           handlers.NewLeadHandler(a.intakeUseCase(cfg)),
			Event:          handlers.NewEventHandler(usecase.NewLogEventUseCase(a.events)),
			Health:         a.healthHandler(),
			Limiter:        limiter,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server",
				zap.Int("port", port),
				zap.Strings("allowed_origins", cfg.Server.AllowedOrigins),
				zap.Bool("telegram", a.telegram.Configured()),
				zap.Bool("database", a.store != nil),
				zap.Bool("rabbitmq", a.rabbit != nil),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			return limiter.Run(gctx)
		})

		if a.rabbit != nil {
			g.Go(func() error {
				// A dead consumer must not take the intake down with it.
				if err := runEventWorker(gctx, a); err != nil {
					zap.L().Error("analytics worker stopped", zap.Error(err))
				}
				return nil
			})
		}

		return g.Wait()
	},
}

func (a *app) healthHandler() *handlers.HealthHandler {
	var store handlers.Pinger
	if a.store != nil {
		store = a.store
	}
	var q handlers.QueueHealth
	if a.rabbit != nil {
		q = a.rabbit
	}
	return handlers.NewHealthHandler(store, q, a.telegram.Configured())
}

// runEventWorker drains the analytics queue into the log file on its own
// channel.
func runEventWorker(ctx context.Context, a *app) error {
	ch, err := a.rabbit.Conn.Channel()
	if err != nil {
		return eris.Wrap(err, "rabbitmq: open worker channel")
	}
	defer ch.Close()

	return queue.NewWorker(ch, a.fileSink).Start(ctx, queue.QueueName)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.RunE = serveCmd.RunE
	rootCmd.AddCommand(serveCmd)
}
