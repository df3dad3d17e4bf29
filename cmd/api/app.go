package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/xavierca1/kviz-leads/internal/config"
	"github.com/xavierca1/kviz-leads/internal/entity"
	"github.com/xavierca1/kviz-leads/internal/infra/analytics"
	"github.com/xavierca1/kviz-leads/internal/infra/database"
	"github.com/xavierca1/kviz-leads/internal/infra/integration/telegram"
	"github.com/xavierca1/kviz-leads/internal/infra/mail"
	"github.com/xavierca1/kviz-leads/internal/infra/notify"
	"github.com/xavierca1/kviz-leads/internal/infra/queue"
	"github.com/xavierca1/kviz-leads/internal/usecase"
)

// app holds the long-lived dependencies shared by the serve and worker
// commands.
type app struct {
	store     database.LeadStore
	rabbit    *queue.RabbitMQ
	telegram  *telegram.Client
	notifier  usecase.Notifier
	fileSink  *analytics.FileSink
	events    usecase.EventSink
	analytics *zap.Logger
}

// newApp connects what it can. A store or queue that fails to come up is
// logged and left nil so the intake keeps accepting leads in degraded mode.
func newApp(ctx context.Context, c *config.Config) (*app, error) {
	a := &app{}

	store, err := database.Open(ctx, c.Store.Driver, c.Store.DatabaseURL, c.Store.MaxConns)
	if err != nil {
		zap.L().Error("lead store unavailable, continuing without persistence", zap.Error(err))
	} else {
		if err := store.Migrate(ctx); err != nil {
			zap.L().Error("lead store migration failed", zap.Error(err))
		}
		a.store = store
	}

	a.telegram = telegram.NewClient(c.Telegram.BotToken, c.Telegram.ChatID, c.Telegram.BaseURL, c.Telegram.Timeout)
	if !a.telegram.Configured() {
		zap.L().Warn("telegram credentials missing, lead notifications will be skipped")
	}
	channels := []usecase.Notifier{a.telegram}
	if c.Mail.Enabled() {
		channels = append(channels, mail.NewLeadEmailSender(
			c.Mail.Host, c.Mail.Port, c.Mail.User, c.Mail.Password, c.Mail.From, c.Mail.To,
		))
	}
	a.notifier = notify.NewFanout(channels...)

	a.analytics, err = config.NewAnalyticsLogger(c.Log)
	if err != nil {
		return nil, err
	}
	a.fileSink = analytics.NewFileSink(a.analytics)
	a.events = a.fileSink

	if c.Queue.URL != "" {
		rabbit, err := queue.NewRabbitMQ(c.Queue.URL)
		if err != nil {
			zap.L().Error("rabbitmq unavailable, analytics events go to the log file", zap.Error(err))
		} else {
			a.rabbit = rabbit
			a.events = queue.NewEventProducer(rabbit.Ch, a.fileSink)
		}
	}

	return a, nil
}

func (a *app) intakeUseCase(c *config.Config) *usecase.IntakeLeadUseCase {
	var repo entity.LeadRepository
	if a.store != nil {
		repo = a.store
	}
	saver := usecase.NewSaveLeadUseCase(repo, c.Intake.IPThrottle, c.Intake.IPWindow)
	return usecase.NewIntakeLeadUseCase(repo, saver, a.notifier, a.events)
}

func (a *app) Close() {
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			zap.L().Warn("close rabbitmq", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			zap.L().Warn("close lead store", zap.Error(err))
		}
	}
	if a.analytics != nil {
		_ = a.analytics.Sync()
	}
}
