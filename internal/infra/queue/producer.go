package queue

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/kviz-leads/internal/entity"
	"github.com/xavierca1/kviz-leads/internal/usecase"
)

// Publisher is the part of *amqp.Channel the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// EventProducer publishes analytics events to RabbitMQ. When publishing
// fails the event goes to the fallback sink instead of being dropped.
type EventProducer struct {
	ch       Publisher
	fallback usecase.EventSink
}

func NewEventProducer(ch Publisher, fallback usecase.EventSink) *EventProducer {
	return &EventProducer{ch: ch, fallback: fallback}
}

func (p *EventProducer) Record(ctx context.Context, event entity.AnalyticsEvent) error {
	err := p.publish(ctx, event)
	if err == nil {
		return nil
	}

	zap.L().Warn("queue: publish failed, writing event locally",
		zap.String("event", event.Event),
		zap.Error(err),
	)
	if p.fallback == nil {
		return err
	}
	return p.fallback.Record(ctx, event)
}

func (p *EventProducer) publish(ctx context.Context, event entity.AnalyticsEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return eris.Wrap(err, "queue: marshal event")
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Event,
			Timestamp:    event.LoggedAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	return eris.Wrap(err, "queue: publish event")
}
