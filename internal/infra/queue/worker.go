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

// Consumer is the part of *amqp.Channel the worker needs.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Worker drains queued analytics events into the local sink.
type Worker struct {
	Channel Consumer
	Sink    usecase.EventSink
}

func NewWorker(ch Consumer, sink usecase.EventSink) *Worker {
	return &Worker{
		Channel: ch,
		Sink:    sink,
	}
}

// Start consumes queueName until ctx is cancelled or the delivery channel
// closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(
		queueName,
		"kviz-analytics-worker",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return eris.Wrapf(err, "queue: consume %s", queueName)
	}

	zap.L().Info("queue: worker started", zap.String("queue", queueName))

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("queue: worker stopping", zap.String("queue", queueName))
			return nil
		case d, ok := <-msgs:
			if !ok {
				return eris.Errorf("queue: delivery channel for %s closed", queueName)
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var event entity.AnalyticsEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		zap.L().Error("queue: malformed event", zap.Error(err))
		// No requeue: it would never parse.
		_ = d.Nack(false, false)
		return
	}

	if err := w.Sink.Record(ctx, event); err != nil {
		zap.L().Error("queue: record event failed",
			zap.String("event", event.Event),
			zap.Error(err),
		)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
