package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/kviz-leads/internal/entity"
)

type LogEventUseCase struct {
	Sink EventSink
	Now  func() time.Time
}

func NewLogEventUseCase(sink EventSink) *LogEventUseCase {
	return &LogEventUseCase{Sink: sink, Now: time.Now}
}

// Execute stamps the event with the server-resolved client IP and hands it to
// the sink. Sink failures are logged, not returned: the frontend does not
// retry analytics.
func (uc *LogEventUseCase) Execute(ctx context.Context, event entity.AnalyticsEvent, clientIP string) error {
	if event.UserData == nil {
		return &DomainError{Code: CodeValidation, Message: "Failed to log event"}
	}
	if clientIP != "" {
		event.UserData["ip"] = clientIP
	}
	event.LoggedAt = uc.Now()

	if err := uc.Sink.Record(ctx, event); err != nil {
		zap.L().Error("failed to record analytics event", zap.String("event", event.Event), zap.Error(err))
	}
	return nil
}
