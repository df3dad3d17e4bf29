package analytics

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/xavierca1/kviz-leads/internal/entity"
)

// FileSink writes analytics events as structured entries on the analytics
// logger (analytics.log in production).
type FileSink struct {
	logger *zap.Logger
}

func NewFileSink(logger *zap.Logger) *FileSink {
	if logger == nil {
		logger = zap.L().Named("analytics")
	}
	return &FileSink{logger: logger}
}

// Record logs the event with every passthrough field as its own key.
func (s *FileSink) Record(ctx context.Context, event entity.AnalyticsEvent) error {
	keys := make([]string, 0, len(event.Fields))
	for k := range event.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+3)
	fields = append(fields,
		zap.String("event", event.Event),
		zap.Any("userData", event.UserData),
		zap.Time("loggedAt", event.LoggedAt),
	)
	for _, k := range keys {
		switch k {
		case "event", "userData", "loggedAt":
			fields = append(fields, zap.Any("client_"+k, event.Fields[k]))
		default:
			fields = append(fields, zap.Any(k, event.Fields[k]))
		}
	}

	s.logger.Info("analytics event", fields...)
	return nil
}
