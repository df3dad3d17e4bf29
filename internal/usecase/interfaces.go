package usecase

import (
	"context"

	"github.com/xavierca1/kviz-leads/internal/entity"
)

// LeadNotification is what gets forwarded to the operator chat.
type LeadNotification struct {
	Lead      map[string]any
	UTMParams map[string]any
	UserData  map[string]any
}

// Notifier delivers a lead to a human operator. Implementations never
// return errors: any failure is reported as false.
type Notifier interface {
	Send(ctx context.Context, n LeadNotification) bool
}

type EventSink interface {
	Record(ctx context.Context, event entity.AnalyticsEvent) error
}
