package notify

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/kviz-leads/internal/usecase"
)

// Fanout delivers a lead to every configured channel in parallel. The lead
// counts as delivered when at least one channel accepted it.
type Fanout struct {
	notifiers []usecase.Notifier
}

func NewFanout(notifiers ...usecase.Notifier) *Fanout {
	var active []usecase.Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &Fanout{notifiers: active}
}

func (f *Fanout) Len() int {
	return len(f.notifiers)
}

func (f *Fanout) Send(ctx context.Context, n usecase.LeadNotification) bool {
	var delivered atomic.Int32

	var g errgroup.Group
	for _, notifier := range f.notifiers {
		g.Go(func() error {
			if notifier.Send(ctx, n) {
				delivered.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return delivered.Load() > 0
}
