package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xavierca1/kviz-leads/internal/entity"
)

func TestFileSink_Record(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewFileSink(zap.New(core))

	err := sink.Record(context.Background(), entity.AnalyticsEvent{
		Event:    "quiz_step",
		UserData: map[string]any{"ip": "1.2.3.4"},
		LoggedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Fields: map[string]any{
			"utmParams": map[string]any{"utm_source": "ig"},
			"pageUrl":   "https://quizthenox.live/?step=2",
			"data":      "cta-button",
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())

	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "quiz_step", ctx["event"])
	assert.Equal(t, "https://quizthenox.live/?step=2", ctx["pageUrl"])
	assert.Equal(t, "cta-button", ctx["data"])
	assert.Equal(t, map[string]any{"ip": "1.2.3.4"}, ctx["userData"])
	assert.NotContains(t, ctx, "referrer")
}

func TestFileSink_NonStringEventNameDoesNotClobber(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewFileSink(zap.New(core))

	require.NoError(t, sink.Record(context.Background(), entity.AnalyticsEvent{
		UserData: map[string]any{},
		Fields:   map[string]any{"event": float64(7)},
	}))

	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "", ctx["event"])
	assert.Equal(t, float64(7), ctx["client_event"])
}
