package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/kviz-leads/internal/entity"
)

func TestLogEvent_InjectsServerIP(t *testing.T) {
	sink := new(MockEventSink)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	sink.On("Record", mock.Anything, mock.MatchedBy(func(e entity.AnalyticsEvent) bool {
		return e.UserData["ip"] == "8.8.8.8" && e.LoggedAt.Equal(now) && e.Event == "quiz_step"
	})).Return(nil)

	uc := NewLogEventUseCase(sink)
	uc.Now = fixedClock(now)

	err := uc.Execute(context.Background(), entity.AnalyticsEvent{
		Event:    "quiz_step",
		UserData: map[string]any{"ip": "spoofed"},
	}, "8.8.8.8")

	assert.NoError(t, err)
	sink.AssertExpectations(t)
}

func TestLogEvent_MissingUserData(t *testing.T) {
	sink := new(MockEventSink)
	uc := NewLogEventUseCase(sink)

	err := uc.Execute(context.Background(), entity.AnalyticsEvent{Event: "x"}, "1.1.1.1")

	assert.True(t, IsDomainError(err))
	sink.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestLogEvent_SinkFailureIsSwallowed(t *testing.T) {
	sink := new(MockEventSink)
	sink.On("Record", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	uc := NewLogEventUseCase(sink)
	err := uc.Execute(context.Background(), entity.AnalyticsEvent{UserData: map[string]any{}}, "")

	assert.NoError(t, err)
}
