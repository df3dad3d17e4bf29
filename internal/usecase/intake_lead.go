package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xavierca1/kviz-leads/internal/entity"
)

const storePingTimeout = 2 * time.Second

var validate = validator.New()

type leadIdentity struct {
	Name  string `validate:"required"`
	Phone string `validate:"required"`
}

// IntakeLeadUseCase sequences validation, persistence, the lead_created
// analytics record and the operator notification for one submission.
type IntakeLeadUseCase struct {
	Repo     entity.LeadRepository
	Saver    *SaveLeadUseCase
	Notifier Notifier
	Events   EventSink
	Now      func() time.Time
}

func NewIntakeLeadUseCase(
	repo entity.LeadRepository,
	saver *SaveLeadUseCase,
	notifier Notifier,
	events EventSink,
) *IntakeLeadUseCase {
	return &IntakeLeadUseCase{
		Repo:     repo,
		Saver:    saver,
		Notifier: notifier,
		Events:   events,
		Now:      time.Now,
	}
}

func (uc *IntakeLeadUseCase) Execute(ctx context.Context, input IntakeInput) (out *IntakeOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("panic while processing lead", zap.Any("panic", r), zap.Stack("stack"))
			out = nil
			err = &TechnicalError{
				Code:    CodeUnexpected,
				Message: "failed to process lead",
				Cause:   fmt.Errorf("panic: %v", r),
			}
		}
	}()

	// name and phone must be non-blank strings. A numeric phone is rejected
	// rather than coerced so the stored phone and its hash stay textual.
	identity := leadIdentity{
		Name:  strings.TrimSpace(entity.StringField(input.Lead, "name")),
		Phone: strings.TrimSpace(entity.StringField(input.Lead, "phone")),
	}
	if verr := validate.Struct(identity); verr != nil {
		zap.L().Warn("invalid lead data received",
			zap.Bool("has_name", identity.Name != ""),
			zap.Bool("has_phone", identity.Phone != ""),
		)
		return nil, &DomainError{
			Code:    CodeValidation,
			Message: "Lead data is required (name and phone)",
		}
	}

	out = &IntakeOutput{Outcome: OutcomeStoreUnavailable}

	if uc.storeAvailable(ctx) {
		res := uc.Saver.Execute(ctx, SaveLeadInput{
			Lead:      input.Lead,
			UTMParams: input.UTMParams,
			UserData:  input.UserData,
		})
		out.Lead = res.Lead

		switch res.Status {
		case SaveDuplicatePhone:
			// Repeat submitters never reach the operator chat twice.
			out.Outcome = OutcomeDuplicatePhone
			out.Notification = NotifySkipped
			return out, nil
		case SaveDuplicateIP:
			out.Outcome = OutcomeDuplicateIP
			out.Notification = NotifySkipped
			return out, nil
		case SaveCreated:
			out.Outcome = OutcomePersisted
			out.Saved = true
		case SaveFailed:
			out.Outcome = OutcomeStoreFailed
			zap.L().Error("lead not persisted, continuing with notification",
				zap.String("phone", identity.Phone),
				zap.Error(res.Err),
			)
		}
	} else {
		zap.L().Warn("lead store unavailable, lead will not be saved", zap.String("phone", identity.Phone))
	}

	uc.recordCreated(ctx, input)

	out.Notification = uc.notify(ctx, input)
	if out.Notification == NotifyFailed {
		zap.L().Warn("lead was logged but notification failed",
			zap.String("name", identity.Name),
			zap.String("phone", identity.Phone),
		)
	}
	return out, nil
}

func (uc *IntakeLeadUseCase) storeAvailable(ctx context.Context) bool {
	if uc.Repo == nil || uc.Saver == nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()
	if err := uc.Repo.Ping(pingCtx); err != nil {
		zap.L().Warn("lead store ping failed", zap.Error(err))
		return false
	}
	return true
}

func (uc *IntakeLeadUseCase) recordCreated(ctx context.Context, input IntakeInput) {
	if uc.Events == nil {
		return
	}
	event := entity.AnalyticsEvent{
		Event:    entity.EventLeadCreated,
		UserData: input.UserData,
		LoggedAt: uc.now(),
		Fields: map[string]any{
			"lead":      input.Lead,
			"utmParams": input.UTMParams,
		},
	}
	if err := uc.Events.Record(ctx, event); err != nil {
		zap.L().Error("failed to record lead_created event", zap.Error(err))
	}
}

func (uc *IntakeLeadUseCase) notify(ctx context.Context, input IntakeInput) NotifyOutcome {
	if uc.Notifier == nil {
		return NotifySkipped
	}
	ok := uc.Notifier.Send(ctx, LeadNotification{
		Lead:      input.Lead,
		UTMParams: input.UTMParams,
		UserData:  input.UserData,
	})
	if !ok {
		return NotifyFailed
	}
	return NotifySent
}

func (uc *IntakeLeadUseCase) now() time.Time {
	if uc.Now == nil {
		return time.Now()
	}
	return uc.Now()
}
