package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/kviz-leads/internal/entity"
)

const DefaultIPWindow = 24 * time.Hour

// SaveLeadUseCase runs the duplicate checks and writes a new lead.
// The lookups are advisory; the unique index behind Repo.Insert is what
// actually keeps one lead per phone.
type SaveLeadUseCase struct {
	Repo       entity.LeadRepository
	IPThrottle bool
	IPWindow   time.Duration
	Now        func() time.Time
}

func NewSaveLeadUseCase(repo entity.LeadRepository, ipThrottle bool, ipWindow time.Duration) *SaveLeadUseCase {
	if ipWindow <= 0 {
		ipWindow = DefaultIPWindow
	}
	return &SaveLeadUseCase{
		Repo:       repo,
		IPThrottle: ipThrottle,
		IPWindow:   ipWindow,
		Now:        time.Now,
	}
}

func (uc *SaveLeadUseCase) Execute(ctx context.Context, input SaveLeadInput) SaveResult {
	phone := entity.StringField(input.Lead, "phone")
	hash := entity.PhoneHash(phone)

	if existing := uc.findByPhoneHash(ctx, hash); existing != nil {
		zap.L().Info("duplicate lead detected by phone",
			zap.String("phone", phone),
			zap.String("existing_lead_id", existing.ID),
			zap.Time("created_at", existing.CreatedAt),
		)
		return SaveResult{Status: SaveDuplicatePhone, Lead: existing}
	}

	if uc.IPThrottle {
		ip := entity.StringField(input.UserData, "ip")
		realIP := entity.StringField(input.UserData, "realIP")

		if existing := uc.findByIP(ctx, ip); existing != nil {
			zap.L().Info("duplicate lead detected by ip",
				zap.String("ip", ip),
				zap.String("phone", phone),
				zap.String("existing_lead_id", existing.ID),
			)
			return SaveResult{Status: SaveDuplicateIP, Lead: existing}
		}
		if realIP != ip {
			if existing := uc.findByIP(ctx, realIP); existing != nil {
				zap.L().Info("duplicate lead detected by real ip",
					zap.String("real_ip", realIP),
					zap.String("phone", phone),
					zap.String("existing_lead_id", existing.ID),
				)
				return SaveResult{Status: SaveDuplicateIP, Lead: existing}
			}
		}
	}

	lead := entity.NewLead(input.Lead, input.UTMParams, input.UserData, uc.now())

	if err := uc.Repo.Insert(ctx, lead); err != nil {
		if errors.Is(err, entity.ErrDuplicatePhone) {
			// Lost the race against a concurrent submission for the same phone.
			existing := uc.findByPhoneHash(ctx, hash)
			zap.L().Info("duplicate lead rejected by unique index", zap.String("phone", phone))
			return SaveResult{Status: SaveDuplicatePhone, Lead: existing}
		}
		zap.L().Error("failed to save lead", zap.String("phone", phone), zap.Error(err))
		return SaveResult{Status: SaveFailed, Err: err}
	}

	zap.L().Info("lead saved",
		zap.String("lead_id", lead.ID),
		zap.String("name", lead.Name),
		zap.String("phone", lead.Phone),
	)
	return SaveResult{Status: SaveCreated, Lead: lead}
}

func (uc *SaveLeadUseCase) findByPhoneHash(ctx context.Context, hash string) *entity.Lead {
	lead, err := uc.Repo.FindByPhoneHash(ctx, hash)
	if err != nil {
		zap.L().Error("lead lookup by phone failed", zap.Error(err))
		return nil
	}
	return lead
}

func (uc *SaveLeadUseCase) findByIP(ctx context.Context, ip string) *entity.Lead {
	if ip == "" || ip == entity.UnknownIP {
		return nil
	}
	lead, err := uc.Repo.FindRecentByIP(ctx, ip, uc.now().Add(-uc.IPWindow))
	if err != nil {
		zap.L().Error("lead lookup by ip failed", zap.String("ip", ip), zap.Error(err))
		return nil
	}
	return lead
}

func (uc *SaveLeadUseCase) now() time.Time {
	if uc.Now == nil {
		return time.Now()
	}
	return uc.Now()
}
