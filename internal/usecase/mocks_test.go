package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/kviz-leads/internal/entity"
)

type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) FindByPhoneHash(ctx context.Context, hash string) (*entity.Lead, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) FindRecentByIP(ctx context.Context, ip string, since time.Time) (*entity.Lead, error) {
	args := m.Called(ctx, ip, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) Insert(ctx context.Context, lead *entity.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

func (m *MockLeadRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLeadRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLeadRepository) List(ctx context.Context, limit, offset int) ([]*entity.Lead, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Lead), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, n LeadNotification) bool {
	args := m.Called(ctx, n)
	return args.Bool(0)
}

type MockEventSink struct {
	mock.Mock
}

func (m *MockEventSink) Record(ctx context.Context, event entity.AnalyticsEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// memLeadRepository mimics a store with a unique phone_hash index.
type memLeadRepository struct {
	mu    sync.Mutex
	leads []*entity.Lead
}

func (r *memLeadRepository) FindByPhoneHash(_ context.Context, hash string) (*entity.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leads {
		if l.PhoneHash == hash {
			return l, nil
		}
	}
	return nil, nil
}

func (r *memLeadRepository) FindRecentByIP(_ context.Context, ip string, since time.Time) (*entity.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *entity.Lead
	for _, l := range r.leads {
		if l.IP() != ip && l.RealIP() != ip {
			continue
		}
		if l.CreatedAt.Before(since) {
			continue
		}
		if found == nil || l.CreatedAt.After(found.CreatedAt) {
			found = l
		}
	}
	return found, nil
}

func (r *memLeadRepository) Insert(_ context.Context, lead *entity.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leads {
		if l.PhoneHash == lead.PhoneHash {
			return entity.ErrDuplicatePhone
		}
	}
	r.leads = append(r.leads, lead)
	return nil
}

func (r *memLeadRepository) Ping(context.Context) error { return nil }

func (r *memLeadRepository) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.leads)), nil
}

func (r *memLeadRepository) List(context.Context, int, int) ([]*entity.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.Lead(nil), r.leads...), nil
}
