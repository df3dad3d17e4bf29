package entity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// UnknownIP is what the client-IP resolver reports when no address could be
// determined. It never takes part in IP throttling.
const UnknownIP = "unknown"

var ErrDuplicatePhone = errors.New("lead with this phone hash already exists")

// Lead is a persisted quiz submission. Records are append-only.
type Lead struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Phone     string         `json:"phone"`
	Email     string         `json:"email,omitempty"`
	PhoneHash string         `json:"phone_hash"`
	LeadData  map[string]any `json:"lead_data,omitempty"` // quiz answers and other extra fields
	UTMParams map[string]any `json:"utm_params"`
	UserData  map[string]any `json:"user_data"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewLead splits the submitted lead fields into identity fields and opaque
// extras, and derives the phone hash.
func NewLead(fields map[string]any, utm, user map[string]any, now time.Time) *Lead {
	l := &Lead{
		ID:        uuid.New().String(),
		Name:      StringField(fields, "name"),
		Phone:     StringField(fields, "phone"),
		Email:     StringField(fields, "email"),
		UTMParams: utm,
		UserData:  user,
		CreatedAt: now,
	}
	l.PhoneHash = PhoneHash(l.Phone)

	for k, v := range fields {
		if k == "name" || k == "phone" || k == "email" {
			continue
		}
		if l.LeadData == nil {
			l.LeadData = make(map[string]any)
		}
		l.LeadData[k] = v
	}

	if l.UTMParams == nil {
		l.UTMParams = map[string]any{}
	}
	if l.UserData == nil {
		l.UserData = map[string]any{}
	}
	return l
}

// IP returns userData.ip.
func (l *Lead) IP() string {
	return StringField(l.UserData, "ip")
}

// RealIP returns userData.realIP.
func (l *Lead) RealIP() string {
	return StringField(l.UserData, "realIP")
}

// StringField reads a string value from an opaque JSON object. Non-string
// values are treated as absent.
func StringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

type LeadRepository interface {
	FindByPhoneHash(ctx context.Context, hash string) (*Lead, error)
	// FindRecentByIP returns the newest lead whose userData.ip or
	// userData.realIP equals ip and that was created at or after since.
	FindRecentByIP(ctx context.Context, ip string, since time.Time) (*Lead, error)
	// Insert returns ErrDuplicatePhone when the phone hash is already taken.
	Insert(ctx context.Context, lead *Lead) error
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context, limit, offset int) ([]*Lead, error)
}
