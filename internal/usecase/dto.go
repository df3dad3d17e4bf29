package usecase

import "github.com/xavierca1/kviz-leads/internal/entity"

type SaveLeadInput struct {
	Lead      map[string]any
	UTMParams map[string]any
	UserData  map[string]any
}

type SaveStatus int

const (
	SaveCreated SaveStatus = iota
	SaveDuplicatePhone
	SaveDuplicateIP
	SaveFailed
)

func (s SaveStatus) String() string {
	switch s {
	case SaveCreated:
		return "created"
	case SaveDuplicatePhone:
		return "duplicate_phone"
	case SaveDuplicateIP:
		return "duplicate_ip"
	default:
		return "failed"
	}
}

// SaveResult carries the new lead for SaveCreated, the conflicting lead for
// the duplicate statuses (may be nil if it could not be re-read), and Err for
// SaveFailed.
type SaveResult struct {
	Status SaveStatus
	Lead   *entity.Lead
	Err    error
}

type IntakeInput struct {
	Lead      map[string]any `json:"lead"`
	UTMParams map[string]any `json:"utmParams"`
	UserData  map[string]any `json:"userData"`
}

type IntakeOutcome string

const (
	OutcomePersisted        IntakeOutcome = "persisted"
	OutcomeDuplicatePhone   IntakeOutcome = "duplicate_phone"
	OutcomeDuplicateIP      IntakeOutcome = "duplicate_ip"
	OutcomeStoreFailed      IntakeOutcome = "store_failed"
	OutcomeStoreUnavailable IntakeOutcome = "store_unavailable"
)

type NotifyOutcome string

const (
	NotifySent    NotifyOutcome = "sent"
	NotifySkipped NotifyOutcome = "skipped"
	NotifyFailed  NotifyOutcome = "failed"
)

type IntakeOutput struct {
	Outcome      IntakeOutcome
	Notification NotifyOutcome
	Saved        bool
	Lead         *entity.Lead
}

// Accepted is false only for a phone-identity duplicate.
func (o *IntakeOutput) Accepted() bool {
	return o.Outcome != OutcomeDuplicatePhone
}

func (o *IntakeOutput) DuplicatePhone() bool {
	return o.Outcome == OutcomeDuplicatePhone
}

func (o *IntakeOutput) DuplicateIP() bool {
	return o.Outcome == OutcomeDuplicateIP
}

func (o *IntakeOutput) NotificationSent() bool {
	return o.Notification == NotifySent
}
