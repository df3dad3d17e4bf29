package entity

import (
	"encoding/json"
	"errors"
	"time"
)

// AnalyticsEvent is a free-form frontend event. Only userData is typed: the
// server injects the client ip there. Every other top-level key is kept in
// Fields exactly as sent. loggedAt is always set by the server.
type AnalyticsEvent struct {
	Event    string
	UserData map[string]any
	LoggedAt time.Time
	Fields   map[string]any
}

const EventLeadCreated = "lead_created"

var ErrInvalidUserData = errors.New("userData must be a JSON object")

func (e *AnalyticsEvent) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var ev AnalyticsEvent
	if v, ok := raw["userData"]; ok {
		if err := json.Unmarshal(v, &ev.UserData); err != nil {
			return ErrInvalidUserData
		}
		delete(raw, "userData")
	}
	// A non-string event name stays in Fields untouched.
	if v, ok := raw["event"]; ok {
		if json.Unmarshal(v, &ev.Event) == nil {
			delete(raw, "event")
		}
	}
	// Only a well-formed timestamp survives, e.g. one read back from the
	// queue. Client values are dropped and replaced when the event is logged.
	if v, ok := raw["loggedAt"]; ok {
		_ = json.Unmarshal(v, &ev.LoggedAt)
		delete(raw, "loggedAt")
	}

	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		if ev.Fields == nil {
			ev.Fields = make(map[string]any, len(raw))
		}
		ev.Fields[k] = val
	}

	*e = ev
	return nil
}

func (e AnalyticsEvent) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = v
	}
	if e.Event != "" {
		out["event"] = e.Event
	}
	out["userData"] = e.UserData
	out["loggedAt"] = e.LoggedAt
	return json.Marshal(out)
}
