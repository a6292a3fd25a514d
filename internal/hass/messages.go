package hass

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rgoodwin/hadeck/internal/entity"
)

// envelope is the common shape of every websocket frame.
type envelope struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`

	// Auth handshake fields.
	HAVersion string `json:"ha_version,omitempty"`
	Message   string `json:"message,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *wireError) String() string {
	if e == nil {
		return "unknown"
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

type subscribeEventsMessage struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

type getStatesMessage struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

type callServiceMessage struct {
	ID          int            `json:"id"`
	Type        string         `json:"type"`
	Domain      string         `json:"domain"`
	Service     string         `json:"service"`
	ServiceData map[string]any `json:"service_data,omitempty"`
	Target      *serviceTarget `json:"target,omitempty"`
}

type serviceTarget struct {
	EntityID string `json:"entity_id"`
}

// FlexString decodes a JSON value that may arrive as a string, number,
// bool or null, normalizing to its string form. Home Assistant state
// values are strings on the wire, but templated payloads are not always
// so disciplined.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexString(fmt.Sprintf("%v", v))
	return nil
}

// wireState is one entity state as Home Assistant serializes it.
type wireState struct {
	EntityID    string            `json:"entity_id"`
	State       FlexString        `json:"state"`
	Attributes  entity.Attributes `json:"attributes"`
	LastChanged time.Time         `json:"last_changed"`
	LastUpdated time.Time         `json:"last_updated"`
}

func (w *wireState) toEntity() *entity.Entity {
	if w == nil || w.EntityID == "" {
		return nil
	}
	return &entity.Entity{
		ID:          w.EntityID,
		State:       string(w.State),
		Attributes:  w.Attributes,
		LastChanged: w.LastChanged,
		LastUpdated: w.LastUpdated,
	}
}

// stateChangedEvent is the payload of a state_changed event frame.
type stateChangedEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		EntityID string     `json:"entity_id"`
		OldState *wireState `json:"old_state"`
		NewState *wireState `json:"new_state"`
	} `json:"data"`
}
