package entity

import (
	"strconv"
	"time"
)

// Attributes is the free-form attribute mapping carried by an entity.
// Home Assistant populates it per integration; hadeck treats it as opaque
// apart from the numeric helpers below.
type Attributes map[string]any

// Float returns the attribute as a float64 if it is any numeric type
// (or a numeric string, which some integrations emit).
func (a Attributes) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String returns the attribute as a string if present.
func (a Attributes) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// clone returns a top-level copy of the attribute map so cached entities
// cannot be mutated through an escaped reference.
func (a Attributes) clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Entity is a snapshot of one remote entity's state and attributes.
type Entity struct {
	ID          string
	State       string
	Attributes  Attributes
	LastChanged time.Time
	LastUpdated time.Time
}

// NumericState parses the entity state as a float64.
// Home Assistant states are strings on the wire ("42.5", "on", "unavailable").
func (e Entity) NumericState() (float64, bool) {
	f, err := strconv.ParseFloat(e.State, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// clone returns a copy safe to hand out of the store.
func (e Entity) clone() Entity {
	e.Attributes = e.Attributes.clone()
	return e
}

// StateChange describes one inbound state_changed notification.
// NewState is nil when the entity was removed.
type StateChange struct {
	EntityID string
	OldState *Entity
	NewState *Entity
}
