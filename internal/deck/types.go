package deck

import (
	"fmt"
	"time"

	"github.com/rgoodwin/hadeck/internal/entity"
)

// SpecialType is the closed set of button behaviors that act on the deck
// itself instead of issuing remote commands.
type SpecialType string

const (
	// SpecialNone marks an ordinary command button.
	SpecialNone SpecialType = ""
	// SpecialGoToPage navigates to the page named by the button's data.
	SpecialGoToPage SpecialType = "go-to-page"
	// SpecialClosePage closes the detached page, if one is open.
	SpecialClosePage SpecialType = "close-page"
	// SpecialNextPage advances the home rotation, wrapping.
	SpecialNextPage SpecialType = "next-page"
	// SpecialPreviousPage steps the home rotation back, wrapping.
	SpecialPreviousPage SpecialType = "previous-page"
	// SpecialEmpty is a placeholder that performs no action.
	SpecialEmpty SpecialType = "empty"
	// SpecialTurnOff blanks the display until the next input event.
	SpecialTurnOff SpecialType = "turn-off"
	// SpecialReload re-fetches remote state and redraws the deck.
	SpecialReload SpecialType = "reload"
)

// ParseSpecialType validates a special type tag from configuration.
func ParseSpecialType(s string) (SpecialType, error) {
	switch t := SpecialType(s); t {
	case SpecialNone, SpecialGoToPage, SpecialClosePage, SpecialNextPage,
		SpecialPreviousPage, SpecialEmpty, SpecialTurnOff, SpecialReload:
		return t, nil
	default:
		return SpecialNone, fmt.Errorf("%w: %q", ErrInvalidSpecialType, s)
	}
}

// Button is a control bound to one physical key.
//
// Special-type buttons never issue remote commands; entity-bound buttons
// without a special type do.
type Button struct {
	// EntityID is the optional bound entity identifier.
	EntityID string

	// Special and SpecialData define deck-local behavior (page name for
	// go-to-page, unused otherwise).
	Special     SpecialType
	SpecialData string

	// Service is the remote command identifier ("domain.service"). When
	// empty on an entity-bound button, homeassistant.toggle is used.
	Service     string
	ServiceData map[string]any

	// Text is the fixed display label.
	Text string

	// Delay, when non-zero, defers dispatch to release: the action fires
	// only if the key was held at least this long (hold-to-activate).
	Delay time.Duration
}

// TurnProperties is the numeric control state for a dial's rotary action.
//
// The invariant Min <= State <= Max holds at all times; every write is
// clamped. Step must be positive.
type TurnProperties struct {
	Min   float64
	Max   float64
	Step  float64
	State float64

	// ServiceAttribute names the service-call parameter the value maps to
	// (e.g. "value" for input_number.set_value).
	ServiceAttribute string
}

// Validate checks the bounds invariants.
func (p TurnProperties) Validate() error {
	if p.Step <= 0 {
		return fmt.Errorf("%w: step %g is not positive", ErrInvalidTurnProperties, p.Step)
	}
	if p.Min > p.Max {
		return fmt.Errorf("%w: min %g exceeds max %g", ErrInvalidTurnProperties, p.Min, p.Max)
	}
	return nil
}

// clamp bounds v to [Min, Max].
func (p TurnProperties) clamp(v float64) float64 {
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

// SetState writes a clamped value and returns what was stored.
func (p *TurnProperties) SetState(v float64) float64 {
	p.State = p.clamp(v)
	return p.State
}

// Apply adds delta steps to the current value, clamps, and returns the
// new value. A delta that would exceed a bound clamps exactly to it.
func (p *TurnProperties) Apply(delta float64) float64 {
	return p.SetState(p.State + delta*p.Step)
}

// TurnAction is a dial's rotary action: a service call parameterized by
// the dial's TurnProperties.
type TurnAction struct {
	Service    string
	Data       map[string]any
	Properties TurnProperties
}

// PushAction is a dial's press action.
type PushAction struct {
	Service string
	Data    map[string]any
}

// Dial is a control bound to one rotary+touch element.
//
// The dial does not own a persistent local truth: its TurnProperties are
// rehydrated from the entity store whenever it becomes visible or its
// entity changes remotely. The local copy is advisory until then.
type Dial struct {
	EntityID string
	Turn     *TurnAction
	Push     *PushAction
	Text     string

	// AllowTouchscreenEvents permits short-tap/long-press gestures to
	// drive the value to min/max.
	AllowTouchscreenEvents bool

	hydrated bool
}

// Invalidate marks the dial's local properties stale; the next use
// rehydrates them from the entity store.
func (d *Dial) Invalidate() {
	d.hydrated = false
}

// Hydrated reports whether the dial currently trusts its local properties.
func (d *Dial) Hydrated() bool {
	return d.hydrated
}

// HydrateFrom overwrites the dial's TurnProperties from an authoritative
// entity snapshot. Bounds absent from the attributes keep their
// configured values; the state is clamped into the resulting range.
func (d *Dial) HydrateFrom(e entity.Entity) {
	if d.Turn == nil {
		return
	}
	p := &d.Turn.Properties
	if v, ok := e.Attributes.Float("min"); ok {
		p.Min = v
	}
	if v, ok := e.Attributes.Float("max"); ok {
		p.Max = v
	}
	if v, ok := e.Attributes.Float("step"); ok && v > 0 {
		p.Step = v
	}
	if v, ok := e.NumericState(); ok {
		p.State = v
	}
	p.State = p.clamp(p.State)
	d.hydrated = true
}

// Page is an ordered set of buttons (by key index) and dials (by dial
// position) with a unique name.
type Page struct {
	Name    string
	Buttons []*Button
	Dials   []*Dial

	// CloseOnInactivity controls whether activity on this page arms the
	// return-to-home timer. Defaults to true in the layout loader.
	CloseOnInactivity bool
}

// invalidateDials marks every dial on the page for rehydration.
func (p *Page) invalidateDials() {
	for _, d := range p.Dials {
		d.Invalidate()
	}
}
