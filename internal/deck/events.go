package deck

import "time"

// DialEventKind distinguishes a dial's rotary and press events.
type DialEventKind int

const (
	// DialTurn is a rotation by some number of detents (signed).
	DialTurn DialEventKind = iota
	// DialPush is a press of the dial.
	DialPush
)

// String implements fmt.Stringer for logging.
func (k DialEventKind) String() string {
	switch k {
	case DialTurn:
		return "turn"
	case DialPush:
		return "push"
	default:
		return "unknown"
	}
}

// TouchEventKind distinguishes touch-strip gestures.
type TouchEventKind int

const (
	// TouchTap is a press-and-lift at one spot. Held separates short
	// taps from long presses.
	TouchTap TouchEventKind = iota
	// TouchDrag is a swipe with distinct start and lift coordinates.
	TouchDrag
)

// String implements fmt.Stringer for logging.
func (k TouchEventKind) String() string {
	switch k {
	case TouchTap:
		return "tap"
	case TouchDrag:
		return "drag"
	default:
		return "unknown"
	}
}

// TouchEvent carries gesture coordinates in touch-strip pixels.
// XOut/YOut are the lift coordinates, only meaningful for drags.
// Held is how long the finger stayed down, only meaningful for taps.
type TouchEvent struct {
	X    int
	Y    int
	XOut int
	YOut int
	Held time.Duration
}
