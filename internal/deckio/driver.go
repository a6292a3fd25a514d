package deckio

import "time"

// Driver abstracts the physical control surface: a grid of pressable
// keys, a row of push-rotary dials and a touch strip spanning them.
//
// Implementations deliver hardware events through the On* callbacks and
// accept drawing commands. Callbacks may be invoked from a device
// goroutine; registration must happen before the device starts
// delivering events.
type Driver interface {
	// KeyCount returns the number of physical keys.
	KeyCount() int
	// DialCount returns the number of physical dials.
	DialCount() int
	// TouchWidth returns the touch strip width in pixels.
	TouchWidth() int

	// OnKey registers the key press/release handler.
	OnKey(fn func(key int, pressed bool))
	// OnDial registers the dial handler. delta carries signed detents for
	// turns and is zero for pushes.
	OnDial(fn func(dial int, pushed bool, delta float64))
	// OnTouch registers the touch-strip handler. For drags xOut/yOut are
	// the lift coordinates; for taps held is the press duration.
	OnTouch(fn func(kind TouchKind, x, y, xOut, yOut int, held time.Duration))

	// SetKeyLabel draws a text label on a key.
	SetKeyLabel(key int, label string) error
	// SetDialLabel draws a text label on the touch-strip zone above a dial.
	SetDialLabel(dial int, label string) error
	// SetDisplayOn blanks or restores the panel.
	SetDisplayOn(on bool) error
	// SetBrightness sets the panel brightness percentage.
	SetBrightness(percent int) error

	// Close releases the device.
	Close() error
}

// TouchKind distinguishes touch-strip gestures at the driver boundary.
type TouchKind int

const (
	// TouchTap is a press-and-lift at one spot.
	TouchTap TouchKind = iota
	// TouchDrag is a swipe.
	TouchDrag
)
