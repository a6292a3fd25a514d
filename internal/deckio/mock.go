package deckio

import (
	"sync"
	"time"
)

// MockDriver is an in-memory Driver for development and tests. It
// records every drawing command and exposes Press/Turn/Push/Touch
// methods to inject hardware events.
type MockDriver struct {
	mu sync.Mutex

	keys       int
	dials      int
	touchWidth int

	keyLabels  map[int]string
	dialLabels map[int]string
	displayOn  bool
	brightness int
	closed     bool

	onKey   func(key int, pressed bool)
	onDial  func(dial int, pushed bool, delta float64)
	onTouch func(kind TouchKind, x, y, xOut, yOut int, held time.Duration)
}

// NewMockDriver creates a mock surface with the Stream Deck Plus
// geometry: 8 keys, 4 dials, an 800px touch strip.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		keys:       8,
		dials:      4,
		touchWidth: 800,
		keyLabels:  make(map[int]string),
		dialLabels: make(map[int]string),
		displayOn:  true,
		brightness: 100,
	}
}

func (m *MockDriver) KeyCount() int   { return m.keys }
func (m *MockDriver) DialCount() int  { return m.dials }
func (m *MockDriver) TouchWidth() int { return m.touchWidth }

func (m *MockDriver) OnKey(fn func(key int, pressed bool)) {
	m.mu.Lock()
	m.onKey = fn
	m.mu.Unlock()
}

func (m *MockDriver) OnDial(fn func(dial int, pushed bool, delta float64)) {
	m.mu.Lock()
	m.onDial = fn
	m.mu.Unlock()
}

func (m *MockDriver) OnTouch(fn func(kind TouchKind, x, y, xOut, yOut int, held time.Duration)) {
	m.mu.Lock()
	m.onTouch = fn
	m.mu.Unlock()
}

func (m *MockDriver) SetKeyLabel(key int, label string) error {
	m.mu.Lock()
	m.keyLabels[key] = label
	m.mu.Unlock()
	return nil
}

func (m *MockDriver) SetDialLabel(dial int, label string) error {
	m.mu.Lock()
	m.dialLabels[dial] = label
	m.mu.Unlock()
	return nil
}

func (m *MockDriver) SetDisplayOn(on bool) error {
	m.mu.Lock()
	m.displayOn = on
	m.mu.Unlock()
	return nil
}

func (m *MockDriver) SetBrightness(percent int) error {
	m.mu.Lock()
	m.brightness = percent
	m.mu.Unlock()
	return nil
}

func (m *MockDriver) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Press injects a key press or release.
func (m *MockDriver) Press(key int, pressed bool) {
	m.mu.Lock()
	fn := m.onKey
	m.mu.Unlock()
	if fn != nil {
		fn(key, pressed)
	}
}

// Turn injects a dial rotation of delta detents.
func (m *MockDriver) Turn(dial int, delta float64) {
	m.mu.Lock()
	fn := m.onDial
	m.mu.Unlock()
	if fn != nil {
		fn(dial, false, delta)
	}
}

// Push injects a dial press.
func (m *MockDriver) Push(dial int) {
	m.mu.Lock()
	fn := m.onDial
	m.mu.Unlock()
	if fn != nil {
		fn(dial, true, 0)
	}
}

// Touch injects a touch gesture.
func (m *MockDriver) Touch(kind TouchKind, x, y, xOut, yOut int, held time.Duration) {
	m.mu.Lock()
	fn := m.onTouch
	m.mu.Unlock()
	if fn != nil {
		fn(kind, x, y, xOut, yOut, held)
	}
}

// KeyLabel returns the last label drawn on a key.
func (m *MockDriver) KeyLabel(key int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keyLabels[key]
}

// DialLabel returns the last label drawn on a dial zone.
func (m *MockDriver) DialLabel(dial int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dialLabels[dial]
}

// DisplayOn reports the panel state.
func (m *MockDriver) DisplayOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.displayOn
}

// Brightness reports the last brightness set.
func (m *MockDriver) Brightness() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brightness
}

// Closed reports whether Close was called.
func (m *MockDriver) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
