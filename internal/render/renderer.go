package render

import (
	"fmt"
	"strconv"

	"github.com/rgoodwin/hadeck/internal/deck"
	"github.com/rgoodwin/hadeck/internal/deckio"
	"github.com/rgoodwin/hadeck/internal/entity"
)

// Logger defines the logging interface used by the Renderer.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// StateSource is the read capability the renderer needs from the
// entity store.
type StateSource interface {
	Get(id string) (entity.Entity, error)
}

// Renderer draws pages onto a deckio.Driver. It implements
// deck.Renderer.
//
// Labels come from the control's fixed text when set, else from the
// bound entity's state. A dial's label shows the current turn value
// when a rotary action is configured.
type Renderer struct {
	driver deckio.Driver
	states StateSource
	logger Logger
}

// New creates a Renderer.
func New(driver deckio.Driver, states StateSource) *Renderer {
	return &Renderer{driver: driver, states: states, logger: noopLogger{}}
}

// SetLogger sets the logger for the renderer.
func (r *Renderer) SetLogger(logger Logger) {
	r.logger = logger
}

// Render draws the given controls of the page.
func (r *Renderer) Render(page *deck.Page, dirty deck.Dirty) {
	if dirty.Full {
		r.renderFull(page)
		return
	}
	for _, k := range dirty.Keys {
		r.renderKey(page, k)
	}
	for _, d := range dirty.Dials {
		r.renderDial(page, d)
	}
}

func (r *Renderer) renderFull(page *deck.Page) {
	keys := r.driver.KeyCount()
	for k := 0; k < keys; k++ {
		r.renderKey(page, k)
	}
	dials := r.driver.DialCount()
	for d := 0; d < dials; d++ {
		r.renderDial(page, d)
	}
}

func (r *Renderer) renderKey(page *deck.Page, key int) {
	label := ""
	if key < len(page.Buttons) && page.Buttons[key] != nil {
		label = r.buttonLabel(page.Buttons[key])
	}
	if err := r.driver.SetKeyLabel(key, label); err != nil {
		r.logger.Warn("drawing key", "key", key, "error", err)
	}
}

func (r *Renderer) renderDial(page *deck.Page, dial int) {
	label := ""
	if dial < len(page.Dials) && page.Dials[dial] != nil {
		label = r.dialLabel(page.Dials[dial])
	}
	if err := r.driver.SetDialLabel(dial, label); err != nil {
		r.logger.Warn("drawing dial", "dial", dial, "error", err)
	}
}

func (r *Renderer) buttonLabel(b *deck.Button) string {
	if b.Text != "" {
		return b.Text
	}
	if b.EntityID == "" {
		return ""
	}
	e, err := r.states.Get(b.EntityID)
	if err != nil {
		return b.EntityID
	}
	return e.State
}

func (r *Renderer) dialLabel(d *deck.Dial) string {
	name := d.Text
	if name == "" {
		name = d.EntityID
	}
	if d.Turn == nil {
		return name
	}
	value := strconv.FormatFloat(d.Turn.Properties.State, 'f', -1, 64)
	if name == "" {
		return value
	}
	return fmt.Sprintf("%s\n%s", name, value)
}

// SetDisplayOn blanks or restores the panel.
func (r *Renderer) SetDisplayOn(on bool) {
	if err := r.driver.SetDisplayOn(on); err != nil {
		r.logger.Warn("setting display state", "on", on, "error", err)
	}
}
