package deck

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rgoodwin/hadeck/internal/entity"
)

// Logger defines the logging interface used by the Controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StateSource is the read capability the controller needs from the
// entity store.
type StateSource interface {
	Get(id string) (entity.Entity, error)
}

// ServiceCaller issues commands to the remote entity store. Calls are
// fire-and-forget from the controller's perspective: a slow or failed
// command never blocks event dispatch.
type ServiceCaller interface {
	CallService(ctx context.Context, service string, data map[string]any, entityID string) error
}

// Dirty identifies which controls of a page need redrawing.
type Dirty struct {
	Full  bool
	Keys  []int
	Dials []int
}

// Empty reports whether there is nothing to draw.
func (d Dirty) Empty() bool {
	return !d.Full && len(d.Keys) == 0 && len(d.Dials) == 0
}

// Renderer receives render triggers after every visible mutation.
// Implementations must be safe for concurrent use: triggers are issued
// outside the controller mutex.
type Renderer interface {
	Render(page *Page, dirty Dirty)
	SetDisplayOn(on bool)
}

// Default policy constants, overridable through Options. The touch-zone
// width and drag threshold are pinned by the acceptance tests.
const (
	defaultTouchWidth    = 800
	defaultLongPress     = 500 * time.Millisecond
	defaultDragThreshold = 50
	callTimeout          = 10 * time.Second
)

// Options configures a Controller.
type Options struct {
	Layout   *Layout
	States   StateSource
	Caller   ServiceCaller
	Renderer Renderer

	// ReturnToHomePage / ReturnToHomeAfter configure the inactivity
	// auto-return. Empty page or zero duration disables it.
	ReturnToHomePage  string
	ReturnToHomeAfter time.Duration

	// TouchWidth is the touch strip width in pixels (defaults to 800).
	TouchWidth int
	// LongPress is the long-press threshold (defaults to 500ms).
	LongPress time.Duration
	// DragThreshold is the page-switch drag distance in pixels (defaults to 50).
	DragThreshold int
}

// press records an in-flight key press.
type press struct {
	at         time.Time
	page       *Page
	onDetached bool
}

// serviceCall is a deferred outbound command.
type serviceCall struct {
	service  string
	data     map[string]any
	entityID string
}

// dialAdjust reports a locally applied dial value, for telemetry hooks.
type dialAdjust struct {
	entityID string
	value    float64
}

// fx collects the side effects of one dispatch, executed after the
// controller mutex is released: renders, callbacks and outbound calls
// never hold the mutual-exclusion domain.
type fx struct {
	page      *Page
	dirty     Dirty
	navigated bool
	display   *bool
	reload    bool
	calls     []serviceCall
	adjusts   []dialAdjust
}

// Controller is the event dispatcher: it translates hardware and remote
// events into navigation mutations and outbound commands.
//
// All navigator and tracker mutations happen under one mutex — hardware
// callbacks, remote notifications and timer fires serialize here, and
// each callback body runs to completion before the next mutation.
// Rendering and outbound command issuance proceed after the mutation
// commits.
type Controller struct {
	mu      sync.Mutex
	layout  *Layout
	tracker *Tracker
	pressed map[int]press

	states   StateSource
	caller   ServiceCaller
	renderer Renderer
	logger   Logger

	touchWidth    int
	longPress     time.Duration
	dragThreshold int

	displayOff bool
	closed     bool

	onNavigate   func(*Page)
	onReload     func()
	onDialAdjust func(entityID string, value float64)
}

// New creates a Controller.
//
// Configuration errors — no home page, or a return-to-home page that
// does not exist — are reported here and should abort startup; no
// condition after construction is fatal.
func New(opts Options) (*Controller, error) {
	if opts.Layout == nil {
		return nil, fmt.Errorf("deck: layout is required")
	}
	if opts.States == nil {
		return nil, fmt.Errorf("deck: state source is required")
	}
	if opts.Caller == nil {
		return nil, fmt.Errorf("deck: service caller is required")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("deck: renderer is required")
	}
	if opts.ReturnToHomePage != "" && !opts.Layout.HasPage(opts.ReturnToHomePage) {
		return nil, fmt.Errorf("%w: return-to-home page %q", ErrUnknownPage, opts.ReturnToHomePage)
	}

	touchWidth := opts.TouchWidth
	if touchWidth <= 0 {
		touchWidth = defaultTouchWidth
	}
	longPress := opts.LongPress
	if longPress <= 0 {
		longPress = defaultLongPress
	}
	dragThreshold := opts.DragThreshold
	if dragThreshold <= 0 {
		dragThreshold = defaultDragThreshold
	}

	return &Controller{
		layout:        opts.Layout,
		tracker:       newTracker(opts.ReturnToHomePage, opts.ReturnToHomeAfter),
		pressed:       make(map[int]press),
		states:        opts.States,
		caller:        opts.Caller,
		renderer:      opts.Renderer,
		logger:        noopLogger{},
		touchWidth:    touchWidth,
		longPress:     longPress,
		dragThreshold: dragThreshold,
	}, nil
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// SetOnNavigate registers a callback invoked (outside the mutex) after
// every page switch, including timer-driven ones.
func (c *Controller) SetOnNavigate(fn func(page *Page)) {
	c.mu.Lock()
	c.onNavigate = fn
	c.mu.Unlock()
}

// SetOnReload registers the handler for the reload special type,
// typically a full state refetch.
func (c *Controller) SetOnReload(fn func()) {
	c.mu.Lock()
	c.onReload = fn
	c.mu.Unlock()
}

// SetOnDialAdjust registers a hook observing locally applied dial
// values, used for telemetry.
func (c *Controller) SetOnDialAdjust(fn func(entityID string, value float64)) {
	c.mu.Lock()
	c.onDialAdjust = fn
	c.mu.Unlock()
}

// HandleKey dispatches a press/release hardware event.
//
// Navigation special types act on press-down; command buttons act on
// release to avoid double-firing while held; a button with a delay acts
// on release only if it was held at least that long.
func (c *Controller) HandleKey(key int, pressed bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if eff, woke := c.wakeLocked(); woke {
		c.mu.Unlock()
		c.apply(eff)
		return nil
	}

	btn, page, err := c.layout.button(key)
	if err != nil {
		if !pressed {
			delete(c.pressed, key)
		}
		c.mu.Unlock()
		return err
	}
	wasDetached := c.layout.Detached() != nil

	if pressed {
		c.pressed[key] = press{at: time.Now(), page: page, onDetached: wasDetached}
		if btn.Special == SpecialNone || btn.Delay > 0 {
			// Command buttons fire on release; delayed buttons wait for
			// the hold threshold.
			c.mu.Unlock()
			return nil
		}
		eff, err := c.runSpecialLocked(btn)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		c.armLocked()
		c.mu.Unlock()
		c.apply(eff)
		return nil
	}

	// Release completes the press.
	pr, ok := c.pressed[key]
	delete(c.pressed, key)
	if !ok || pr.page != page {
		// No matching press, or the press already navigated away.
		c.mu.Unlock()
		return nil
	}
	if btn.Delay > 0 && time.Since(pr.at) < btn.Delay {
		c.logger.Debug("press below hold threshold, discarded",
			"key", key, "page", page.Name)
		c.mu.Unlock()
		return nil
	}

	var eff fx
	switch {
	case btn.Special != SpecialNone && btn.Delay > 0:
		eff, err = c.runSpecialLocked(btn)
	case btn.Special == SpecialNone:
		eff, err = c.runCommandLocked(btn)
	}
	if err != nil {
		c.mu.Unlock()
		return err
	}

	// A press that started on a detached page and did not itself navigate
	// closes the detached page.
	if pr.onDetached && c.layout.Detached() != nil {
		c.layout.CloseDetached()
		eff.page = c.layout.CurrentPage()
		eff.dirty = Dirty{Full: true}
		eff.navigated = true
	}

	c.armLocked()
	c.mu.Unlock()
	c.apply(eff)
	return nil
}

// runSpecialLocked executes a special-type button. Special-type buttons
// never issue remote commands.
func (c *Controller) runSpecialLocked(btn *Button) (fx, error) {
	switch btn.Special {
	case SpecialGoToPage:
		p, err := c.layout.ToPage(btn.SpecialData)
		if err != nil {
			return fx{}, err
		}
		return fx{page: p, dirty: Dirty{Full: true}, navigated: true}, nil

	case SpecialClosePage:
		if !c.layout.CloseDetached() {
			return fx{}, nil
		}
		return fx{page: c.layout.CurrentPage(), dirty: Dirty{Full: true}, navigated: true}, nil

	case SpecialNextPage:
		return fx{page: c.layout.NextPage(), dirty: Dirty{Full: true}, navigated: true}, nil

	case SpecialPreviousPage:
		return fx{page: c.layout.PreviousPage(), dirty: Dirty{Full: true}, navigated: true}, nil

	case SpecialTurnOff:
		c.displayOff = true
		off := false
		return fx{display: &off}, nil

	case SpecialReload:
		return fx{reload: true, page: c.layout.CurrentPage(), dirty: Dirty{Full: true}}, nil

	case SpecialEmpty:
		return fx{}, nil

	default:
		return fx{}, nil
	}
}

// runCommandLocked builds the outbound command for an entity-bound
// button. Text-only buttons are no-ops.
func (c *Controller) runCommandLocked(btn *Button) (fx, error) {
	if btn.EntityID == "" && btn.Service == "" {
		return fx{}, nil
	}

	service := btn.Service
	if service == "" {
		// Entity-bound button with no explicit service: toggle it.
		service = "homeassistant.toggle"
	}

	return fx{calls: []serviceCall{{
		service:  service,
		data:     copyData(btn.ServiceData),
		entityID: btn.EntityID,
	}}}, nil
}

// armLocked feeds the any-activity transition, gated by the page left
// visible after the event. Detached pages are always eligible; home
// pages only when their close-on-inactivity flag is set, so an event
// that navigates onto an exempt page arms nothing.
func (c *Controller) armLocked() {
	if !c.tracker.Enabled() {
		return
	}
	if c.layout.Detached() == nil && !c.layout.CurrentPage().CloseOnInactivity {
		// Exempt page: an already-armed timer continues independently.
		return
	}
	c.tracker.Arm(c.fireInactivity)
}

// fireInactivity runs on a timer goroutine when the inactivity deadline
// elapses. It re-acquires the mutex, proves the arming is still current,
// then closes the detached page if one is open, else returns to the
// configured home page.
func (c *Controller) fireInactivity(gen uint64) {
	c.mu.Lock()
	if c.closed || !c.tracker.Latest(gen) {
		c.mu.Unlock()
		return
	}
	c.tracker.Settle()

	var page *Page
	if c.layout.CloseDetached() {
		page = c.layout.CurrentPage()
	} else {
		p, err := c.layout.ToPage(c.tracker.homePage)
		if err != nil {
			// Home page existence is validated at construction.
			c.logger.Error("inactivity return failed", "error", err)
			c.mu.Unlock()
			return
		}
		page = p
	}
	c.logger.Debug("inactivity timer fired, returning home", "page", page.Name)
	c.mu.Unlock()

	c.apply(fx{page: page, dirty: Dirty{Full: true}, navigated: true})
}

// wakeLocked swallows the first event after a turn-off: the display
// wakes and the event performs no other action.
func (c *Controller) wakeLocked() (fx, bool) {
	if !c.displayOff {
		return fx{}, false
	}
	c.displayOff = false
	on := true
	return fx{display: &on, page: c.layout.CurrentPage(), dirty: Dirty{Full: true}}, true
}

// hydrateLocked lazily refreshes a dial's TurnProperties from the entity
// store. Called before the first use after the dial becomes visible.
func (c *Controller) hydrateLocked(d *Dial) {
	if d.Turn == nil || d.hydrated {
		return
	}
	if d.EntityID != "" {
		if e, err := c.states.Get(d.EntityID); err == nil {
			d.HydrateFrom(e)
			return
		}
		c.logger.Debug("dial entity not in store, using configured bounds", "entity_id", d.EntityID)
	}
	d.hydrated = true
}

// OnEntityUpdated reacts to an applied remote state change: every
// visible control bound to the entity is rehydrated and marked for
// re-render. This is the only path by which TurnProperties become
// authoritative; optimistic local values are overwritten here.
func (c *Controller) OnEntityUpdated(entityID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	page := c.layout.CurrentPage()
	var dirty Dirty
	for i, b := range page.Buttons {
		if b.EntityID == entityID {
			dirty.Keys = append(dirty.Keys, i)
		}
	}
	for i, d := range page.Dials {
		if d.EntityID != entityID {
			continue
		}
		if e, err := c.states.Get(entityID); err == nil {
			d.HydrateFrom(e)
		}
		dirty.Dials = append(dirty.Dials, i)
	}
	c.mu.Unlock()

	if !dirty.Empty() {
		c.apply(fx{page: page, dirty: dirty})
	}
}

// NavigateTo switches pages on behalf of a non-hardware caller (the
// local API). It does not feed the inactivity tracker.
func (c *Controller) NavigateTo(name string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	p, err := c.layout.ToPage(name)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.apply(fx{page: p, dirty: Dirty{Full: true}, navigated: true})
	return nil
}

// Refresh triggers a full render of the current page, used after the
// initial state dump and after reconnect refetches.
func (c *Controller) Refresh() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	page := c.layout.CurrentPage()
	page.invalidateDials()
	c.mu.Unlock()

	c.apply(fx{page: page, dirty: Dirty{Full: true}})
}

// Status is a point-in-time snapshot for the local API.
type Status struct {
	Page          string    `json:"page"`
	Detached      bool      `json:"detached"`
	HomeIndex     int       `json:"home_index"`
	Pages         []string  `json:"pages"`
	TimerArmed    bool      `json:"timer_armed"`
	TimerDeadline time.Time `json:"timer_deadline,omitempty"`
	DisplayOn     bool      `json:"display_on"`
}

// CurrentStatus returns a snapshot of the navigation state.
func (c *Controller) CurrentStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Page:          c.layout.CurrentPage().Name,
		Detached:      c.layout.Detached() != nil,
		HomeIndex:     c.layout.CurrentIndex(),
		Pages:         c.layout.PageNames(),
		TimerArmed:    c.tracker.Armed(),
		TimerDeadline: c.tracker.Deadline(),
		DisplayOn:     !c.displayOff,
	}
}

// Close cancels the pending return-to-home timer and stops accepting
// callbacks. Outstanding fire-and-forget commands are not cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.tracker.Disarm()
	c.mu.Unlock()
}

// apply executes a dispatch's side effects outside the mutex. The hook
// registrations are snapshotted under the mutex first, so SetOn* setters
// stay safe to call while events are flowing.
func (c *Controller) apply(eff fx) {
	c.mu.Lock()
	renderer := c.renderer
	onNavigate := c.onNavigate
	onReload := c.onReload
	onDialAdjust := c.onDialAdjust
	c.mu.Unlock()

	if eff.display != nil {
		renderer.SetDisplayOn(*eff.display)
	}
	if eff.page != nil && !eff.dirty.Empty() {
		renderer.Render(eff.page, eff.dirty)
	}
	if eff.navigated && onNavigate != nil {
		onNavigate(eff.page)
	}
	if eff.reload && onReload != nil {
		onReload()
	}
	for _, call := range eff.calls {
		go c.issue(call)
	}
	if onDialAdjust != nil {
		for _, a := range eff.adjusts {
			onDialAdjust(a.entityID, a.value)
		}
	}
}

// issue sends one fire-and-forget command. Failures are logged and never
// roll back the optimistic local value: the next authoritative state
// update corrects it.
func (c *Controller) issue(call serviceCall) {
	c.mu.Lock()
	logger := c.logger
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if err := c.caller.CallService(ctx, call.service, call.data, call.entityID); err != nil {
		logger.Warn("remote command failed",
			"service", call.service,
			"entity_id", call.entityID,
			"error", fmt.Errorf("%w: %w", ErrRemoteCommand, err),
		)
	}
}

// copyData shallow-copies service data so dispatches never share maps
// with configuration.
func copyData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
