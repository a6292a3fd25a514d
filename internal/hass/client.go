package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rgoodwin/hadeck/internal/entity"
)

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Client.
type Options struct {
	// URL is the websocket endpoint. http/https schemes are rewritten to
	// ws/wss.
	URL   string
	Token string

	// PingInterval is the application-level keepalive period.
	PingInterval time.Duration

	// ReconnectInitialDelay and ReconnectMaxDelay bound the exponential
	// backoff between connection attempts.
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
}

func (o *Options) normalize() {
	o.URL = normalizeURL(o.URL)
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReconnectInitialDelay <= 0 {
		o.ReconnectInitialDelay = time.Second
	}
	if o.ReconnectMaxDelay <= 0 {
		o.ReconnectMaxDelay = time.Minute
	}
}

func normalizeURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}

// Client maintains a persistent authenticated websocket session against
// a Home Assistant instance.
//
// Run owns the connection lifecycle: dial, auth handshake, event
// subscription, state dump, read pump, and reconnection with capped
// exponential backoff. On every (re)connect the client resubscribes and
// refetches the full state dump before reporting connected, so callers
// always observe a coherent snapshot after an outage.
type Client struct {
	opts   Options
	logger Logger

	// writeMu serializes frame writes: gorilla connections support at
	// most one concurrent writer, and CallService, the keepalive ping
	// and session establishment all write from their own goroutines.
	writeMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	nextID    int
	pending   map[int]chan *envelope

	onStateChanged func(entity.StateChange)
	onStates       func([]*entity.Entity)
	onConnect      func()
	onDisconnect   func(err error)
}

// NewClient creates a Client. Call Run to start the session.
func NewClient(opts Options) *Client {
	opts.normalize()
	return &Client{
		opts:    opts,
		logger:  noopLogger{},
		nextID:  1,
		pending: make(map[int]chan *envelope),
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// SetOnStateChanged registers the handler for state_changed events.
// Called from the read pump goroutine; handlers must not block.
func (c *Client) SetOnStateChanged(fn func(entity.StateChange)) {
	c.mu.Lock()
	c.onStateChanged = fn
	c.mu.Unlock()
}

// SetOnStates registers the handler for full state dumps, delivered
// once after every successful (re)connect and after RefreshStates.
func (c *Client) SetOnStates(fn func([]*entity.Entity)) {
	c.mu.Lock()
	c.onStates = fn
	c.mu.Unlock()
}

// SetOnConnect registers a callback invoked after a session is fully
// established (authenticated, subscribed, states delivered).
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback invoked when an established
// session drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// Connected reports whether a session is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Run maintains the session until ctx is cancelled. Auth rejection is
// fatal; every other failure triggers a backed-off reconnect.
func (c *Client) Run(ctx context.Context) error {
	delay := c.opts.ReconnectInitialDelay
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrAuthFailed) {
			return err
		}
		if err != nil {
			c.logger.Warn("session ended, reconnecting", "error", err, "delay", delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.opts.ReconnectMaxDelay {
			delay = c.opts.ReconnectMaxDelay
		}
		if err == nil {
			delay = c.opts.ReconnectInitialDelay
		}
	}
}

// session runs one connection from dial to disconnect.
func (c *Client) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.opts.URL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.opts.URL, err)
	}
	defer conn.Close()

	if err := c.authenticate(conn); err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.establish(ctx); err != nil {
		c.teardown(err)
		return err
	}

	c.mu.Lock()
	c.connected = true
	onConnect := c.onConnect
	c.mu.Unlock()
	c.logger.Info("home assistant session established", "url", c.opts.URL)
	if onConnect != nil {
		onConnect()
	}

	err = c.readPump(ctx, conn)
	c.teardown(err)

	c.mu.Lock()
	onDisconnect := c.onDisconnect
	c.mu.Unlock()
	if onDisconnect != nil {
		onDisconnect(err)
	}
	return err
}

// authenticate performs the auth_required/auth/auth_ok handshake.
func (c *Client) authenticate(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	var hello envelope
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("reading auth_required: %w", err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("unexpected greeting %q", hello.Type)
	}

	if err := c.writeJSON(conn, authMessage{Type: "auth", AccessToken: c.opts.Token}); err != nil {
		return fmt.Errorf("sending auth: %w", err)
	}

	var reply envelope
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("reading auth reply: %w", err)
	}
	switch reply.Type {
	case "auth_ok":
		c.logger.Debug("authenticated", "ha_version", reply.HAVersion)
		return nil
	case "auth_invalid":
		return fmt.Errorf("%w: %s", ErrAuthFailed, reply.Message)
	default:
		return fmt.Errorf("unexpected auth reply %q", reply.Type)
	}
}

// establish subscribes to state_changed events and requests the initial
// state dump. The dump result is delivered through the pending map once
// the read pump starts, so the request is sent here and the pump routes
// the result.
func (c *Client) establish(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	subID := c.nextID
	c.nextID++
	c.mu.Unlock()

	if err := c.writeJSON(conn, subscribeEventsMessage{
		ID:        subID,
		Type:      "subscribe_events",
		EventType: "state_changed",
	}); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	var sub envelope
	if err := conn.ReadJSON(&sub); err != nil {
		return fmt.Errorf("reading subscribe result: %w", err)
	}
	if sub.Success == nil || !*sub.Success {
		return fmt.Errorf("%w: subscribe_events: %s", ErrCommandFailed, sub.Error.String())
	}

	return c.requestStates(conn)
}

// requestStates sends a get_states command; the result is routed to the
// OnStates handler by the read pump.
func (c *Client) requestStates(conn *websocket.Conn) error {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	statesCh := make(chan *envelope, 1)
	c.pending[id] = statesCh
	c.mu.Unlock()

	if err := c.writeJSON(conn, getStatesMessage{ID: id, Type: "get_states"}); err != nil {
		return fmt.Errorf("requesting states: %w", err)
	}
	// The result arrives asynchronously through the read pump; deliver it
	// to the handler from a helper goroutine so establish can return.
	go c.awaitStates(statesCh)
	return nil
}

func (c *Client) awaitStates(ch chan *envelope) {
	env, ok := <-ch
	if !ok || env == nil {
		return
	}
	if env.Success != nil && !*env.Success {
		c.logger.Error("get_states failed", "error", env.Error.String())
		return
	}

	var states []wireState
	if err := json.Unmarshal(env.Result, &states); err != nil {
		c.logger.Error("decoding state dump", "error", err)
		return
	}
	entities := make([]*entity.Entity, 0, len(states))
	for i := range states {
		if e := states[i].toEntity(); e != nil {
			entities = append(entities, e)
		}
	}

	c.mu.Lock()
	onStates := c.onStates
	c.mu.Unlock()
	c.logger.Debug("state dump received", "entities", len(entities))
	if onStates != nil {
		onStates(entities)
	}
}

// RefreshStates requests a fresh full state dump over the current
// session, delivered via the OnStates handler.
func (c *Client) RefreshStates() error {
	c.mu.Lock()
	if !c.connected || c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()
	return c.requestStates(conn)
}

// CallService invokes a remote service. service is "domain.service";
// data becomes service_data; entityID (when set) targets the call. The
// call blocks until the server acknowledges the result or ctx expires.
func (c *Client) CallService(ctx context.Context, service string, data map[string]any, entityID string) error {
	domain, name, ok := strings.Cut(service, ".")
	if !ok {
		return fmt.Errorf("%w: service %q is not domain.service", ErrCommandFailed, service)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.connected || c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	id := c.nextID
	c.nextID++
	resultCh := make(chan *envelope, 1)
	c.pending[id] = resultCh
	c.mu.Unlock()

	msg := callServiceMessage{
		ID:          id,
		Type:        "call_service",
		Domain:      domain,
		Service:     name,
		ServiceData: data,
	}
	if entityID != "" {
		msg.Target = &serviceTarget{EntityID: entityID}
	}
	if err := c.writeJSON(conn, msg); err != nil {
		c.forget(id)
		return fmt.Errorf("sending call_service: %w", err)
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case env, ok := <-resultCh:
		if !ok || env == nil {
			return ErrNotConnected
		}
		if env.Success != nil && !*env.Success {
			return fmt.Errorf("%w: %s: %s", ErrCommandFailed, service, env.Error.String())
		}
		return nil
	}
}

// writeJSON sends one frame under the write mutex.
func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *Client) forget(id int) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readPump reads frames until the connection fails or ctx is cancelled,
// routing events to handlers and results to pending waiters. It also
// drives the application-level keepalive ping.
func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) error {
	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.pingLoop(ctx, conn, pingDone)

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading frame: %w", err)
		}

		switch env.Type {
		case "event":
			c.handleEvent(env.Event)
		case "result", "pong":
			c.mu.Lock()
			ch, ok := c.pending[env.ID]
			delete(c.pending, env.ID)
			c.mu.Unlock()
			if ok {
				e := env
				ch <- &e
			}
		default:
			c.logger.Debug("unhandled frame", "type", env.Type)
		}
	}
}

// pingLoop sends application-level ping frames; a missing pong surfaces
// as a read error on the pump when the connection is actually dead.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			c.mu.Lock()
			id := c.nextID
			c.nextID++
			c.mu.Unlock()
			if err := c.writeJSON(conn, map[string]any{"id": id, "type": "ping"}); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// handleEvent decodes and dispatches a state_changed event. Handler
// panics are contained so a bad payload never kills the session.
func (c *Client) handleEvent(raw json.RawMessage) {
	var ev stateChangedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.logger.Warn("decoding event", "error", err)
		return
	}
	if ev.EventType != "state_changed" {
		return
	}

	c.mu.Lock()
	handler := c.onStateChanged
	c.mu.Unlock()
	if handler == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("state handler panicked", "entity_id", ev.Data.EntityID, "panic", r)
		}
	}()
	handler(entity.StateChange{
		EntityID: ev.Data.EntityID,
		OldState: ev.Data.OldState.toEntity(),
		NewState: ev.Data.NewState.toEntity(),
	})
}

// teardown marks the session down and fails all pending waiters.
func (c *Client) teardown(err error) {
	c.mu.Lock()
	c.connected = false
	c.conn = nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Debug("session torn down", "error", err)
	}
}

// Close shuts the client down. Run returns once the context it was
// given is cancelled; Close only marks the client unusable for new
// commands.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
