package hass

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rgoodwin/hadeck/internal/entity"
)

var upgrader = websocket.Upgrader{}

// fakeHA is a minimal Home Assistant websocket endpoint for tests.
type fakeHA struct {
	t     *testing.T
	token string

	// events receives frames to push to the connected client.
	events chan any
	// calls records call_service frames.
	calls chan callServiceMessage
	// drops kills the active connection, forcing a reconnect.
	drops chan struct{}
}

func newFakeHA(t *testing.T, token string) *fakeHA {
	return &fakeHA{
		t:      t,
		token:  token,
		events: make(chan any, 8),
		calls:  make(chan callServiceMessage, 8),
		drops:  make(chan struct{}),
	}
}

func (f *fakeHA) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.WriteJSON(map[string]any{"type": "auth_required", "ha_version": "2024.1"})

	var auth authMessage
	if err := conn.ReadJSON(&auth); err != nil {
		return
	}
	if auth.AccessToken != f.token {
		conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "bad token"})
		return
	}
	conn.WriteJSON(map[string]any{"type": "auth_ok", "ha_version": "2024.1"})

	// Pump server-initiated frames alongside request handling.
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-f.drops:
				conn.Close()
				return
			case frame := <-f.events:
				conn.WriteJSON(frame)
			}
		}
	}()

	for {
		var raw map[string]json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			return
		}
		var msgType string
		json.Unmarshal(raw["type"], &msgType)
		var id int
		json.Unmarshal(raw["id"], &id)

		switch msgType {
		case "subscribe_events":
			conn.WriteJSON(map[string]any{"id": id, "type": "result", "success": true})
		case "get_states":
			conn.WriteJSON(map[string]any{
				"id": id, "type": "result", "success": true,
				"result": []map[string]any{
					{"entity_id": "light.a", "state": "on", "attributes": map[string]any{"brightness": 128}},
					{"entity_id": "sensor.t", "state": 21.5},
				},
			})
		case "call_service":
			var msg callServiceMessage
			data, _ := json.Marshal(raw)
			json.Unmarshal(data, &msg)
			f.calls <- msg
			conn.WriteJSON(map[string]any{"id": id, "type": "result", "success": true})
		case "ping":
			conn.WriteJSON(map[string]any{"id": id, "type": "pong"})
		}
	}
}

func startClient(t *testing.T, f *fakeHA, token string) (*Client, context.CancelFunc) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)

	client := NewClient(Options{
		URL:                   srv.URL,
		Token:                 token,
		PingInterval:          time.Hour,
		ReconnectInitialDelay: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go client.Run(ctx)
	return client, cancel
}

func TestClientRewritesHTTPSchemes(t *testing.T) {
	if got := normalizeURL("http://ha.local:8123/api/websocket"); !strings.HasPrefix(got, "ws://") {
		t.Errorf("http rewrite = %q", got)
	}
	if got := normalizeURL("https://ha.local/api/websocket"); !strings.HasPrefix(got, "wss://") {
		t.Errorf("https rewrite = %q", got)
	}
	if got := normalizeURL("ws://ha.local"); got != "ws://ha.local" {
		t.Errorf("ws passthrough = %q", got)
	}
}

func TestClientConnectsAndDeliversStateDump(t *testing.T) {
	fake := newFakeHA(t, "secret")
	states := make(chan []*entity.Entity, 1)

	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	client := NewClient(Options{URL: srv.URL, Token: "secret", PingInterval: time.Hour})
	client.SetOnStates(func(es []*entity.Entity) { states <- es })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go client.Run(ctx)

	select {
	case es := <-states:
		if len(es) != 2 {
			t.Fatalf("state dump has %d entities, want 2", len(es))
		}
		if es[0].ID != "light.a" || es[0].State != "on" {
			t.Fatalf("entity 0 = %+v", es[0])
		}
		// Numeric state values normalize to strings.
		if es[1].State != "21.5" {
			t.Fatalf("numeric state = %q, want \"21.5\"", es[1].State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("state dump never delivered")
	}

	if !client.Connected() {
		t.Fatal("client should report connected")
	}
}

func TestClientDispatchesStateChangedEvents(t *testing.T) {
	fake := newFakeHA(t, "secret")
	client, _ := startClient(t, fake, "secret")

	changes := make(chan entity.StateChange, 1)
	client.SetOnStateChanged(func(ch entity.StateChange) { changes <- ch })

	waitConnected(t, client)
	fake.events <- map[string]any{
		"id": 1, "type": "event",
		"event": map[string]any{
			"event_type": "state_changed",
			"data": map[string]any{
				"entity_id": "light.a",
				"old_state": map[string]any{"entity_id": "light.a", "state": "off"},
				"new_state": map[string]any{"entity_id": "light.a", "state": "on"},
			},
		},
	}

	select {
	case ch := <-changes:
		if ch.EntityID != "light.a" {
			t.Fatalf("entity = %q", ch.EntityID)
		}
		if ch.OldState == nil || ch.OldState.State != "off" {
			t.Fatalf("old state = %+v", ch.OldState)
		}
		if ch.NewState == nil || ch.NewState.State != "on" {
			t.Fatalf("new state = %+v", ch.NewState)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("state change never dispatched")
	}
}

func TestClientCallService(t *testing.T) {
	fake := newFakeHA(t, "secret")
	client, _ := startClient(t, fake, "secret")
	waitConnected(t, client)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := client.CallService(ctx, "light.turn_on", map[string]any{"brightness": 200}, "light.a")
	if err != nil {
		t.Fatalf("CallService: %v", err)
	}

	select {
	case msg := <-fake.calls:
		if msg.Domain != "light" || msg.Service != "turn_on" {
			t.Fatalf("call = %s.%s", msg.Domain, msg.Service)
		}
		if msg.Target == nil || msg.Target.EntityID != "light.a" {
			t.Fatalf("target = %+v", msg.Target)
		}
	case <-time.After(time.Second):
		t.Fatal("server never saw the call")
	}
}

func TestClientCallServiceConcurrent(t *testing.T) {
	fake := newFakeHA(t, "secret")
	fake.calls = make(chan callServiceMessage, 256)
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	// A short keepalive interval has ping frames interleave with the
	// service calls on the same connection.
	client := NewClient(Options{
		URL:                   srv.URL,
		Token:                 "secret",
		PingInterval:          5 * time.Millisecond,
		ReconnectInitialDelay: 10 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go client.Run(ctx)
	waitConnected(t, client)

	const workers, perWorker = 8, 25
	errs := make(chan error, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				callCtx, done := context.WithTimeout(ctx, 2*time.Second)
				errs <- client.CallService(callCtx, "light.toggle", nil, "light.a")
				done()
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("CallService: %v", err)
		}
	}
	if got := len(fake.calls); got != workers*perWorker {
		t.Fatalf("server saw %d calls, want %d", got, workers*perWorker)
	}
}

func TestClientCallServiceRejectsBadServiceName(t *testing.T) {
	client := NewClient(Options{URL: "ws://localhost:1", Token: "x"})
	err := client.CallService(context.Background(), "toggle", nil, "light.a")
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("expected ErrCommandFailed, got %v", err)
	}
}

func TestClientCallServiceWhenDisconnected(t *testing.T) {
	client := NewClient(Options{URL: "ws://localhost:1", Token: "x"})
	err := client.CallService(context.Background(), "light.toggle", nil, "light.a")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClientReconnectsAndRefetchesStates(t *testing.T) {
	fake := newFakeHA(t, "secret")
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	states := make(chan int, 4)
	disconnects := make(chan error, 4)

	client := NewClient(Options{
		URL:                   srv.URL,
		Token:                 "secret",
		PingInterval:          time.Hour,
		ReconnectInitialDelay: 10 * time.Millisecond,
	})
	client.SetOnStates(func(es []*entity.Entity) { states <- len(es) })
	client.SetOnDisconnect(func(err error) { disconnects <- err })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go client.Run(ctx)

	waitStates := func(what string) {
		select {
		case <-states:
		case <-time.After(2 * time.Second):
			t.Fatalf("no state dump after %s", what)
		}
	}
	waitStates("initial connect")

	fake.drops <- struct{}{}
	select {
	case <-disconnects:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect callback never fired")
	}

	// The new session redelivers a full dump.
	waitStates("reconnect")
	waitConnected(t, client)
}

func TestClientAuthFailureIsFatal(t *testing.T) {
	fake := newFakeHA(t, "secret")
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	client := NewClient(Options{URL: srv.URL, Token: "wrong"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := client.Run(ctx)
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestFlexStringNormalizesWireValues(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"on"`, "on"},
		{`21.5`, "21.5"},
		{`true`, "true"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var f FlexString
		if err := json.Unmarshal([]byte(tt.raw), &f); err != nil {
			t.Errorf("unmarshal %s: %v", tt.raw, err)
			continue
		}
		if string(f) != tt.want {
			t.Errorf("FlexString(%s) = %q, want %q", tt.raw, f, tt.want)
		}
	}
}

func waitConnected(t *testing.T, client *Client) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !client.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("client never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
