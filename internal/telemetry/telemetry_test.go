package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestConnectDisabled(t *testing.T) {
	c := New(Config{Enabled: false})
	if err := c.Connect(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestWritesBeforeConnectAreNoOps(t *testing.T) {
	c := New(Config{Enabled: false})

	// Disabled telemetry must be safe to call from the hot path.
	c.WriteDialAdjust("light.a", 128)
	c.WriteEntityState("light.a", "on")
	c.WritePageView("Home")
	c.Flush()
	c.Close()
}

func TestConnectUnreachableEndpoint(t *testing.T) {
	c := New(Config{Enabled: true, URL: "http://127.0.0.1:1", Token: "t", Org: "o", Bucket: "b"})
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
	// A failed connect leaves the client in the no-op state.
	c.WriteDialAdjust("light.a", 1)
	c.Close()
}
