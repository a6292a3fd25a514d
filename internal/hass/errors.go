package hass

import "errors"

var (
	// ErrNotConnected is returned when a command is issued while the
	// websocket is down.
	ErrNotConnected = errors.New("hass: not connected")

	// ErrAuthFailed is returned when the server rejects the access token.
	ErrAuthFailed = errors.New("hass: authentication failed")

	// ErrCommandFailed is returned when the server reports success=false
	// for a command result.
	ErrCommandFailed = errors.New("hass: command failed")

	// ErrClosed is returned when the client has been shut down.
	ErrClosed = errors.New("hass: client closed")
)
