// Package hass maintains the persistent websocket session against a
// Home Assistant instance: authentication, state_changed subscription,
// full state dumps, outbound service calls, keepalive pings and
// reconnection with capped exponential backoff.
package hass
