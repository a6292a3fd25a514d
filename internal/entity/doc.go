// Package entity provides the in-memory Entity State Store.
//
// The store is the local mirror of the remote Home Assistant entity
// registry: an opaque mapping from entity identifier to state and
// attributes. It is authoritative within hadeck — any optimistic value a
// control applies locally is superseded the moment a state_changed
// notification for that entity lands here.
//
// The store deliberately has no persistence and no transport knowledge;
// the hass package feeds it and the deck core reads it through the
// narrow Get capability.
package entity
