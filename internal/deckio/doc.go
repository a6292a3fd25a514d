// Package deckio defines the hardware boundary for the control surface
// and provides an in-memory mock implementation for development and
// tests. Real device backends implement Driver.
package deckio
