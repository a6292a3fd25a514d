// Package api serves the local control and inspection HTTP API:
// health, navigation state, page switching and entity history.
package api
