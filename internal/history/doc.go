// Package history persists entity state transitions to a bounded local
// sqlite table, served newest-first through the local API.
package history
