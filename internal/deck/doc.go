// Package deck implements the navigation state machine and event
// dispatcher for a key/dial/touch-strip control surface.
//
// A Layout holds the configured pages and the navigation state: a home
// rotation index plus an optional detached page that transiently
// overrides it. The Controller serializes all mutations — hardware
// events, remote state notifications, API navigation and the
// return-to-home timer — under a single mutex, and executes side
// effects (renders, callbacks, outbound commands) only after each
// mutation commits.
//
// Dial values are optimistic: a turn moves the local value immediately
// and fires the matching remote command in the background; the
// authoritative state notification later confirms or corrects it.
package deck
