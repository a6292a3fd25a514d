package deck

import "errors"

// Domain errors for the deck package.
//
// Errors arising from malformed event input are returned to the hardware
// callback caller and never mutate navigation state. ErrRemoteCommand is
// recovered locally (logged, optimistic state left intact) and never
// reaches the hardware callback.
var (
	// ErrUnknownPage is returned when a navigation target matches neither
	// a home page nor an anonymous page.
	ErrUnknownPage = errors.New("deck: unknown page")

	// ErrControlIndex is returned when a key or dial index is out of range
	// for the currently visible page.
	ErrControlIndex = errors.New("deck: control index out of range")

	// ErrUnboundEntity is returned when an action requires an entity
	// identifier the control does not carry.
	ErrUnboundEntity = errors.New("deck: control has no bound entity")

	// ErrRemoteCommand wraps outbound command failures (remote store
	// unreachable or rejecting).
	ErrRemoteCommand = errors.New("deck: remote command failed")

	// ErrNoHomePages is returned at construction when a layout defines no
	// home pages. This is the only fatal class: it aborts startup.
	ErrNoHomePages = errors.New("deck: layout has no home pages")

	// ErrDuplicatePage is returned at construction when two pages share a name.
	ErrDuplicatePage = errors.New("deck: duplicate page name")

	// ErrInvalidSpecialType is returned when a button's special type tag is
	// not one of the closed set.
	ErrInvalidSpecialType = errors.New("deck: invalid special type")

	// ErrInvalidTurnProperties is returned when a dial's numeric bounds are
	// inconsistent (min > max, or step <= 0).
	ErrInvalidTurnProperties = errors.New("deck: invalid turn properties")
)
