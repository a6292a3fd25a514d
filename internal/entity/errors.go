package entity

import "errors"

// Domain errors for the entity package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, entity.ErrEntityNotFound) {
//	    // handle not found case
//	}
var (
	// ErrEntityNotFound is returned when an entity ID does not exist in the store.
	ErrEntityNotFound = errors.New("entity: not found")
)
