package node

import "errors"

// Domain errors for the node package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, node.ErrNodeNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNodeNotFound is returned when a node ID does not exist in the store.
	ErrNodeNotFound = errors.New("node: not found")

	// ErrInvalidPower is returned when a power value is not ON or OFF.
	ErrInvalidPower = errors.New("node: invalid power value")

	// ErrInvalidDimLevel is returned when a dim level is outside 0-100.
	ErrInvalidDimLevel = errors.New("node: dim level must be between 0 and 100")

	// ErrInvalidProvenance is returned when a provenance value is not recognised.
	ErrInvalidProvenance = errors.New("node: invalid provenance")

	// ErrEmptyNodeID is returned when an operation is attempted with an empty node ID.
	ErrEmptyNodeID = errors.New("node: node id cannot be empty")
)
