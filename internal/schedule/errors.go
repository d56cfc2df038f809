package schedule

import "errors"

// Domain errors for the schedule package.
var (
	// ErrEmptyNodeID is returned when an entry does not name a node.
	ErrEmptyNodeID = errors.New("schedule: node id cannot be empty")

	// ErrInvalidAction is returned when an entry's action is not on or off.
	ErrInvalidAction = errors.New("schedule: action must be on or off")

	// ErrInvalidDimLevel is returned when an entry's dim level is outside 0-100.
	ErrInvalidDimLevel = errors.New("schedule: dim level must be between 0 and 100")

	// ErrInvalidWindow is returned when an entry's end does not follow its start.
	ErrInvalidWindow = errors.New("schedule: end must be after start")
)
