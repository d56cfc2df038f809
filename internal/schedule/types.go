package schedule

import "time"

// Action is the operation a schedule entry performs on its node.
// Values match the fleet service wire format (lowercase, unlike the
// node power states).
type Action string

// Action constants.
const (
	ActionOn  Action = "on"
	ActionOff Action = "off"
)

// Valid reports whether a is a recognised action.
func (a Action) Valid() bool {
	return a == ActionOn || a == ActionOff
}

// Entry is one scheduled lighting automation as stored by the fleet
// service.
//
// An entry with ActionOn holds the node on (at DimLevel) from Start
// until End, then turns it off and is deleted. An entry with ActionOff
// is a one-shot: it carries no End, turns the node off once Start
// passes, and is deleted right after.
type Entry struct {
	ID        string    `json:"_id"`
	NodeID    string    `json:"node_id"`
	GatewayID string    `json:"gw_id,omitempty"`
	Action    Action    `json:"action"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end,omitempty"`
	DimLevel  int       `json:"lamp_dim,omitempty"`
}

// Active reports whether the entry currently holds a desired state on
// its node. Only ActionOn entries have a window; ActionOff entries go
// straight from pending to concluded.
func (e Entry) Active(now time.Time) bool {
	return e.Action == ActionOn && !now.Before(e.Start) && now.Before(e.End)
}

// Concluded reports whether the entry has reached its terminal
// condition: End for ActionOn, Start for ActionOff.
func (e Entry) Concluded(now time.Time) bool {
	if e.Action == ActionOn {
		return !now.Before(e.End)
	}
	return !now.Before(e.Start)
}

// Validate checks the entry's fields for range and value errors.
// ActionOff entries have no window, so End is unconstrained for them.
func (e Entry) Validate() error {
	if e.NodeID == "" {
		return ErrEmptyNodeID
	}
	if !e.Action.Valid() {
		return ErrInvalidAction
	}
	if e.DimLevel < 0 || e.DimLevel > 100 {
		return ErrInvalidDimLevel
	}
	if e.Action == ActionOn && !e.End.After(e.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// CalendarEvent is the calendar-oriented projection of an Entry, shaped
// for schedule visualisation clients. End is absent for one-shot
// ActionOff entries; Title is a human-readable label.
type CalendarEvent struct {
	ID     string     `json:"id"`
	NodeID string     `json:"node_id"`
	Title  string     `json:"title"`
	Start  time.Time  `json:"start"`
	End    *time.Time `json:"end,omitempty"`
	Action Action     `json:"action"`
	Dim    int        `json:"lamp_dim"`
}

// CalendarEvents projects a set of entries into calendar events,
// one per entry.
func CalendarEvents(entries []Entry) []CalendarEvent {
	events := make([]CalendarEvent, 0, len(entries))
	for _, e := range entries {
		ev := CalendarEvent{
			ID:     e.ID,
			NodeID: e.NodeID,
			Title:  "Node " + e.NodeID + ": " + string(e.Action),
			Start:  e.Start,
			Action: e.Action,
			Dim:    e.DimLevel,
		}
		if e.Action == ActionOn {
			end := e.End
			ev.End = &end
		}
		events = append(events, ev)
	}
	return events
}
