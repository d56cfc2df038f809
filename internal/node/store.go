package node

import (
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Store.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EventType classifies a store change event.
type EventType string

// Event type constants.
const (
	// EventUpdated is emitted when a node's record observably changed
	// (created or any field differs from the previous record).
	EventUpdated EventType = "updated"

	// EventRemoved is emitted when a node disappears from the fleet
	// (absent from a fresh snapshot).
	EventRemoved EventType = "removed"
)

// Event describes one observable store change.
// State is a private copy; receivers can hold or modify it freely.
type Event struct {
	Type  EventType
	State State
}

// Store is the canonical in-memory mapping from node ID to its current
// state. It is the single owner of all fleet-state mutation: the snapshot
// fetcher, the telemetry subscriber, and the command dispatcher all write
// through Upsert/ApplySnapshot and never touch records directly.
//
// Change notification is built in: subscribers registered with Subscribe
// are invoked only when a mutation observably changed a record, which
// suppresses update storms from telemetry repeating identical values.
//
// All public methods are thread-safe; records are copied on the way in
// and out, so callers never observe a torn write.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]State

	subMu sync.RWMutex
	subs  []func(Event)

	// now is the clock used for manual-override stamps. Tests substitute
	// a fixed clock.
	now func() time.Time

	logger Logger
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nodes:  make(map[string]State),
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Subscribe registers a callback invoked after every observable change.
//
// Callbacks run on the mutating goroutine, after the store lock has been
// released; they must not block for extended periods. Events for a single
// node are not totally ordered across concurrent writers. The store
// guarantees convergence, and the final event for a node always carries
// its final state.
func (s *Store) Subscribe(fn func(Event)) {
	s.subMu.Lock()
	s.subs = append(s.subs, fn)
	s.subMu.Unlock()
}

// notify delivers an event to all subscribers.
func (s *Store) notify(ev Event) {
	s.subMu.RLock()
	subs := make([]func(Event), len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Get retrieves a node's current state.
// The returned state is a copy; callers can safely modify it.
func (s *Store) Get(nodeID string) (State, bool) {
	s.mu.RLock()
	st, ok := s.nodes[nodeID]
	s.mu.RUnlock()

	if !ok {
		return State{}, false
	}
	return st.Clone(), true
}

// Lookup retrieves a node's current state, returning ErrNodeNotFound
// for unknown IDs. Callers that prefer a boolean use Get.
func (s *Store) Lookup(nodeID string) (State, error) {
	st, ok := s.Get(nodeID)
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	return st, nil
}

// All returns a copy of every node's current state, keyed by node ID.
func (s *Store) All() map[string]State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]State, len(s.nodes))
	for id, st := range s.nodes {
		out[id] = st.Clone()
	}
	return out
}

// IDs returns the current node ID set.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of known nodes.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Upsert merges a partial update into a node's record.
//
// Only the update's non-nil fields are applied. Equality against the
// previous record (deep, field by field) determines the changed result;
// subscribers are notified only when changed is true.
//
// Provenance rules:
//   - manual: unconditionally sets ManualOverride and stamps ManualOverrideAt
//   - schedule, telemetry: override flags are left untouched
//   - snapshot provenance is rejected here; full snapshots go through
//     ApplySnapshot, which is the only path that clears the override
//
// An upsert for an unknown node creates the record. Returns whether the
// record observably changed, or an error for invalid input.
func (s *Store) Upsert(nodeID string, update Update, prov Provenance) (bool, error) {
	if nodeID == "" {
		return false, ErrEmptyNodeID
	}
	if prov == ProvenanceSnapshot {
		return false, ErrInvalidProvenance
	}
	if err := update.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	prev, exists := s.nodes[nodeID]
	next := prev.Clone()
	if !exists {
		next = State{NodeID: nodeID}
	}

	update.applyTo(&next)

	if prov == ProvenanceManual {
		next.ManualOverride = true
		at := s.now().UTC()
		next.ManualOverrideAt = &at
	}

	changed := !exists || !next.Equal(prev)
	if changed {
		s.nodes[nodeID] = next
	}
	s.mu.Unlock()

	if changed {
		s.logger.Debug("node state updated", "node_id", nodeID, "provenance", prov)
		s.notify(Event{Type: EventUpdated, State: next.Clone()})
	}

	return changed, nil
}

// ApplySnapshot replaces the store's contents with a full fleet snapshot.
//
// Each record fully replaces the node's fields except the override flags,
// which are reset: a fresh snapshot reflects persisted truth, and any
// prior manual state is already encoded there as plain fields. Nodes
// absent from the snapshot are removed (and their subscriptions released
// by downstream listeners). Application is all-or-nothing per node; the
// whole snapshot is merged under one lock acquisition.
//
// Returns the number of records that observably changed.
func (s *Store) ApplySnapshot(records []State) int {
	var events []Event

	s.mu.Lock()
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.NodeID == "" {
			continue
		}
		rec = rec.Clone()
		rec.ManualOverride = false
		rec.ManualOverrideAt = nil
		rec.Normalize()
		seen[rec.NodeID] = struct{}{}

		prev, exists := s.nodes[rec.NodeID]
		if exists && rec.Equal(prev) {
			continue
		}
		s.nodes[rec.NodeID] = rec
		events = append(events, Event{Type: EventUpdated, State: rec.Clone()})
	}

	for id, st := range s.nodes {
		if _, ok := seen[id]; !ok {
			delete(s.nodes, id)
			events = append(events, Event{Type: EventRemoved, State: st.Clone()})
		}
	}
	s.mu.Unlock()

	changed := 0
	for _, ev := range events {
		if ev.Type == EventUpdated {
			changed++
		}
		s.notify(ev)
	}

	if len(events) > 0 {
		s.logger.Debug("snapshot merged", "records", len(records), "changed", changed)
	}
	return changed
}
