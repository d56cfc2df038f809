package schedule

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/lumenfleet/lumen-core/internal/node"
)

// Logger defines the logging interface used by the reconciler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Backend is the schedule storage surface the reconciler needs.
// Implemented by fleetapi.Client.
type Backend interface {
	ListSchedules(ctx context.Context) ([]Entry, error)
	DeleteSchedule(ctx context.Context, id string) error
}

// Dispatcher sends desired-state changes to nodes.
// Implemented by command.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, nodeID string, update node.Update, prov node.Provenance) error
}

// Store reads current node state for override checks and idempotence.
// Implemented by node.Store.
type Store interface {
	Get(nodeID string) (node.State, bool)
}

// retiredTTL bounds how long a terminal dispatch is remembered. Long
// enough to outlive delete retries across several ticks, short enough
// that a recreated entry with a recycled ID is not silently skipped.
const retiredTTL = 30 * time.Minute

// Reconciler drives schedule entries to completion.
//
// Every tick it pulls the full schedule set from the fleet service and
// walks each entry through its lifecycle:
//
//   - pending (now before Start): nothing to do
//   - active (ActionOn only, Start <= now < End): dispatch on at the
//     entry's dim level if the node is not already there
//   - concluded (now >= End for ActionOn, now >= Start for ActionOff):
//     dispatch off once, then delete the entry from the service
//
// Manual override wins: a node flagged ManualOverride is never touched
// by schedule dispatch, and its concluded entries are removed without
// commanding the node. The flag clears on the next full snapshot.
//
// Terminal dispatch is exactly-once per entry: a retired set (TTL
// cache) remembers entries whose terminal action already went out, so
// a failed delete retried on later ticks does not re-command the node.
// Retired entries also drop out of Pending and the change
// notifications, so a slow delete never resurfaces a concluded entry
// to readers. Dispatches run on their own goroutines; the tick itself
// never blocks on the fleet service. Deletions are batched after the
// tick's dispatches drain, and a failed delete simply surfaces the
// entry again next tick.
type Reconciler struct {
	backend    Backend
	dispatcher Dispatcher
	store      Store
	tick       time.Duration
	logger     Logger

	// retired holds entry IDs whose terminal dispatch has completed.
	retired *gocache.Cache

	mu      sync.RWMutex
	entries []Entry

	listenerMu sync.RWMutex
	listeners  []func([]Entry)

	// notified is the pending view last delivered to listeners,
	// guarded by listenerMu.
	notified []Entry

	// now is the reconciliation clock. Tests substitute a fixed clock.
	now func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewReconciler creates a schedule reconciler.
func NewReconciler(backend Backend, dispatcher Dispatcher, store Store, tick time.Duration) *Reconciler {
	return &Reconciler{
		backend:    backend,
		dispatcher: dispatcher,
		store:      store,
		tick:       tick,
		logger:     noopLogger{},
		retired:    gocache.New(retiredTTL, 10*time.Minute),
		now:        time.Now,
	}
}

// SetLogger sets the logger for the reconciler.
func (r *Reconciler) SetLogger(logger Logger) {
	r.logger = logger
}

// OnChange registers a callback invoked with the full entry set whenever
// the stored schedules observably change between ticks.
func (r *Reconciler) OnChange(fn func([]Entry)) {
	r.listenerMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.listenerMu.Unlock()
}

// Pending returns the schedule set from the most recent successful
// tick, excluding entries already driven to their terminal state and
// only awaiting deletion.
func (r *Reconciler) Pending() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.withoutRetired(r.entries)
}

// withoutRetired filters entries whose terminal handling is done.
func (r *Reconciler) withoutRetired(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, done := r.retired.Get(e.ID); done {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Start begins the reconcile loop: one immediate pass, then one per tick
// until Stop is called or ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.Reconcile(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Reconcile(ctx)
			}
		}
	}()

	r.logger.Info("schedule reconciler started", "tick", r.tick.String())
}

// Stop halts the loop and waits for in-flight dispatches and deletions.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("schedule reconciler stopped")
}

// Reconcile runs one reconciliation pass.
//
// A failed schedule fetch is logged and skipped; the previous entry set
// keeps serving reads until the next tick succeeds.
func (r *Reconciler) Reconcile(ctx context.Context) {
	entries, err := r.backend.ListSchedules(ctx)
	if err != nil {
		r.logger.Warn("schedule fetch failed", "error", err)
		return
	}

	r.updateEntries(entries)

	now := r.now()
	var dispatchWG sync.WaitGroup

	// toDelete is fed by the terminal-dispatch goroutines and by entries
	// retired or overridden on this pass.
	var deleteMu sync.Mutex
	var toDelete []string
	queueDelete := func(id string) {
		deleteMu.Lock()
		toDelete = append(toDelete, id)
		deleteMu.Unlock()
	}

	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			r.logger.Warn("invalid schedule entry skipped", "entry_id", entry.ID, "error", err)
			continue
		}

		switch {
		case entry.Concluded(now):
			r.reconcileConcluded(ctx, entry, &dispatchWG, queueDelete)
		case entry.Active(now):
			r.reconcileActive(ctx, entry, &dispatchWG)
		}
	}

	// Deletion waits for this pass's dispatches on its own goroutine so
	// the tick returns immediately.
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		dispatchWG.Wait()

		deleteMu.Lock()
		ids := toDelete
		deleteMu.Unlock()

		for _, id := range ids {
			if err := r.backend.DeleteSchedule(ctx, id); err != nil {
				// The entry resurfaces next tick; the retired set keeps
				// the terminal action from repeating.
				r.logger.Warn("schedule delete failed, will retry", "entry_id", id, "error", err)
				continue
			}
			r.logger.Debug("schedule entry deleted", "entry_id", id)
		}

		// Entries retired on this pass have left the pending view.
		r.notifyChanges()
	}()
}

// reconcileActive enforces an in-window entry's desired state.
func (r *Reconciler) reconcileActive(ctx context.Context, entry Entry, wg *sync.WaitGroup) {
	if _, done := r.retired.Get(entry.ID); done {
		return
	}

	st, known := r.store.Get(entry.NodeID)
	if known && st.ManualOverride {
		r.logger.Debug("schedule suppressed by manual override",
			"entry_id", entry.ID, "node_id", entry.NodeID)
		return
	}

	update := entry.desiredUpdate()
	if known && stateMatches(st, update) {
		return
	}

	wg.Add(1)
	r.wg.Add(1)
	go func() {
		defer wg.Done()
		defer r.wg.Done()
		if err := r.dispatcher.Dispatch(ctx, entry.NodeID, update, node.ProvenanceSchedule); err != nil {
			r.logger.Warn("schedule dispatch failed",
				"entry_id", entry.ID, "node_id", entry.NodeID, "error", err)
		}
	}()
}

// reconcileConcluded turns the node off once, then queues deletion.
func (r *Reconciler) reconcileConcluded(ctx context.Context, entry Entry, wg *sync.WaitGroup, queueDelete func(string)) {
	if _, done := r.retired.Get(entry.ID); done {
		// Terminal action already sent on a previous tick; only the
		// delete is outstanding.
		queueDelete(entry.ID)
		return
	}

	st, known := r.store.Get(entry.NodeID)
	if known && st.ManualOverride {
		// The operator took over; remove the entry without commanding
		// the node.
		r.retired.SetDefault(entry.ID, struct{}{})
		queueDelete(entry.ID)
		return
	}

	update := terminalUpdate()
	if known && stateMatches(st, update) {
		// Node is already off.
		r.retired.SetDefault(entry.ID, struct{}{})
		queueDelete(entry.ID)
		return
	}

	wg.Add(1)
	r.wg.Add(1)
	go func() {
		defer wg.Done()
		defer r.wg.Done()
		if err := r.dispatcher.Dispatch(ctx, entry.NodeID, update, node.ProvenanceSchedule); err != nil {
			// Not retired: the terminal action retries next tick.
			r.logger.Warn("terminal schedule dispatch failed",
				"entry_id", entry.ID, "node_id", entry.NodeID, "error", err)
			return
		}
		r.retired.SetDefault(entry.ID, struct{}{})
		queueDelete(entry.ID)
	}()
}

// desiredUpdate is the state an ActionOn entry enforces while its
// window is open. Only ActionOn entries have an active phase.
func (e Entry) desiredUpdate() node.Update {
	power := node.PowerOn
	dim := e.DimLevel
	return node.Update{Power: &power, DimLevel: &dim}
}

// terminalUpdate is the state every concluded entry leaves behind:
// off at dim 0, whether the entry was holding the node on or shutting
// it off.
func terminalUpdate() node.Update {
	power := node.PowerOff
	dim := 0
	return node.Update{Power: &power, DimLevel: &dim}
}

// stateMatches reports whether the node is already in the updated state,
// making a dispatch redundant.
func stateMatches(st node.State, update node.Update) bool {
	if update.Power != nil && st.Power != *update.Power {
		return false
	}
	if update.DimLevel != nil && st.DimLevel != *update.DimLevel {
		return false
	}
	return true
}

// updateEntries swaps in the freshly fetched set and notifies listeners
// when the pending view observably changed.
func (r *Reconciler) updateEntries(entries []Entry) {
	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	r.notifyChanges()
}

// notifyChanges delivers the current pending view to listeners when it
// differs from the view last delivered. Called after each fetch and
// again once a pass's terminal handling has retired entries.
func (r *Reconciler) notifyChanges() {
	pending := r.Pending()

	r.listenerMu.Lock()
	if entriesEqual(r.notified, pending) {
		r.listenerMu.Unlock()
		return
	}
	r.notified = pending
	listeners := make([]func([]Entry), len(r.listeners))
	copy(listeners, r.listeners)
	r.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(pending)
	}
}

func entriesEqual(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID ||
			a[i].NodeID != b[i].NodeID ||
			a[i].Action != b[i].Action ||
			a[i].DimLevel != b[i].DimLevel ||
			!a[i].Start.Equal(b[i].Start) ||
			!a[i].End.Equal(b[i].End) {
			return false
		}
	}
	return true
}
