package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/lumenfleet/lumen-core/internal/node"
)

// Logger defines the logging interface used by the fetcher.
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

// Backend supplies full fleet snapshots. Implemented by fleetapi.Client.
type Backend interface {
	Snapshot(ctx context.Context) ([]node.State, error)
}

// Store receives the fetched snapshots. Implemented by node.Store.
type Store interface {
	ApplySnapshot(records []node.State) int
}

// Fetcher periodically pulls the full fleet snapshot and merges it into
// the canonical store.
//
// The snapshot is the engine's ground truth: it seeds the store at
// startup, heals any drift the event paths accumulated, and is the only
// mechanism that clears manual-override flags. A failed fetch is logged
// and skipped; the store keeps serving the last good state until the
// next interval.
type Fetcher struct {
	backend  Backend
	store    Store
	interval time.Duration
	logger   Logger

	mu       sync.RWMutex
	lastSync time.Time
	lastErr  error

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewFetcher creates a snapshot fetcher.
func NewFetcher(backend Backend, store Store, interval time.Duration) *Fetcher {
	return &Fetcher{
		backend:  backend,
		store:    store,
		interval: interval,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the fetcher.
func (f *Fetcher) SetLogger(logger Logger) {
	f.logger = logger
}

// Start begins the fetch loop: one immediate fetch, then one per
// interval until Stop is called or ctx is cancelled.
//
// The immediate fetch runs synchronously so the store is populated
// before dependent components come up; its failure is logged, not
// returned, because the engine must start even when the fleet service
// is down.
func (f *Fetcher) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)

	f.FetchNow(ctx)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.FetchNow(ctx)
			}
		}
	}()

	f.logger.Info("snapshot fetcher started", "interval", f.interval.String())
}

// Stop halts the fetch loop and waits for any in-flight fetch to finish.
func (f *Fetcher) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	f.logger.Info("snapshot fetcher stopped")
}

// FetchNow performs one snapshot fetch-and-merge immediately.
// Errors are recorded for health reporting and logged, never fatal.
func (f *Fetcher) FetchNow(ctx context.Context) {
	records, err := f.backend.Snapshot(ctx)

	f.mu.Lock()
	f.lastErr = err
	if err == nil {
		f.lastSync = time.Now()
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn("snapshot fetch failed", "error", err)
		return
	}

	changed := f.store.ApplySnapshot(records)
	f.logger.Debug("snapshot applied", "records", len(records), "changed", changed)
}

// LastSync returns the time of the last successful fetch and the error
// from the most recent attempt (nil when it succeeded).
func (f *Fetcher) LastSync() (time.Time, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastSync, f.lastErr
}
