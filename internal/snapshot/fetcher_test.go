package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumenfleet/lumen-core/internal/node"
)

// mockBackend serves canned snapshots, one per call.
type mockBackend struct {
	mu      sync.Mutex
	calls   int
	records []node.State
	err     error
}

func (m *mockBackend) Snapshot(context.Context) ([]node.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

func (m *mockBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestFetchNowAppliesSnapshot(t *testing.T) {
	backend := &mockBackend{records: []node.State{
		{NodeID: "7", GatewayID: "gw-01", Power: node.PowerOn, DimLevel: 50},
	}}
	store := node.NewStore()
	f := NewFetcher(backend, store, time.Minute)

	f.FetchNow(context.Background())

	if store.Count() != 1 {
		t.Fatalf("expected 1 node, got %d", store.Count())
	}
	last, err := f.LastSync()
	if err != nil {
		t.Errorf("expected nil last error, got %v", err)
	}
	if last.IsZero() {
		t.Error("expected last sync time to be recorded")
	}
}

func TestFetchNowKeepsStateOnFailure(t *testing.T) {
	backend := &mockBackend{records: []node.State{
		{NodeID: "7", Power: node.PowerOn, DimLevel: 50},
	}}
	store := node.NewStore()
	f := NewFetcher(backend, store, time.Minute)

	f.FetchNow(context.Background())

	// The service goes away; the store must keep its last good state.
	backend.mu.Lock()
	backend.err = errors.New("connection refused")
	backend.mu.Unlock()

	f.FetchNow(context.Background())

	if store.Count() != 1 {
		t.Errorf("failed fetch must not clear the store, got %d nodes", store.Count())
	}
	if _, err := f.LastSync(); err == nil {
		t.Error("expected last error to be recorded")
	}
}

func TestStartFetchesImmediately(t *testing.T) {
	backend := &mockBackend{records: []node.State{{NodeID: "7", Power: node.PowerOff}}}
	store := node.NewStore()
	f := NewFetcher(backend, store, time.Hour)

	f.Start(context.Background())
	defer f.Stop()

	// Start's first fetch is synchronous.
	if backend.callCount() != 1 {
		t.Errorf("expected immediate fetch, got %d calls", backend.callCount())
	}
	if store.Count() != 1 {
		t.Errorf("expected store populated after Start, got %d nodes", store.Count())
	}
}

func TestStartTicksOnInterval(t *testing.T) {
	backend := &mockBackend{records: nil}
	store := node.NewStore()
	f := NewFetcher(backend, store, 20*time.Millisecond)

	f.Start(context.Background())
	time.Sleep(70 * time.Millisecond)
	f.Stop()

	// Immediate fetch plus at least two ticks.
	if got := backend.callCount(); got < 3 {
		t.Errorf("expected at least 3 fetches, got %d", got)
	}
}

func TestStopHaltsLoop(t *testing.T) {
	backend := &mockBackend{}
	f := NewFetcher(backend, node.NewStore(), 10*time.Millisecond)

	f.Start(context.Background())
	f.Stop()

	settled := backend.callCount()
	time.Sleep(50 * time.Millisecond)
	if backend.callCount() != settled {
		t.Error("fetch loop kept running after Stop")
	}
}
