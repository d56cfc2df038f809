package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lumenfleet/lumen-core/internal/fleetapi"
	"github.com/lumenfleet/lumen-core/internal/node"
)

// mockBackend records SendCommand calls and returns a canned error.
type mockBackend struct {
	mu    sync.Mutex
	calls []mockCall
	err   error
}

type mockCall struct {
	gatewayID string
	nodeID    string
	update    node.Update
}

func (m *mockBackend) SendCommand(_ context.Context, gatewayID, nodeID string, update node.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{gatewayID, nodeID, update})
	return m.err
}

// mockPublisher records publishes.
type mockPublisher struct {
	mu        sync.Mutex
	topics    []string
	connected bool
	err       error
}

func (m *mockPublisher) Publish(topic string, _ []byte, _ byte, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	return m.err
}

func (m *mockPublisher) IsConnected() bool { return m.connected }

func testTopicFor(nodeID string) string { return "lamp/control/" + nodeID }

func newTestDispatcher(backend *mockBackend, pub *mockPublisher) (*Dispatcher, *node.Store) {
	store := node.NewStore()
	var publisher Publisher
	if pub != nil {
		publisher = pub
	}
	return NewDispatcher(backend, publisher, store, testTopicFor, 1), store
}

func ptrPower(p node.Power) *node.Power { return &p }
func ptrInt(v int) *int                 { return &v }

func TestDispatchHappyPath(t *testing.T) {
	backend := &mockBackend{}
	pub := &mockPublisher{connected: true}
	d, store := newTestDispatcher(backend, pub)

	update := node.Update{Power: ptrPower(node.PowerOn), DimLevel: ptrInt(80)}
	if err := d.Dispatch(context.Background(), "7", update, node.ProvenanceManual); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if len(backend.calls) != 1 {
		t.Fatalf("expected 1 backend call, got %d", len(backend.calls))
	}
	if backend.calls[0].nodeID != "7" || backend.calls[0].gatewayID != DefaultGatewayID {
		t.Errorf("unexpected backend call: %+v", backend.calls[0])
	}
	if len(pub.topics) != 1 || pub.topics[0] != "lamp/control/7" {
		t.Errorf("unexpected publishes: %v", pub.topics)
	}

	st, ok := store.Get("7")
	if !ok {
		t.Fatal("optimistic state missing")
	}
	if st.Power != node.PowerOn || st.DimLevel != 80 {
		t.Errorf("unexpected optimistic state: %+v", st)
	}
	if !st.ManualOverride {
		t.Error("manual dispatch must set the override flag")
	}
}

func TestDispatchUsesKnownGateway(t *testing.T) {
	backend := &mockBackend{}
	d, store := newTestDispatcher(backend, nil)

	store.ApplySnapshot([]node.State{{NodeID: "7", GatewayID: "gw-02", Power: node.PowerOff}})

	if err := d.Dispatch(context.Background(), "7", node.Update{Power: ptrPower(node.PowerOn)}, node.ProvenanceManual); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if backend.calls[0].gatewayID != "gw-02" {
		t.Errorf("expected gateway from store, got %s", backend.calls[0].gatewayID)
	}
}

func TestDispatchAbortsOnBackendFailure(t *testing.T) {
	backend := &mockBackend{err: fleetapi.ErrUnauthorized}
	pub := &mockPublisher{connected: true}
	d, store := newTestDispatcher(backend, pub)

	err := d.Dispatch(context.Background(), "7", node.Update{Power: ptrPower(node.PowerOn)}, node.ProvenanceManual)
	if !errors.Is(err, fleetapi.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	// Rejected write must leave no trace.
	if len(pub.topics) != 0 {
		t.Error("rejected dispatch must not publish")
	}
	if _, ok := store.Get("7"); ok {
		t.Error("rejected dispatch must not touch the store")
	}
}

func TestDispatchPublishFailureIsBestEffort(t *testing.T) {
	backend := &mockBackend{}
	pub := &mockPublisher{connected: true, err: errors.New("broker gone")}
	d, store := newTestDispatcher(backend, pub)

	if err := d.Dispatch(context.Background(), "7", node.Update{Power: ptrPower(node.PowerOn)}, node.ProvenanceSchedule); err != nil {
		t.Fatalf("publish failure must not fail dispatch: %v", err)
	}
	if _, ok := store.Get("7"); !ok {
		t.Error("store update must proceed despite publish failure")
	}
}

func TestDispatchSkipsPublishWhenOffline(t *testing.T) {
	backend := &mockBackend{}
	pub := &mockPublisher{connected: false}
	d, _ := newTestDispatcher(backend, pub)

	if err := d.Dispatch(context.Background(), "7", node.Update{Power: ptrPower(node.PowerOn)}, node.ProvenanceSchedule); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(pub.topics) != 0 {
		t.Error("must not publish while disconnected")
	}
}

func TestDispatchIdempotent(t *testing.T) {
	backend := &mockBackend{}
	d, store := newTestDispatcher(backend, nil)

	var events int
	store.Subscribe(func(node.Event) { events++ })

	update := node.Update{Power: ptrPower(node.PowerOn), DimLevel: ptrInt(60)}
	for i := 0; i < 2; i++ {
		if err := d.Dispatch(context.Background(), "7", update, node.ProvenanceSchedule); err != nil {
			t.Fatalf("dispatch %d failed: %v", i, err)
		}
	}

	if len(backend.calls) != 2 {
		t.Errorf("expected 2 backend calls, got %d", len(backend.calls))
	}
	if events != 1 {
		t.Errorf("repeated identical dispatch must emit one event, got %d", events)
	}
}

func TestDispatchValidation(t *testing.T) {
	d, _ := newTestDispatcher(&mockBackend{}, nil)

	tests := []struct {
		name    string
		nodeID  string
		update  node.Update
		wantErr error
	}{
		{"empty node id", "", node.Update{Power: ptrPower(node.PowerOn)}, node.ErrEmptyNodeID},
		{"empty update", "7", node.Update{}, ErrEmptyCommand},
		{"bad dim", "7", node.Update{DimLevel: ptrInt(200)}, node.ErrInvalidDimLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Dispatch(context.Background(), tt.nodeID, tt.update, node.ProvenanceManual)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unauthorized", fleetapi.ErrUnauthorized, fleetapi.ErrUnauthorized},
		{"wrapped rate limited", errors.Join(errors.New("ctx"), fleetapi.ErrRateLimited), fleetapi.ErrRateLimited},
		{"unreachable", fleetapi.ErrUnreachable, fleetapi.ErrUnreachable},
		{"anything else", errors.New("weird"), fleetapi.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
