package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenfleet/lumen-core/internal/fleetapi"
	"github.com/lumenfleet/lumen-core/internal/node"
)

// Logger defines the logging interface used by the dispatcher.
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

// Backend is the authoritative write path for node commands.
// Implemented by fleetapi.Client.
type Backend interface {
	SendCommand(ctx context.Context, gatewayID, nodeID string, update node.Update) error
}

// Publisher pushes a command onto a node's MQTT command topic for lower
// perceived latency. Implemented by the infrastructure MQTT client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Store is the canonical state the dispatcher updates optimistically
// after an accepted write.
type Store interface {
	Get(nodeID string) (node.State, bool)
	Upsert(nodeID string, update node.Update, prov node.Provenance) (bool, error)
}

// DefaultGatewayID is used when a node's gateway is not yet known (no
// snapshot has been applied and no telemetry has arrived).
const DefaultGatewayID = "gw-01"

// Dispatcher pushes desired-state changes to the fleet.
//
// Dispatch is a fixed three-step sequence:
//
//  1. Synchronous write through the fleet service. This is the
//     authoritative step; if it fails, dispatch aborts and the store is
//     left untouched.
//  2. Best-effort publish on the node's MQTT command topic. Failures here
//     are logged and swallowed; the service-side relay already carries
//     the command.
//  3. Optimistic upsert into the canonical store, under the caller's
//     provenance, so readers see the commanded state before telemetry
//     confirms it.
//
// The Dispatcher is safe for concurrent use.
type Dispatcher struct {
	backend   Backend
	publisher Publisher
	store     Store

	topicFor func(nodeID string) string
	qos      byte
	timeout  time.Duration
	logger   Logger
}

// NewDispatcher creates a command dispatcher.
//
// topicFor maps a node ID to its MQTT command topic; qos applies to the
// best-effort publish. publisher may be nil, in which case step 2 is
// skipped entirely.
func NewDispatcher(backend Backend, publisher Publisher, store Store, topicFor func(nodeID string) string, qos byte) *Dispatcher {
	return &Dispatcher{
		backend:   backend,
		publisher: publisher,
		store:     store,
		topicFor:  topicFor,
		qos:       qos,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetTimeout bounds each dispatch's authoritative write. Zero (the
// default) leaves the caller's context in charge.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	d.timeout = timeout
}

// Dispatch sends a desired-state change for one node.
//
// The node's gateway is resolved from the store; for nodes the engine has
// never seen, DefaultGatewayID is used. Returns an error wrapping one of
// the fleetapi sentinels when the authoritative write is rejected.
//
// Dispatching the same update twice is harmless: the second store upsert
// reports no change and emits no event.
func (d *Dispatcher) Dispatch(ctx context.Context, nodeID string, update node.Update, prov node.Provenance) error {
	if nodeID == "" {
		return node.ErrEmptyNodeID
	}
	if update.IsZero() {
		return ErrEmptyCommand
	}
	if err := update.Validate(); err != nil {
		return err
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	gatewayID := DefaultGatewayID
	if st, ok := d.store.Get(nodeID); ok && st.GatewayID != "" {
		gatewayID = st.GatewayID
	}

	// Correlation ID tying the fleet write, the fast-path publish and the
	// store update together in the logs.
	commandID := uuid.NewString()

	// Step 1: authoritative write. Abort on failure, store untouched.
	if err := d.backend.SendCommand(ctx, gatewayID, nodeID, update); err != nil {
		d.logger.Warn("command rejected by fleet service",
			"command_id", commandID, "node_id", nodeID, "gateway_id", gatewayID, "error", err)
		return fmt.Errorf("command: dispatch node %s: %w", nodeID, err)
	}

	// Step 2: best-effort fast path. The service relay is authoritative,
	// so a failed publish only costs latency, never correctness.
	d.publishFastPath(nodeID, update)

	// Step 3: optimistic local state.
	if _, err := d.store.Upsert(nodeID, update, prov); err != nil {
		// The write was already accepted upstream; the next snapshot will
		// reconcile whatever the store rejected.
		d.logger.Error("optimistic store update failed",
			"command_id", commandID, "node_id", nodeID, "error", err)
		return fmt.Errorf("command: record node %s: %w", nodeID, err)
	}

	d.logger.Info("command dispatched",
		"command_id", commandID, "node_id", nodeID, "gateway_id", gatewayID, "provenance", prov)
	return nil
}

func (d *Dispatcher) publishFastPath(nodeID string, update node.Update) {
	if d.publisher == nil || d.topicFor == nil {
		return
	}
	if !d.publisher.IsConnected() {
		d.logger.Debug("skipping command publish, broker offline", "node_id", nodeID)
		return
	}
	payload, err := json.Marshal(update)
	if err != nil {
		d.logger.Warn("command publish encoding failed", "node_id", nodeID, "error", err)
		return
	}
	if err := d.publisher.Publish(d.topicFor(nodeID), payload, d.qos, false); err != nil {
		d.logger.Warn("command publish failed", "node_id", nodeID, "error", err)
	}
}

// Classify reduces a dispatch error to its fleet service category for
// API error responses. Unrecognised errors map to ErrUnknown.
func Classify(err error) error {
	switch {
	case errors.Is(err, fleetapi.ErrUnauthorized):
		return fleetapi.ErrUnauthorized
	case errors.Is(err, fleetapi.ErrRateLimited):
		return fleetapi.ErrRateLimited
	case errors.Is(err, fleetapi.ErrUnreachable):
		return fleetapi.ErrUnreachable
	default:
		return fleetapi.ErrUnknown
	}
}
