package telemetry

import (
	"encoding/json"
	"sync"

	"github.com/lumenfleet/lumen-core/internal/infrastructure/mqtt"
	"github.com/lumenfleet/lumen-core/internal/node"
)

// Logger defines the logging interface used by the subscriber.
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

// MQTTClient is the broker surface the subscriber needs.
// Implemented by the infrastructure MQTT client.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Store is the canonical state the subscriber feeds.
// Implemented by node.Store.
type Store interface {
	Get(nodeID string) (node.State, bool)
	IDs() []string
	Upsert(nodeID string, update node.Update, prov node.Provenance) (bool, error)
	Subscribe(fn func(node.Event))
}

// Sink receives telemetry samples after they are merged into the store.
// Optional; used for time-series offload.
type Sink interface {
	Record(st node.State)
}

// Subscriber maintains one MQTT subscription per known node and feeds
// received telemetry into the canonical store.
//
// The subscription set tracks the store's node set: it is seeded from
// the store at Start, grows when a snapshot or command introduces a new
// node, and shrinks when a node disappears from the fleet. Malformed
// payloads are dropped and logged; reports for nodes the store no longer
// knows (a removal racing an in-flight message) are ignored.
type Subscriber struct {
	client MQTTClient
	store  Store
	topics mqtt.Topics
	qos    byte
	sink   Sink
	logger Logger

	mu     sync.Mutex
	subbed map[string]struct{}
}

// NewSubscriber creates a telemetry subscriber. sink may be nil.
func NewSubscriber(client MQTTClient, store Store, topics mqtt.Topics, qos byte, sink Sink) *Subscriber {
	return &Subscriber{
		client: client,
		store:  store,
		topics: topics,
		qos:    qos,
		sink:   sink,
		logger: noopLogger{},
		subbed: make(map[string]struct{}),
	}
}

// SetLogger sets the logger for the subscriber.
func (s *Subscriber) SetLogger(logger Logger) {
	s.logger = logger
}

// Start seeds subscriptions from the store's current node set and
// registers for store events so the set tracks fleet membership from
// then on.
func (s *Subscriber) Start() {
	s.store.Subscribe(s.onStoreEvent)
	for _, id := range s.store.IDs() {
		s.subscribeNode(id)
	}
	s.logger.Info("telemetry subscriber started", "nodes", s.Count())
}

// Stop releases every node subscription.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.subbed))
	for id := range s.subbed {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.unsubscribeNode(id)
	}
	s.logger.Info("telemetry subscriber stopped")
}

// Count returns the number of active node subscriptions.
func (s *Subscriber) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subbed)
}

func (s *Subscriber) onStoreEvent(ev node.Event) {
	switch ev.Type {
	case node.EventUpdated:
		s.subscribeNode(ev.State.NodeID)
	case node.EventRemoved:
		s.unsubscribeNode(ev.State.NodeID)
	}
}

func (s *Subscriber) subscribeNode(nodeID string) {
	s.mu.Lock()
	if _, ok := s.subbed[nodeID]; ok {
		s.mu.Unlock()
		return
	}
	s.subbed[nodeID] = struct{}{}
	s.mu.Unlock()

	topic := s.topics.NodeState(nodeID)
	if err := s.client.Subscribe(topic, s.qos, s.handleMessage); err != nil {
		s.mu.Lock()
		delete(s.subbed, nodeID)
		s.mu.Unlock()
		s.logger.Warn("telemetry subscribe failed", "node_id", nodeID, "error", err)
		return
	}
	s.logger.Debug("telemetry subscription added", "node_id", nodeID)
}

func (s *Subscriber) unsubscribeNode(nodeID string) {
	s.mu.Lock()
	if _, ok := s.subbed[nodeID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.subbed, nodeID)
	s.mu.Unlock()

	if err := s.client.Unsubscribe(s.topics.NodeState(nodeID)); err != nil {
		s.logger.Warn("telemetry unsubscribe failed", "node_id", nodeID, "error", err)
	}
	s.logger.Debug("telemetry subscription removed", "node_id", nodeID)
}

// handleMessage merges one telemetry report into the store.
func (s *Subscriber) handleMessage(topic string, payload []byte) error {
	nodeID, ok := s.topics.ParseNodeState(topic)
	if !ok {
		// Not a node state topic; nothing to do.
		return nil
	}

	if _, known := s.store.Get(nodeID); !known {
		s.logger.Debug("telemetry for unknown node ignored", "node_id", nodeID)
		return nil
	}

	var update node.Update
	if err := json.Unmarshal(payload, &update); err != nil {
		s.logger.Warn("malformed telemetry dropped",
			"node_id", nodeID, "error", err)
		return nil
	}
	if update.IsZero() {
		s.logger.Debug("empty telemetry dropped", "node_id", nodeID)
		return nil
	}

	changed, err := s.store.Upsert(nodeID, update, node.ProvenanceTelemetry)
	if err != nil {
		s.logger.Warn("telemetry rejected", "node_id", nodeID, "error", err)
		return nil
	}

	if changed && s.sink != nil {
		if st, ok := s.store.Get(nodeID); ok {
			s.sink.Record(st)
		}
	}
	return nil
}
