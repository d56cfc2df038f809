package mqtt

import "fmt"

// Topics provides builders for Lumen Core MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// All node topics use the flat scheme: {prefix}/{category}/{node_id}
// matching what the lighting nodes themselves publish and subscribe to.
//
//	topics := mqtt.NewTopics("lamp")
//	stateTopic := topics.NodeState("7")
//	// Returns: "lamp/state/7"
type Topics struct {
	prefix string
}

// NewTopics creates a topic builder for the given prefix.
// An empty prefix falls back to "lamp", the scheme the node firmware uses.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = "lamp"
	}
	return Topics{prefix: prefix}
}

// NodeState returns the topic a node publishes its telemetry on.
//
// Example: lamp/state/7
func (t Topics) NodeState(nodeID string) string {
	return fmt.Sprintf("%s/state/%s", t.prefix, nodeID)
}

// NodeCommand returns the topic for commands to a node.
// Commands published here duplicate the synchronous fleet-service write;
// the node applies whichever arrives first.
//
// Example: lamp/command/7
func (t Topics) NodeCommand(nodeID string) string {
	return fmt.Sprintf("%s/command/%s", t.prefix, nodeID)
}

// CoreNodeState returns the canonical state topic for a node.
// This is the authoritative state published by the engine after a merge
// actually changed the node's record; consumers that cannot hold an HTTP
// or WebSocket connection can follow the fleet from here.
//
// Example: lamp/core/7/state
func (t Topics) CoreNodeState(nodeID string) string {
	return fmt.Sprintf("%s/core/%s/state", t.prefix, nodeID)
}

// SystemStatus returns the engine status topic (online/offline, LWT).
//
// Example: lamp/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix)
}

// AllNodeStates returns a pattern matching every node's telemetry topic.
//
// Pattern: lamp/state/+
func (t Topics) AllNodeStates() string {
	return fmt.Sprintf("%s/state/+", t.prefix)
}

// ParseNodeState extracts the node ID from a node state topic.
// Returns false if the topic is not a state topic under this prefix.
func (t Topics) ParseNodeState(topic string) (string, bool) {
	prefix := t.prefix + "/state/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return "", false
	}
	nodeID := topic[len(prefix):]
	for i := 0; i < len(nodeID); i++ {
		if nodeID[i] == '/' {
			return "", false
		}
	}
	return nodeID, true
}
