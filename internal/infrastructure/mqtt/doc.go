// Package mqtt provides MQTT client connectivity for Lumen Core.
//
// This package manages:
//   - Connection to the fleet broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Lighting nodes push telemetry on {prefix}/state/{node_id} and listen for
// commands on {prefix}/command/{node_id}. The engine additionally publishes
// its merged, canonical view of each node on {prefix}/core/{node_id}/state.
//
//	Lighting Nodes ↔ MQTT Broker ↔ Lumen Core
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.NodeState("7"), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("telemetry: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish(topics.NodeCommand("7"), []byte(`{"lamp_state":"ON"}`), 1, false)
package mqtt
