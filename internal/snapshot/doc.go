// Package snapshot keeps the canonical store converged with the fleet
// service's persisted truth.
//
// MQTT telemetry and optimistic command writes are fast but lossy; the
// periodic full snapshot is slow but complete. This package runs the
// slow path: pull everything, replace the node set, reset manual
// overrides. Nodes that vanish from a snapshot are dropped from the
// store, which in turn tears down their telemetry subscriptions.
package snapshot
