// Package api implements the HTTP REST API and WebSocket server for
// Lumen Core.
//
// This package provides:
//   - REST endpoints for node state reads and manual commands
//   - Schedule listing (calendar projection), creation, and removal
//   - WebSocket hub broadcasting node.state and schedule.events channels
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API server is the presentation surface of the sync engine. Reads
// come straight from the canonical store; manual commands flow through
// the command dispatcher (service write, MQTT fast path, optimistic
// store update); schedule writes are proxied to the backing fleet
// service and picked up by the reconciler on its next tick.
//
// # Security
//
// Authentication and session management live in front of this server
// (the deployment's ingress or the backing service). The engine carries
// its own bearer token for outbound calls only.
package api
