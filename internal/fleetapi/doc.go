// Package fleetapi is the HTTP client for the backing fleet service.
//
// The fleet service is the system of record: it persists node state and
// schedules and relays control writes to the physical nodes. Lumen Core
// never writes around it. This package wraps its four endpoint groups:
//
//   - GET  /api/lamp/state    full fleet snapshot
//   - POST /api/lamp/control  authoritative desired-state write
//   - GET/POST /api/schedule  schedule listing and creation
//   - DELETE /api/schedule/:id idempotent schedule removal
//
// Every failure wraps exactly one of four sentinel errors
// (ErrUnauthorized, ErrRateLimited, ErrUnreachable, ErrUnknown) so
// callers can classify outcomes with errors.Is without inspecting HTTP
// details. Outbound traffic passes through a token-bucket rate limiter
// configured per deployment.
package fleetapi
