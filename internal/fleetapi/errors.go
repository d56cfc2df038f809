package fleetapi

import "errors"

// Domain errors for the fleetapi package.
//
// Callers classify write failures with errors.Is; every error returned
// by the client wraps exactly one of these sentinels so the dispatch
// outcome is always one of four categories:
//
//	if errors.Is(err, fleetapi.ErrRateLimited) {
//	    // back off and surface to the caller
//	}
var (
	// ErrUnauthorized is returned when the fleet service rejects the
	// bearer token (HTTP 401 or 403).
	ErrUnauthorized = errors.New("fleetapi: unauthorized")

	// ErrRateLimited is returned when the fleet service throttles the
	// request (HTTP 429) or the local limiter cannot admit it in time.
	ErrRateLimited = errors.New("fleetapi: rate limited")

	// ErrUnreachable is returned for transport-level failures: connection
	// refused, DNS failure, request timeout.
	ErrUnreachable = errors.New("fleetapi: service unreachable")

	// ErrUnknown is returned for any other non-success response.
	ErrUnknown = errors.New("fleetapi: request failed")
)
