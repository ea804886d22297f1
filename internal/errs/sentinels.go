// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Remote failures are normalized into these sentinels at the catalog client
// boundary; nothing above it sees raw transport errors.
var (
	// ErrUnreachable indicates no connectivity (DNS/connect/timeout failure).
	ErrUnreachable = errors.New("remote unreachable")

	// ErrUnavailable indicates a transient remote fault (5xx, malformed response).
	ErrUnavailable = errors.New("remote unavailable")

	// ErrUnauthorized indicates an authorization failure (401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRejected indicates a terminal remote rejection (4xx other than 401); not retried.
	ErrRejected = errors.New("request rejected")

	// ErrNotFound indicates the requested entity does not exist locally.
	ErrNotFound = errors.New("not found")

	// ErrNoCredentials indicates no stored credentials; the user must re-authenticate.
	ErrNoCredentials = errors.New("no stored credentials")
)
