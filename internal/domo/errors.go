package domo

import "errors"

// Protocol error sentinels.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, domo.ErrAuth) {
//	    // credentials rejected, do not retry
//	}
var (
	// ErrAuth is returned on HTTP 401. Fatal to the operation; never
	// retried automatically.
	ErrAuth = errors.New("domo: authentication failed")

	// ErrTransport is returned on timeout or connection failure.
	// Transient; retried only by the next natural cycle or user action.
	ErrTransport = errors.New("domo: transport failure")

	// ErrProtocol is returned on an unexpected HTTP status or a body
	// that is absent, non-XML or unparsable. Treated as transient.
	ErrProtocol = errors.New("domo: protocol error")
)
