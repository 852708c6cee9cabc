package gateway

import "errors"

var (
	// ErrNetwork means the call did not complete: transport failure, non-2xx
	// status, rejected request or an unreadable response.
	ErrNetwork = errors.New("cart gateway: network")
	// ErrAuth means the backend rejected the credential.
	ErrAuth = errors.New("cart gateway: credential rejected")

	ErrMalformedResponse = errors.New("malformed response")
	ErrRejected          = errors.New("request rejected by backend")
	ErrInvalidDelta      = errors.New("quantity delta must be non-zero")
)
