package pms

import "errors"

var (
	// ErrUpstreamUnavailable marks transient PMS failures: network errors
	// and 5xx responses. Worth retrying on a later run.
	ErrUpstreamUnavailable = errors.New("pms upstream unavailable")

	// ErrUpstreamRejected marks permanent failures: 4xx responses and
	// malformed payloads. A retry is unlikely to help.
	ErrUpstreamRejected = errors.New("pms upstream rejected request")
)
