package domain

import "errors"

var (
	ErrEmptyLoop = errors.New("loop has no legs")
	// ErrMultiLegNotSupported marks chains of three or more legs across
	// platforms. Callers must not read it as "no opportunities".
	ErrMultiLegNotSupported = errors.New("multi-leg (3+) loop search is not supported")
	ErrNoScan               = errors.New("no scan available")
	ErrUnknownTopology      = errors.New("unknown loop type")
)
