package engine

import "errors"

var (
	// ErrUnavailable indicates an explicitly requested engine is not usable.
	ErrUnavailable = errors.New("engine unavailable")
	// ErrNoneAvailable indicates auto selection found no usable engine.
	ErrNoneAvailable = errors.New("no separation engine available")
	// ErrRemoteTimeout indicates a remote engine's bounded poll was exceeded.
	ErrRemoteTimeout = errors.New("remote processing timeout")
)
