package service

import "errors"

var (
	// ErrUnknownMethod is returned by Invoke for a method name outside the
	// command surface.
	ErrUnknownMethod = errors.New("unknown method")
)
