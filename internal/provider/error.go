package provider

import "errors"

// Error definitions for the provider package.
var (
	ErrNotFound          = errors.New("provider not found in registry")
	ErrAlreadyRegistered = errors.New("provider is already registered in the registry")
	ErrReleased          = errors.New("surface has been released")
)
