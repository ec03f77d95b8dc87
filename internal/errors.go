package internal

import "errors"

// Error kinds shared by the registry, backend connections and the HTTP surface.
// Concrete failures wrap one of these so callers can classify them with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrConnectionClosed     = errors.New("connection closed")
	ErrBackend              = errors.New("backend error")
	ErrTransientUnavailable = errors.New("temporarily unavailable")
)
