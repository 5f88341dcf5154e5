package errs

import (
	"errors"
	"fmt"
)

// Kind is the stable classification of a bridge failure. Callers branch on
// Kind and never on the message text.
type Kind string

const (
	KindMapNotFound           Kind = "MAP_NOT_FOUND"
	KindEntityNotFound        Kind = "ENTITY_NOT_FOUND"
	KindInvalidArguments      Kind = "INVALID_ARGUMENTS"
	KindInvalidConfiguration  Kind = "INVALID_CONFIGURATION"
	KindProviderUnavailable   Kind = "PROVIDER_UNAVAILABLE"
	KindPermissionDenied      Kind = "PERMISSION_DENIED"
	KindUnsupportedOnPlatform Kind = "UNSUPPORTED_ON_PLATFORM"
	KindCanceled              Kind = "CANCELED"
	KindInternal              Kind = "INTERNAL"
)

// Entity names used with KindEntityNotFound.
const (
	EntityMarker   = "marker"
	EntityPolygon  = "polygon"
	EntityCircle   = "circle"
	EntityPolyline = "polyline"
	EntityOverlay  = "overlay"
	EntityTile     = "tile"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrMapNotFound           = &Error{Kind: KindMapNotFound, Message: "map not found"}
	ErrEntityNotFound        = &Error{Kind: KindEntityNotFound, Message: "entity not found"}
	ErrInvalidArguments      = &Error{Kind: KindInvalidArguments, Message: "invalid arguments"}
	ErrInvalidConfiguration  = &Error{Kind: KindInvalidConfiguration, Message: "invalid configuration"}
	ErrProviderUnavailable   = &Error{Kind: KindProviderUnavailable, Message: "map provider is not available"}
	ErrPermissionDenied      = &Error{Kind: KindPermissionDenied, Message: "permission denied"}
	ErrUnsupportedOnPlatform = &Error{Kind: KindUnsupportedOnPlatform, Message: "unsupported on this platform"}
	ErrCanceled              = &Error{Kind: KindCanceled, Message: "canceled"}
	ErrInternal              = &Error{Kind: KindInternal, Message: "internal error"}
)

// Error is a classified failure with a human readable detail.
type Error struct {
	Kind    Kind           `json:"kind"`
	Entity  string         `json:"entity,omitempty"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind. An entity-less
// target matches every entity of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Entity == "" || t.Entity == e.Entity
}

// WithDetail adds a detail field.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// MapNotFound reports an unresolved map identifier.
func MapNotFound(mapID string) *Error {
	return New(KindMapNotFound, "map %q not found", mapID).WithDetail("map_id", mapID)
}

// NotFound reports an unresolved entity identifier inside a valid map.
func NotFound(entity, id string) *Error {
	e := New(KindEntityNotFound, "%s %q not found", entity, id).WithDetail("id", id)
	e.Entity = entity
	return e
}

// InvalidArguments reports a malformed payload.
func InvalidArguments(format string, args ...any) *Error {
	return New(KindInvalidArguments, format, args...)
}

// InvalidConfiguration reports a map configuration missing required fields.
func InvalidConfiguration(format string, args ...any) *Error {
	return New(KindInvalidConfiguration, format, args...)
}

// ProviderUnavailable reports a surface that has not finished initializing.
func ProviderUnavailable(mapID string) *Error {
	return New(KindProviderUnavailable, "map %q is not ready", mapID).WithDetail("map_id", mapID)
}

// PermissionDenied reports a missing runtime permission.
func PermissionDenied(capability string) *Error {
	return New(KindPermissionDenied, "%s requires a permission that was not granted", capability)
}

// Unsupported reports an operation that has no meaning on the host platform.
func Unsupported(operation, platform string) *Error {
	return New(KindUnsupportedOnPlatform, "%s is not supported on %s", operation, platform).
		WithDetail("platform", platform)
}

// Canceled reports a command abandoned before it reached the map. Nothing was
// applied. The context error is kept as the cause.
func Canceled(mapID string, cause error) *Error {
	return New(KindCanceled, "command on map %q abandoned", mapID).
		WithDetail("map_id", mapID).
		WithCause(cause)
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *Error {
	return New(KindInternal, "%s", message).WithCause(cause)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsMapNotFound checks if an error is a map-not-found error.
func IsMapNotFound(err error) bool {
	return errors.Is(err, ErrMapNotFound)
}

// IsNotFound checks if an error is an entity-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}

// IsInvalidArguments checks if an error is a validation error.
func IsInvalidArguments(err error) bool {
	return errors.Is(err, ErrInvalidArguments)
}

// IsCanceled checks if an error is a canceled command.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}
