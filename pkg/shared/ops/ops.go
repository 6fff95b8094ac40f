// Package ops wraps low-level port failures (broker, cache, registry,
// analytic store) with enough operational context for logs, without the
// HTTP-status plumbing that internal/errors carries for the admin
// surface.
package ops

import "fmt"

// OperationError describes a failed operation against an external
// collaborator: which operation, which component owns it, which
// resource was involved, and the underlying cause.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("failed to %s", e.Operation)
	if e.Component != "" {
		msg = fmt.Sprintf("%s, component: %s", msg, e.Component)
	}
	if e.Resource != "" {
		msg = fmt.Sprintf("%s, resource: %s", msg, e.Resource)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s, cause: %s", msg, e.Cause.Error())
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// Wrap builds an OperationError for the given operation/component pair.
func Wrap(operation, component string, cause error) *OperationError {
	return &OperationError{Operation: operation, Component: component, Cause: cause}
}

// WrapResource builds an OperationError that also names the resource
// involved (e.g. a composite_id or cache key).
func WrapResource(operation, component, resource string, cause error) *OperationError {
	return &OperationError{Operation: operation, Component: component, Resource: resource, Cause: cause}
}
