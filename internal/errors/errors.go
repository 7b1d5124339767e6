// Package errors provides the structured application error used across
// Glance's orchestration core. Every error that can reach a user-visible
// surface (chat panel, history row, exit code) is classified into one of
// the six kinds from the error handling design: connection, query, llm,
// safety, state, config.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError for display and for history/log routing.
type Kind string

const (
	KindConnection Kind = "connection"
	KindQuery      Kind = "query"
	KindLLM        Kind = "llm"
	KindSafety     Kind = "safety"
	KindState      Kind = "state"
	KindConfig     Kind = "config"
)

// AppError is the single error representation used by Glance's core.
// Operation/Component/Resource describe what was being attempted;
// Details carries extra free-form context; Cause is the wrapped error.
type AppError struct {
	Kind      Kind
	Operation string
	Component string
	Resource  string
	Details   string
	Cause     error
}

func New(kind Kind, operation string) *AppError {
	return &AppError{Kind: kind, Operation: operation}
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Operation)
	if e.Component != "" {
		msg += fmt.Sprintf(", component: %s", e.Component)
	}
	if e.Resource != "" {
		msg += fmt.Sprintf(", resource: %s", e.Resource)
	}
	if e.Details != "" {
		msg += fmt.Sprintf(" (%s)", e.Details)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(", cause: %s", e.Cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches free-form context and returns the same error,
// mirroring the in-place mutation the original codebase relied on.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component
	return e
}

func (e *AppError) WithResource(resource string) *AppError {
	e.Resource = resource
	return e
}

// Wrap attaches cause to a new AppError of the given kind.
func Wrap(cause error, kind Kind, operation string) *AppError {
	return &AppError{Kind: kind, Operation: operation, Cause: cause}
}

func Wrapf(cause error, kind Kind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Operation: fmt.Sprintf(format, args...), Cause: cause}
}

// FailedTo is the common case: no component/resource, just an action and
// an optional cause.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return fmt.Errorf("failed to %s", action)
	}
	return fmt.Errorf("failed to %s: %w", action, cause)
}

// --- Kind-specific constructors -------------------------------------------------

func ConnectionError(operation string, cause error) *AppError {
	return Wrap(cause, KindConnection, operation).WithComponent("database")
}

func QueryError(operation string, cause error) *AppError {
	return Wrap(cause, KindQuery, operation).WithComponent("database")
}

func LLMError(operation string, cause error) *AppError {
	return Wrap(cause, KindLLM, operation).WithComponent("llm")
}

func SafetyError(operation string, cause error) *AppError {
	return Wrap(cause, KindSafety, operation).WithComponent("safety")
}

func StateError(operation string, cause error) *AppError {
	return Wrap(cause, KindState, operation).WithComponent("statestore")
}

func ConfigError(setting string, reason string) *AppError {
	return New(KindConfig, fmt.Sprintf("configuration error for setting %s", setting)).WithDetails(reason)
}

func ValidationError(field string, reason string) *AppError {
	return New(KindConfig, fmt.Sprintf("validation failed for field %s", field)).WithDetails(reason)
}

func TimeoutError(kind Kind, operation string, after string) *AppError {
	return New(kind, fmt.Sprintf("timeout while %s", operation)).WithDetails("after " + after)
}

// IsKind reports whether err (or something it wraps) is an *AppError of
// the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// GetKind returns the error's Kind, defaulting to KindState for
// unclassified errors (the core has no "internal server error" concept;
// an unclassified failure is treated as a state-layer bug until proven
// otherwise).
func GetKind(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindState
}

// LogFields renders err into a flat map suitable for structured logging.
func LogFields(err error) map[string]interface{} {
	fields := map[string]interface{}{"error": err.Error()}
	var appErr *AppError
	if errors.As(err, &appErr) {
		fields["error_kind"] = string(appErr.Kind)
		if appErr.Component != "" {
			fields["component"] = appErr.Component
		}
		if appErr.Resource != "" {
			fields["resource"] = appErr.Resource
		}
		if appErr.Details != "" {
			fields["error_details"] = appErr.Details
		}
		if appErr.Cause != nil {
			fields["underlying_error"] = appErr.Cause.Error()
		}
	}
	return fields
}

// Chain joins any number of errors (nils filtered) into one error whose
// message lists every non-nil cause. Used where the State Store reports
// a write-path error alongside the request's own outcome without
// aborting the request (spec's failure-semantics rule).
func Chain(errs ...error) error {
	var present []error
	for _, e := range errs {
		if e != nil {
			present = append(present, e)
		}
	}
	switch len(present) {
	case 0:
		return nil
	case 1:
		return present[0]
	default:
		msg := present[0].Error()
		for _, e := range present[1:] {
			msg += " -> " + e.Error()
		}
		return errors.New(msg)
	}
}
