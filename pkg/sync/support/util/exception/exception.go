// Package exception provides the custom error types and error-classification
// utilities used by the Syncline engine. It standardizes errors raised during
// reconciliation so they can be categorized by retry and skip policies and
// matched against the engine's error taxonomy.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// errorRegistry maps error names to concrete Go error instances.
// It holds singleton error instances for comparison via errors.Is.
var errorRegistry = make(map[string]error)

// registryMutex protects access to errorRegistry.
var registryMutex sync.RWMutex

// RegisterErrorType registers an error type in the registry.
// Registered types are referenced by IsErrorOfType for error classification.
//
// name: A unique identifier for the error type.
// prototype: The error instance to register, compared with errors.Is.
//
// If prototype is nil or name is empty, this function panics.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}

	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered checks if the specified error type name is registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// SyncError is the custom error type raised during reconciliation.
// It holds the module where the error occurred, a message, the wrapped
// original error, and flags indicating whether it is retryable or skippable.
type SyncError struct {
	// Module indicates the module where the error occurred (e.g., "delta", "orchestrator", "conflict").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isRetryable indicates whether this error is retryable.
	isRetryable bool
	// isSkippable indicates whether this error is skippable.
	isSkippable bool
	// StackTrace is the stack trace captured at construction time.
	StackTrace string
}

// NewSyncError creates a new SyncError instance.
// module: The module where the error occurred.
// message: The error message.
// originalErr: The original error to wrap.
// isSkippable: Whether this error is skippable.
// isRetryable: Whether this error is retryable.
func NewSyncError(module, message string, originalErr error, isSkippable, isRetryable bool) *SyncError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &SyncError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  string(buf[:n]),
	}
}

// NewSyncErrorf creates a new SyncError using a format string.
// Optional flags and an error are extracted from the end of the variadic
// arguments in the order: [isSkippable bool], [isRetryable bool],
// [originalErr error]. The remaining arguments feed fmt.Sprintf.
func NewSyncErrorf(module, format string, a ...interface{}) *SyncError {
	var originalErr error
	isRetryable := false
	isSkippable := false
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isRetryable = b
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isSkippable = b
			args = args[:len(args)-1]
		}
	}

	message := fmt.Sprintf(format, args...)

	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &SyncError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  string(buf[:n]),
	}
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *SyncError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *SyncError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *SyncError) IsSkippable() bool {
	return e.isSkippable
}

// IsSyncError determines if the given error is of type SyncError.
func IsSyncError(err error) bool {
	if err == nil {
		return false
	}
	var se *SyncError
	return errors.As(err, &se)
}

// IsTemporary determines if an error is temporary (e.g., network error,
// transient DB connection issue). If it's a SyncError, its retryable flag
// takes precedence.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var se *SyncError
	if errors.As(err, &se) {
		return se.IsRetryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF")
}

// IsFatal determines if an error is fatal (neither retryable nor skippable).
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *SyncError
	if errors.As(err, &se) {
		return !se.IsRetryable() && !se.IsSkippable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "invalid argument") ||
		strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "data corruption")
}

// IsErrorOfType checks if an error matches a specified type name.
// errorTypeName can be a registered sentinel name, a Go error type name
// (e.g. "*net.OpError"), or a substring of an error message. It checks in
// order: registered sentinel errors (errors.Is), error-message substring,
// and type name comparison via reflection along the unwrap chain.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()

	if ok {
		if errors.Is(err, targetError) {
			return true
		}
	}

	currentErr := err
	for currentErr != nil {
		if strings.Contains(currentErr.Error(), errorTypeName) {
			return true
		}

		errType := reflect.TypeOf(currentErr)
		if errType != nil {
			if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
				return true
			}
		}

		currentErr = errors.Unwrap(currentErr)
	}

	return false
}

// Sentinel errors forming the engine's error taxonomy. Components wrap these
// so callers can classify failures with errors.Is regardless of where in the
// engine they originated.
var (
	// ErrValidation indicates bad or missing request parameters. Surfaced to
	// the caller, never retried.
	ErrValidation = errors.New("ValidationError")
	// ErrInvalidTransition indicates a sync job state-machine violation. The
	// job state is left unchanged.
	ErrInvalidTransition = errors.New("InvalidTransition")
	// ErrMaxRetriesExceeded indicates a conflict exhausted its retry budget.
	// Terminal for that conflict; recorded against the owning job.
	ErrMaxRetriesExceeded = errors.New("MaxRetriesExceeded")
	// ErrUpstream indicates an external I/O failure (commerce API or local
	// store). Propagated immediately; not retried by the engine itself.
	ErrUpstream = errors.New("UpstreamError")
	// ErrUnknownStrategy indicates an unrecognized conflict resolution strategy.
	ErrUnknownStrategy = errors.New("UnknownStrategy")
)

func init() {
	// Register sentinel errors so errors.Is can detect them by constant name.
	RegisterErrorType("ValidationError", ErrValidation)
	RegisterErrorType("InvalidTransition", ErrInvalidTransition)
	RegisterErrorType("MaxRetriesExceeded", ErrMaxRetriesExceeded)
	RegisterErrorType("UpstreamError", ErrUpstream)
	RegisterErrorType("UnknownStrategy", ErrUnknownStrategy)

	// Common network-related error names.
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)

	// Common database-related error names.
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}

// ExtractErrorMessage extracts the error message string from an error.
// For SyncError it returns the cleaner Message field; otherwise the standard
// Error() string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *SyncError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
