package engine

import "fmt"

// UserError is an expected failure caused by misconfiguration or
// environment: daemon not running, an invalid idle threshold, a missing
// module, a missing configuration file. It is surfaced to the user with a
// one-line message and no stack trace.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// NewUserError builds a UserError with a formatted message.
func NewUserError(format string, args ...interface{}) *UserError {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// ModuleStartFailure wraps a module's Start error. It aborts the action
// that requested the module (e.g. failing to start the lock-screen child
// aborts locking) and is surfaced to the originating command.
type ModuleStartFailure struct {
	Spec Spec
	Err  error
}

func (e *ModuleStartFailure) Error() string {
	return fmt.Sprintf("module %s failed to start: %v", e.Spec, e.Err)
}

func (e *ModuleStartFailure) Unwrap() error { return e.Err }

// ModuleStopFailure wraps a module's Stop error. It is logged, the module
// is removed from Running regardless, and reconciliation proceeds for
// siblings; the Reconciler aggregates all ModuleStopFailures from a single
// pass into a soft, non-fatal error returned from Update.
type ModuleStopFailure struct {
	Spec Spec
	Err  error
}

func (e *ModuleStopFailure) Error() string {
	return fmt.Sprintf("module %s failed to stop: %v", e.Spec, e.Err)
}

func (e *ModuleStopFailure) Unwrap() error { return e.Err }
