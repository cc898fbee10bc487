package service

import "fmt"

// Error is implemented by every error the service returns on purpose.
// The set is closed: NotFoundError, ValidationError, OperationError and
// InvalidArgumentError.
type Error interface {
	error
	serviceError()
}

// NotFoundError reports a todo id that does not exist.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("Todo with id %d not found", e.ID) }
func (*NotFoundError) serviceError()   {}

// ValidationError reports an entity that breaks a field invariant.
type ValidationError struct {
	Message     string
	FieldErrors map[string]string
}

func (e *ValidationError) Error() string { return e.Message }
func (*ValidationError) serviceError()   {}

// OperationError wraps an unexpected storage failure.
type OperationError struct {
	Message string
	Cause   error
}

func (e *OperationError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *OperationError) Unwrap() error { return e.Cause }
func (*OperationError) serviceError()   {}

// InvalidArgumentError reports an argument the operation cannot act on.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string { return e.Message }
func (*InvalidArgumentError) serviceError()   {}
