package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// AppError is the coded error type carried through filter results.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// ErrorCode returns the code as a plain string.
func (e *AppError) ErrorCode() string { return string(e.Code) }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Constructors ---

// FilterFailed creates an error for a leaf filter that could not transform its input.
func FilterFailed(filter string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeFilterFailed, Message: fmt.Sprintf("filter %s failed", filter),
		Details: map[string]any{"filter": filter}, Cause: cause,
	}
}

// PredicateFault creates an error for a conditional whose predicate could not be evaluated.
func PredicateFault(stage string, cause error) *AppError {
	return &AppError{
		Code: ErrCodePredicateFault, Message: fmt.Sprintf("predicate of %s could not be evaluated", stage),
		Details: map[string]any{"stage": stage}, Cause: cause,
	}
}

// Incomplete creates an error for a stage that reported it did not fully complete.
func Incomplete(stage string) *AppError {
	return &AppError{
		Code: ErrCodeIncomplete, Message: fmt.Sprintf("%s did not fully complete", stage),
		Details: map[string]any{"stage": stage},
	}
}

// Timeout creates an error for a run whose deadline expired.
func Timeout(runID string, after time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("run did not complete within %s", after),
		Retryable: true, Details: map[string]any{"run_id": runID},
	}
}

// Cancelled creates an error for a run that was cancelled.
func Cancelled(cause error) *AppError {
	return &AppError{
		Code: ErrCodeCancelled, Message: "run was cancelled", Cause: cause,
	}
}

// ContractViolation creates an error describing a broken completion contract.
func ContractViolation(stage, reason string) *AppError {
	return &AppError{
		Code: ErrCodeContractViolation, Message: reason,
		Details: map[string]any{"stage": stage},
	}
}

// InvalidInput creates an error for an invalid report value or identifier.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		Details: details,
	}
}

// DuplicateReport creates an error for a report identifier added twice to a set.
func DuplicateReport(id string) *AppError {
	return &AppError{
		Code: ErrCodeDuplicateReport, Message: fmt.Sprintf("report %q already exists in set", id),
		Details: map[string]any{"id": id},
	}
}

// EncodingFailed creates an error for a report that could not be encoded or decoded.
func EncodingFailed(format, id string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeEncodingFailed, Message: fmt.Sprintf("%s coding failed for report %q", format, id),
		Details: map[string]any{"format": format, "id": id}, Cause: cause,
	}
}

// DeliveryFailed creates an error for a report that could not be delivered.
func DeliveryFailed(target string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDeliveryFailed, Message: fmt.Sprintf("delivery to %s failed", target),
		Retryable: true, Details: map[string]any{"target": target}, Cause: cause,
	}
}

// CircuitOpen creates an error for a filter call rejected by an open breaker.
func CircuitOpen(filter string) *AppError {
	return &AppError{
		Code: ErrCodeCircuitOpen, Message: fmt.Sprintf("circuit open for filter %s", filter),
		Details: map[string]any{"filter": filter},
	}
}

// --- Stage wrapping ---

// StageError tags an error with the identity of the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with a stage identity. A nil err stays nil.
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StagePath returns the stage identities err passed through, outermost first.
func StagePath(err error) []string {
	var path []string
	for err != nil {
		if se, ok := err.(*StageError); ok {
			path = append(path, se.Stage)
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return path
}

// --- Partial failure ---

// BranchFailure is one failed branch of a fan-out.
type BranchFailure struct {
	Branch string
	Index  int
	Err    error
}

// PartialError reports that some fan-out branches failed.
// Succeeded lists the branches whose output is still usable.
type PartialError struct {
	Stage     string
	Failures  []BranchFailure
	Succeeded []string
}

func (e *PartialError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s[%d]: %v", f.Branch, f.Index, f.Err))
	}
	return fmt.Sprintf("%s: %d of %d branches failed: %s", ErrCodePartialFailure,
		len(e.Failures), len(e.Failures)+len(e.Succeeded), strings.Join(parts, "; "))
}

// ErrorCode returns PARTIAL_FAILURE as a plain string.
func (e *PartialError) ErrorCode() string { return string(ErrCodePartialFailure) }

// Unwrap exposes the branch errors to errors.Is and errors.As.
func (e *PartialError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// --- Inspection ---

// CodeOf returns the code of the outermost coded error in err's chain,
// or an empty code if there is none.
func CodeOf(err error) ErrorCode {
	for err != nil {
		switch e := err.(type) {
		case *AppError:
			return e.Code
		case *PartialError:
			return ErrCodePartialFailure
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether the outermost AppError in err's chain is retryable.
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Retryable
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
