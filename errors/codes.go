package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Filter errors
const (
	// ErrCodeFilterFailed indicates a leaf filter could not complete its transformation.
	ErrCodeFilterFailed ErrorCode = "FILTER_FAILED"
	// ErrCodePredicateFault indicates a conditional predicate could not be evaluated.
	ErrCodePredicateFault ErrorCode = "PREDICATE_FAULT"
	// ErrCodePartialFailure indicates some fan-out branches failed while others succeeded.
	ErrCodePartialFailure ErrorCode = "PARTIAL_FAILURE"
	// ErrCodeIncomplete indicates a stage reported it did not fully complete.
	ErrCodeIncomplete ErrorCode = "INCOMPLETE"
)

// Run errors
const (
	// ErrCodeTimeout indicates the run deadline expired before the root completed.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeCancelled indicates the run was cancelled.
	ErrCodeCancelled ErrorCode = "CANCELLED"
	// ErrCodeContractViolation indicates a filter broke the completion contract.
	ErrCodeContractViolation ErrorCode = "CONTRACT_VIOLATION"
)

// Input errors
const (
	// ErrCodeInvalidInput indicates a report value or identifier is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeDuplicateReport indicates a report identifier was added twice.
	ErrCodeDuplicateReport ErrorCode = "DUPLICATE_REPORT"
)

// Leaf filter errors
const (
	// ErrCodeEncodingFailed indicates a report could not be encoded or decoded.
	ErrCodeEncodingFailed ErrorCode = "ENCODING_FAILED"
	// ErrCodeDeliveryFailed indicates a report could not be delivered to a sink.
	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"
	// ErrCodeCircuitOpen indicates a filter was skipped because its circuit breaker is open.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:        true,
	ErrCodeDeliveryFailed: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
