package logger

import (
	"errors"
	"time"
)

// Standard field key constants for structured logging.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldFilter    = "filter"
	FieldStage     = "stage"
	FieldReports   = "reports"
	FieldBranch    = "branch"
	FieldAttempt   = "attempt"
	FieldKind      = "kind"
	FieldStatus    = "status"
	FieldError     = "error"
	FieldCode      = "code"
	FieldDuration  = "duration_ms"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	logger.Info("done", logger.Fields("stage", "gzip", "reports", 3))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// WithError adds err to fields under FieldError, and its code under
// FieldCode when err carries one. A nil err leaves fields unchanged.
func WithError(fields map[string]interface{}, err error) map[string]interface{} {
	if err == nil {
		return fields
	}
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields[FieldError] = err.Error()
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		fields[FieldCode] = coded.ErrorCode()
	}
	return fields
}

// MergeWithDuration adds a duration field to an existing map.
func MergeWithDuration(fields map[string]interface{}, d time.Duration) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields[FieldDuration] = d.Milliseconds()
	return fields
}
