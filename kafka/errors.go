package kafka

import (
	"context"
	"errors"
	"net"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
)

// transientPatterns match broker and network failures that kafka-go does
// not surface as typed errors.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no route to host",
	"network is unreachable",
	"broker not available",
	"leader not available",
	"not enough replicas",
	"request timed out",
}

// IsRetryableError reports whether a write may succeed when repeated.
// Cancellation is never retryable; a batch is retryable only if every
// failed message is.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var batch kafkago.WriteErrors
	if errors.As(err, &batch) {
		if batch.Count() == 0 {
			return false
		}
		for _, e := range batch {
			if e != nil && !IsRetryableError(e) {
				return false
			}
		}
		return true
	}
	var kerr kafkago.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
