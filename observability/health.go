package observability

import "context"

// HealthStatus is the state of the executor, a sink or the whole process.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health is a point-in-time health report. Details carries per-part
// statuses for aggregates and counters for single components.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthChecker reports the health of one part of the process.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// Worst returns the more severe of a and b.
func Worst(a, b HealthStatus) HealthStatus {
	switch {
	case a == HealthStatusDown || b == HealthStatusDown:
		return HealthStatusDown
	case a == HealthStatusDegraded || b == HealthStatusDegraded:
		return HealthStatusDegraded
	default:
		return HealthStatusUp
	}
}

// Aggregate checks every checker and reports the worst status under name.
// Details maps each checker's name to its status; Message names the last
// unhealthy part.
func Aggregate(ctx context.Context, name string, checkers ...HealthChecker) Health {
	h := Health{Name: name, Status: HealthStatusUp, Details: make(map[string]string, len(checkers))}
	for _, c := range checkers {
		part := c.CheckHealth(ctx)
		h.Status = Worst(h.Status, part.Status)
		h.Details[part.Name] = string(part.Status)
		if part.Status != HealthStatusUp && part.Message != "" {
			h.Message = part.Name + ": " + part.Message
		}
	}
	return h
}
