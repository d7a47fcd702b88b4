package bootstrap

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kbukum/reportflow/observability"
)

// SinkInfo describes a connected sink.
type SinkInfo struct {
	Name   string
	Kind   string // "redis", "kafka"
	Target string
}

// Summary tracks and displays what Start assembled.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	root            string
	filters         []string
	predicates      []string
	sinks           []SinkInfo
}

// NewSummary creates a new startup summary.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// SetRoot records the name of the root chain.
func (s *Summary) SetRoot(name string) {
	s.root = name
}

// SetFilters records the registered filter and predicate names.
func (s *Summary) SetFilters(filters, predicates []string) {
	s.filters = filters
	s.predicates = predicates
}

// TrackSink records a connected sink.
func (s *Summary) TrackSink(name, kind, target string) {
	s.sinks = append(s.sinks, SinkInfo{Name: name, Kind: kind, Target: target})
}

// Sinks returns the tracked sinks.
func (s *Summary) Sinks() []SinkInfo {
	return append([]SinkInfo(nil), s.sinks...)
}

// Display writes the summary with the given health as a tree.
func (s *Summary) Display(w io.Writer, health observability.Health) {
	fmt.Fprintf(w, "\n🚀 %s %s started in %.2fs\n\n", s.serviceName, s.version, s.startupDuration.Seconds())

	fmt.Fprintf(w, "🔗 Root chain: %s\n\n", s.root)

	fmt.Fprintf(w, "🧩 Filters (%d)\n", len(s.filters))
	writeTree(w, s.filters)
	if len(s.predicates) > 0 {
		fmt.Fprintf(w, "\n❓ Predicates (%d)\n", len(s.predicates))
		writeTree(w, s.predicates)
	}

	if len(s.sinks) > 0 {
		fmt.Fprintf(w, "\n📨 Sinks\n")
		lines := make([]string, len(s.sinks))
		for i, sink := range s.sinks {
			lines[i] = fmt.Sprintf("%s [%s] → %s", sink.Name, sink.Kind, sink.Target)
		}
		writeTree(w, lines)
	}

	fmt.Fprintf(w, "\n🏥 Health: %s %s\n", healthStatusIcon(health.Status), health.Status)
	names := make([]string, 0, len(health.Details))
	for name := range health.Details {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, len(names))
	for i, name := range names {
		status := observability.HealthStatus(health.Details[name])
		lines[i] = fmt.Sprintf("%s %s: %s", healthStatusIcon(status), name, strings.ToLower(string(status)))
	}
	writeTree(w, lines)
	if health.Message != "" {
		fmt.Fprintf(w, "   %s\n", health.Message)
	}
	fmt.Fprintln(w)
}

func writeTree(w io.Writer, lines []string) {
	for i, line := range lines {
		prefix := "├──"
		if i == len(lines)-1 {
			prefix = "└──"
		}
		fmt.Fprintf(w, "   %s %s\n", prefix, line)
	}
}

func healthStatusIcon(status observability.HealthStatus) string {
	switch status {
	case observability.HealthStatusUp:
		return "✅"
	case observability.HealthStatusDegraded:
		return "⚠️"
	case observability.HealthStatusDown:
		return "❌"
	default:
		return "❓"
	}
}
