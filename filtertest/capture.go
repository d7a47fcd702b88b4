package filtertest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/report"
)

// Capture records every result delivered to its Done method.
type Capture struct {
	mu      sync.Mutex
	results []filter.Result
	first   chan struct{}
}

// NewCapture creates an empty capture.
func NewCapture() *Capture {
	return &Capture{first: make(chan struct{})}
}

// Done records r. It has the signature of a completion callback.
func (c *Capture) Done(r filter.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	if len(c.results) == 1 {
		close(c.first)
	}
}

// Token returns a token for stage that delivers to c.
func (c *Capture) Token(stage string, observer filter.Observer) *filter.Token {
	return filter.NewToken(stage, c.Done, observer)
}

// Wait blocks until the first result arrives and returns it. The test fails
// if nothing arrives within timeout.
func (c *Capture) Wait(t testing.TB, timeout time.Duration) filter.Result {
	t.Helper()
	select {
	case <-c.first:
	case <-time.After(timeout):
		t.Fatalf("no completion within %v", timeout)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[0]
}

// Fired reports whether a result has arrived, without blocking.
func (c *Capture) Fired() bool {
	select {
	case <-c.first:
		return true
	default:
		return false
	}
}

// Count returns how many results were delivered.
func (c *Capture) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Violations is an Observer that records every violation.
type Violations struct {
	mu   sync.Mutex
	list []filter.Violation
}

func (v *Violations) Violation(x filter.Violation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.list = append(v.list, x)
}

// All returns a copy of the recorded violations.
func (v *Violations) All() []filter.Violation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]filter.Violation(nil), v.list...)
}

// Count returns how many violations of kind were recorded.
func (v *Violations) Count(kind filter.ViolationKind) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, x := range v.list {
		if x.Kind == kind {
			n++
		}
	}
	return n
}

// Reports builds a set with one document per id: {"id": id, "seq": i}.
func Reports(t testing.TB, ids ...string) report.Set {
	t.Helper()
	b := report.NewBuilder(len(ids))
	for i, id := range ids {
		doc, err := report.NewDocument(map[string]any{"id": id, "seq": i})
		if err != nil {
			t.Fatalf("document %s: %v", id, err)
		}
		if err := b.Add(id, doc); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	return b.Build()
}

// Doc builds a document from m or fails the test.
func Doc(t testing.TB, m map[string]any) report.Document {
	t.Helper()
	doc, err := report.NewDocument(m)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	return doc
}

// Tag returns a Transform that sets field to value on every report.
func Tag(field string, value any) func(report.Set) (report.Set, error) {
	return func(in report.Set) (report.Set, error) {
		b := report.NewBuilder(in.Len())
		var err error
		in.Range(func(id string, doc report.Document) bool {
			var tagged report.Document
			tagged, err = doc.With(field, value)
			if err != nil {
				err = fmt.Errorf("tag %s: %w", id, err)
				return false
			}
			err = b.Add(id, tagged)
			return err == nil
		})
		return b.Build(), err
	}
}
