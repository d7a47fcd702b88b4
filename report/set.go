package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	apperrors "github.com/kbukum/reportflow/errors"
)

// Set is a collection of reports keyed by a unique report identifier.
// The zero value is an empty set. An empty set is valid input and output
// for every filter.
type Set struct {
	docs map[string]Document
}

// EmptySet returns a set with no reports.
func EmptySet() Set { return Set{} }

// NewSet builds a set from docs. Identifiers must be non-empty.
func NewSet(docs map[string]Document) (Set, error) {
	b := NewBuilder(len(docs))
	for id, doc := range docs {
		if err := b.Add(id, doc); err != nil {
			return Set{}, err
		}
	}
	return b.Build(), nil
}

// MustSet is NewSet that panics on error. Intended for literals.
func MustSet(docs map[string]Document) Set {
	s, err := NewSet(docs)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of reports.
func (s Set) Len() int { return len(s.docs) }

// IsEmpty reports whether the set holds no reports.
func (s Set) IsEmpty() bool { return len(s.docs) == 0 }

// Get returns the report stored under id.
func (s Set) Get(id string) (Document, bool) {
	d, ok := s.docs[id]
	return d, ok
}

// Has reports whether id is present.
func (s Set) Has(id string) bool {
	_, ok := s.docs[id]
	return ok
}

// IDs returns the report identifiers in sorted order.
func (s Set) IDs() []string {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Range calls fn for each report in identifier order until fn returns false.
func (s Set) Range(fn func(id string, doc Document) bool) {
	for _, id := range s.IDs() {
		if !fn(id, s.docs[id]) {
			return
		}
	}
}

// With returns a copy of s with doc stored under id, replacing any existing report.
func (s Set) With(id string, doc Document) (Set, error) {
	if id == "" {
		return Set{}, apperrors.InvalidInput("id", "report identifier must not be empty")
	}
	docs := make(map[string]Document, len(s.docs)+1)
	for k, v := range s.docs {
		docs[k] = v
	}
	docs[id] = doc
	return Set{docs: docs}, nil
}

// Without returns a copy of s with ids removed.
func (s Set) Without(ids ...string) Set {
	docs := make(map[string]Document, len(s.docs))
	for k, v := range s.docs {
		docs[k] = v
	}
	for _, id := range ids {
		delete(docs, id)
	}
	return Set{docs: docs}
}

// Filter returns the reports for which keep returns true.
func (s Set) Filter(keep func(id string, doc Document) bool) Set {
	docs := make(map[string]Document, len(s.docs))
	for k, v := range s.docs {
		if keep(k, v) {
			docs[k] = v
		}
	}
	return Set{docs: docs}
}

// Equal reports whether s and o hold the same identifiers with equal documents.
func (s Set) Equal(o Set) bool {
	if len(s.docs) != len(o.docs) {
		return false
	}
	for id, d := range s.docs {
		od, ok := o.docs[id]
		if !ok || !d.Equal(od) {
			return false
		}
	}
	return true
}

// String renders the identifiers, for diagnostics.
func (s Set) String() string {
	return fmt.Sprintf("Set%v", s.IDs())
}

// MarshalJSON encodes s as a JSON object keyed by report identifier.
func (s Set) MarshalJSON() ([]byte, error) {
	if s.docs == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.docs)
}

// UnmarshalJSON decodes a JSON object of reports into s.
func (s *Set) UnmarshalJSON(b []byte) error {
	parsed, err := ParseSet(b)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSet decodes a JSON object keyed by report identifier. Duplicate keys
// in the input are rejected rather than silently overwritten.
func ParseSet(b []byte) (Set, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return Set{}, fmt.Errorf("parse set: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Set{}, apperrors.InvalidInput("", "report set must be a JSON object")
	}

	builder := NewBuilder(0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Set{}, fmt.Errorf("parse set: %w", err)
		}
		id, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Set{}, fmt.Errorf("parse set: report %q: %w", id, err)
		}
		doc, err := ParseDocument(raw)
		if err != nil {
			return Set{}, fmt.Errorf("parse set: report %q: %w", id, err)
		}
		if err := builder.Add(id, doc); err != nil {
			return Set{}, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return Set{}, fmt.Errorf("parse set: %w", err)
	}
	return builder.Build(), nil
}

// Builder accumulates reports and enforces identifier uniqueness.
// A Builder must not be shared between goroutines.
type Builder struct {
	docs map[string]Document
}

// NewBuilder creates a Builder sized for n reports.
func NewBuilder(n int) *Builder {
	return &Builder{docs: make(map[string]Document, n)}
}

// Add stores doc under id. It fails if id is empty or already present.
func (b *Builder) Add(id string, doc Document) error {
	if id == "" {
		return apperrors.InvalidInput("id", "report identifier must not be empty")
	}
	if _, exists := b.docs[id]; exists {
		return apperrors.DuplicateReport(id)
	}
	b.docs[id] = doc
	return nil
}

// Has reports whether id was already added.
func (b *Builder) Has(id string) bool {
	_, ok := b.docs[id]
	return ok
}

// Len returns the number of reports added so far.
func (b *Builder) Len() int { return len(b.docs) }

// Build returns the accumulated set. The builder is reset, so later Adds do
// not affect the returned set.
func (b *Builder) Build() Set {
	s := Set{docs: b.docs}
	b.docs = make(map[string]Document)
	return s
}
