package chain

import (
	"fmt"
	"strings"
	"time"
)

// Definition is a named filter chain as written in YAML.
//
//	name: crash-upload
//	root:
//	  pipeline:
//	    - filter: redact
//	    - when: {larger_than: 65536}
//	      then: {filter: gzip}
//	    - fanout: [{filter: redis}, {chain: kafka-delivery}]
type Definition struct {
	Name string `yaml:"name"`
	Root Node   `yaml:"root"`
}

// Node is one element of a chain. Exactly one of Filter, Chain, Pipeline,
// FanOut or When must be set.
type Node struct {
	// Name labels composites in logs and error paths. Defaults to the
	// node's position in the chain.
	Name string `yaml:"name,omitempty"`

	// Filter references a filter in the registry.
	Filter string `yaml:"filter,omitempty"`
	// Chain includes another definition by name.
	Chain string `yaml:"chain,omitempty"`

	Pipeline []Node `yaml:"pipeline,omitempty"`

	FanOut []Node     `yaml:"fanout,omitempty"`
	Merge  *MergeSpec `yaml:"merge,omitempty"`
	When   *Condition `yaml:"when,omitempty"`
	Then   *Node      `yaml:"then,omitempty"`
	Else   *Node      `yaml:"else,omitempty"`

	// Retry and Breaker decorate any node kind. Retry wraps the breaker,
	// so calls rejected by an open circuit are not retried.
	Retry   *RetrySpec   `yaml:"retry,omitempty"`
	Breaker *BreakerSpec `yaml:"breaker,omitempty"`
}

// MergeSpec selects the fan-in merge. An empty spec is the priority merge.
type MergeSpec struct {
	// Keys nests each branch's document under the key at the branch index.
	Keys []string `yaml:"keys,omitempty"`
}

// RetrySpec wraps the node in a retry decorator.
type RetrySpec struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// BreakerSpec wraps the node in a circuit breaker shared by every run of
// the built chain.
type BreakerSpec struct {
	MaxFailures   int           `yaml:"max_failures"`
	OpenTimeout   time.Duration `yaml:"open_timeout"`
	HalfOpenCalls int           `yaml:"half_open_calls"`
}

// Condition is a predicate. Exactly one field must be set.
type Condition struct {
	// Predicate references a predicate in the registry.
	Predicate    string      `yaml:"predicate,omitempty"`
	LargerThan   *int        `yaml:"larger_than,omitempty"`
	FieldEquals  *FieldMatch `yaml:"field_equals,omitempty"`
	FieldMatches *FieldMatch `yaml:"field_matches,omitempty"`
	Not          *Condition  `yaml:"not,omitempty"`
}

// FieldMatch addresses a field by dotted path.
type FieldMatch struct {
	Path    string `yaml:"path"`
	Value   any    `yaml:"value,omitempty"`
	Pattern string `yaml:"pattern,omitempty"`
}

func (f *FieldMatch) keys() []string {
	return strings.Split(f.Path, ".")
}

func (n *Node) kind() (string, error) {
	var kinds []string
	if n.Filter != "" {
		kinds = append(kinds, "filter")
	}
	if n.Chain != "" {
		kinds = append(kinds, "chain")
	}
	if n.Pipeline != nil {
		kinds = append(kinds, "pipeline")
	}
	if n.FanOut != nil {
		kinds = append(kinds, "fanout")
	}
	if n.When != nil {
		kinds = append(kinds, "when")
	}
	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("%w: node sets none of filter, chain, pipeline, fanout, when", ErrInvalidNode)
	case 1:
	default:
		return "", fmt.Errorf("%w: node sets %s", ErrInvalidNode, strings.Join(kinds, " and "))
	}
	if kinds[0] != "when" && (n.Then != nil || n.Else != nil) {
		return "", fmt.Errorf("%w: then/else without when", ErrInvalidNode)
	}
	if kinds[0] != "fanout" && n.Merge != nil {
		return "", fmt.Errorf("%w: merge without fanout", ErrInvalidNode)
	}
	return kinds[0], nil
}
