package chain

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kbukum/reportflow/filter"
)

// Definition errors. Build wraps them with the node path.
var (
	ErrInvalidNode      = errors.New("invalid chain node")
	ErrUnknownFilter    = errors.New("filter not registered")
	ErrUnknownPredicate = errors.New("predicate not registered")
	ErrCircularInclude  = errors.New("circular chain include")
	ErrNotFound         = errors.New("chain definition not found")
)

// Build resolves def into an executable filter. Filter and predicate names
// are looked up in registry; chain includes are loaded through loader, which
// may be nil when def has none. The returned filter is immutable and may be
// run concurrently.
func Build(def *Definition, registry *filter.Registry, loader Loader) (filter.Filter, error) {
	b := &builder{
		registry: registry,
		loader:   loader,
		stack:    make(map[string]bool),
		built:    make(map[string]filter.Filter),
	}
	return b.definition(def)
}

// Load loads the named definition through loader and builds it.
func Load(name string, registry *filter.Registry, loader Loader) (filter.Filter, error) {
	def, err := loader.Load(name)
	if err != nil {
		return nil, err
	}
	return Build(def, registry, loader)
}

type builder struct {
	registry *filter.Registry
	loader   Loader
	stack    map[string]bool          // includes on the current path
	built    map[string]filter.Filter // resolved includes, reused on diamonds
}

func (b *builder) definition(def *Definition) (filter.Filter, error) {
	if b.stack[def.Name] {
		return nil, fmt.Errorf("%w: %q", ErrCircularInclude, def.Name)
	}
	b.stack[def.Name] = true
	defer delete(b.stack, def.Name)

	root := def.Root
	if root.Name == "" {
		root.Name = def.Name
	}
	f, err := b.node(&root, def.Name)
	if err != nil {
		return nil, fmt.Errorf("chain %q: %w", def.Name, err)
	}
	b.built[def.Name] = f
	return f, nil
}

func (b *builder) node(n *Node, path string) (filter.Filter, error) {
	kind, err := n.kind()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	name := n.Name
	if name == "" {
		name = path
	}

	var f filter.Filter
	switch kind {
	case "filter":
		var ok bool
		if f, ok = b.registry.Get(n.Filter); !ok {
			return nil, fmt.Errorf("%s: %w: %q", path, ErrUnknownFilter, n.Filter)
		}
	case "chain":
		f, err = b.include(n.Chain)
	case "pipeline":
		var stages []filter.Filter
		if stages, err = b.nodes(n.Pipeline, name); err == nil {
			f = filter.NewPipeline(name, stages...)
		}
	case "fanout":
		var branches []filter.Filter
		if branches, err = b.nodes(n.FanOut, name); err == nil {
			fan := filter.NewFanOut(name, branches...)
			if n.Merge != nil && len(n.Merge.Keys) > 0 {
				if len(n.Merge.Keys) != len(branches) {
					return nil, fmt.Errorf("%s: %w: %d merge keys for %d branches", path, ErrInvalidNode, len(n.Merge.Keys), len(branches))
				}
				fan = fan.WithMerge(filter.KeyedMerge(n.Merge.Keys...))
			}
			f = fan
		}
	case "when":
		f, err = b.conditional(n, name)
	}
	if err != nil {
		return nil, err
	}

	if n.Breaker != nil {
		f = filter.WithCircuitBreaker(f, filter.BreakerConfig{
			MaxFailures:   n.Breaker.MaxFailures,
			OpenTimeout:   n.Breaker.OpenTimeout,
			HalfOpenCalls: n.Breaker.HalfOpenCalls,
		})
	}
	if n.Retry != nil {
		f = filter.WithRetry(f, filter.RetryConfig{
			MaxAttempts:    n.Retry.MaxAttempts,
			InitialBackoff: n.Retry.InitialBackoff,
			MaxBackoff:     n.Retry.MaxBackoff,
		})
	}
	return f, nil
}

func (b *builder) nodes(defs []Node, parent string) ([]filter.Filter, error) {
	out := make([]filter.Filter, 0, len(defs))
	for i := range defs {
		f, err := b.node(&defs[i], parent+"."+strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (b *builder) include(name string) (filter.Filter, error) {
	if b.stack[name] {
		return nil, fmt.Errorf("%w: %q", ErrCircularInclude, name)
	}
	if f, ok := b.built[name]; ok {
		return f, nil
	}
	if b.loader == nil {
		return nil, fmt.Errorf("include %q: %w", name, ErrNotFound)
	}
	def, err := b.loader.Load(name)
	if err != nil {
		return nil, fmt.Errorf("include %q: %w", name, err)
	}
	return b.definition(def)
}

func (b *builder) conditional(n *Node, name string) (filter.Filter, error) {
	if n.Then == nil {
		return nil, fmt.Errorf("%s: %w: when without then", name, ErrInvalidNode)
	}
	pred, err := b.predicate(n.When)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	then, err := b.node(n.Then, name+".then")
	if err != nil {
		return nil, err
	}
	var otherwise filter.Filter
	if n.Else != nil {
		if otherwise, err = b.node(n.Else, name+".else"); err != nil {
			return nil, err
		}
	}
	return filter.NewConditional(name, pred, then, otherwise), nil
}

func (b *builder) predicate(c *Condition) (filter.Predicate, error) {
	var (
		set  int
		pred filter.Predicate
	)
	if c.Predicate != "" {
		set++
		p, ok := b.registry.Predicate(c.Predicate)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPredicate, c.Predicate)
		}
		pred = p
	}
	if c.LargerThan != nil {
		set++
		pred = filter.LargerThan(*c.LargerThan)
	}
	if c.FieldEquals != nil {
		set++
		pred = filter.FieldEquals(c.FieldEquals.Value, c.FieldEquals.keys()...)
	}
	if c.FieldMatches != nil {
		set++
		pred = filter.FieldMatches(c.FieldMatches.Pattern, c.FieldMatches.keys()...)
	}
	if c.Not != nil {
		set++
		inner, err := b.predicate(c.Not)
		if err != nil {
			return nil, err
		}
		pred = filter.Not(inner)
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: condition must set exactly one predicate, got %d", ErrInvalidNode, set)
	}
	return pred, nil
}
