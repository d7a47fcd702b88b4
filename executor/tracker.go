package executor

import (
	"sort"
	"sync"
)

// pendingTokens tracks the tokens of one run that have not fired yet.
type pendingTokens struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]string
}

func newPendingTokens() *pendingTokens {
	return &pendingTokens{pending: make(map[uint64]string)}
}

func (p *pendingTokens) Begin(stage string) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.pending[id] = stage
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.pending, id)
	}
}

// stages returns the stages still pending, in the order they were invoked.
func (p *pendingTokens) stages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]uint64, 0, len(p.pending))
	for id := range p.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = p.pending[id]
	}
	return out
}
