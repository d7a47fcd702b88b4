package bootstrap

import (
	"context"
	"fmt"
)

// Hook is a lifecycle callback. It receives the app so it can extend the
// registry, inspect the sinks or submit warm-up runs.
type Hook func(ctx context.Context, app *App) error

type phase string

const (
	phaseStart phase = "start"
	phaseReady phase = "ready"
	phaseStop  phase = "stop"
)

// OnStart registers hooks that run once the sinks are connected. Filters
// and predicates registered here are visible to the root chain.
func (a *App) OnStart(hooks ...Hook) {
	a.hooks[phaseStart] = append(a.hooks[phaseStart], hooks...)
}

// OnReady registers hooks that run once the root chain is built and
// Submit accepts runs.
func (a *App) OnReady(hooks ...Hook) {
	a.hooks[phaseReady] = append(a.hooks[phaseReady], hooks...)
}

// OnStop registers hooks that run first in Shutdown, while the executor
// still accepts runs.
func (a *App) OnStop(hooks ...Hook) {
	a.hooks[phaseStop] = append(a.hooks[phaseStop], hooks...)
}

// runHooks stops at the first failing hook of p.
func (a *App) runHooks(ctx context.Context, p phase) error {
	for i, h := range a.hooks[p] {
		if err := h(ctx, a); err != nil {
			return fmt.Errorf("%s hook %d: %w", p, i, err)
		}
	}
	return nil
}
