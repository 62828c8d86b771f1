// Package lifecycle collects shutdown hooks and runs them exactly once.
package lifecycle

import (
	"context"
	"errors"
	"sync"

	u "code2diagram/internal/utils"
)

// Hook releases one resource. It should honour ctx.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// Registry runs registered hooks in reverse order on Shutdown.
type Registry struct {
	mu    sync.Mutex
	hooks []namedHook
	once  sync.Once
	err   error
	done  bool
}

func New() *Registry {
	return &Registry{}
}

// Register adds a hook. Hooks registered after Shutdown are ignored.
func (r *Registry) Register(name string, fn Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		u.Warn("Shutdown hook registered after shutdown", "hook", name)
		return
	}
	r.hooks = append(r.hooks, namedHook{name: name, fn: fn})
}

// Shutdown runs every hook once, last registered first. A failing hook does
// not stop the rest; all failures are joined. Later calls return the first
// result without running anything.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.once.Do(func() {
		r.mu.Lock()
		r.done = true
		hooks := r.hooks
		r.hooks = nil
		r.mu.Unlock()

		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			h := hooks[i]
			if err := h.fn(ctx); err != nil {
				u.Error("Shutdown hook failed", "hook", h.name, "error", err)
				errs = append(errs, err)
				continue
			}
			u.Debug("Shutdown hook finished", "hook", h.name)
		}
		r.err = errors.Join(errs...)
	})
	return r.err
}
