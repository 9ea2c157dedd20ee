package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Hook is one boot step of the node runtime.
type Hook struct {
	Name       string
	Ignite     func(ctx context.Context) error
	Extinguish func(ctx context.Context) error
}

type RuntimeStatus struct {
	Ignited    bool       `json:"ignited"`
	IgnitedAt  *time.Time `json:"ignitedAt,omitempty"`
	Boots      int64      `json:"boots"`
	Components []string   `json:"components"`
}

// Runtime is the node-wide context that has to be ignited before holon
// operations run. It is built once by main and shared by reference.
type Runtime struct {
	mu        sync.Mutex
	ignited   atomic.Bool
	ignitedAt time.Time
	boots     atomic.Int64
	hooks     []Hook
}

func NewRuntime(hooks ...Hook) *Runtime {
	return &Runtime{hooks: hooks}
}

func (r *Runtime) IsIgnited() bool {
	return r.ignited.Load()
}

// Ignite runs every hook once. Concurrent callers wait for the boot in
// flight and then return without booting again.
func (r *Runtime) Ignite(ctx context.Context) error {
	if r.ignited.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ignited.Load() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "Runtime.Service.Ignite")
	defer span.End()

	for i, hook := range r.hooks {
		if hook.Ignite == nil {
			continue
		}
		if err := hook.Ignite(ctx); err != nil {
			r.rollback(ctx, i)
			err = errors.Wrapf(err, "runtime ignite %s failed", hook.Name)
			span.RecordError(err)
			return err
		}
		span.SetAttributes(attribute.String("hook."+hook.Name, "ok"))
	}

	r.ignitedAt = time.Now()
	r.boots.Add(1)
	r.ignited.Store(true)
	slog.InfoContext(ctx, "runtime ignited", slog.Int("hooks", len(r.hooks)), slog.String("module", "runtime"))
	return nil
}

// rollback extinguishes the hooks that ignited before hook n failed.
func (r *Runtime) rollback(ctx context.Context, n int) {
	for i := n - 1; i >= 0; i-- {
		hook := r.hooks[i]
		if hook.Extinguish == nil {
			continue
		}
		if err := hook.Extinguish(ctx); err != nil {
			slog.ErrorContext(
				ctx, "runtime rollback failed",
				slog.String("hook", hook.Name),
				slog.String("error", err.Error()),
				slog.String("module", "runtime"),
			)
		}
	}
}

// Extinguish shuts the hooks down in reverse order. It is a no-op when the
// runtime is not ignited.
func (r *Runtime) Extinguish(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ignited.Load() {
		return nil
	}

	var firstErr error
	for i := len(r.hooks) - 1; i >= 0; i-- {
		hook := r.hooks[i]
		if hook.Extinguish == nil {
			continue
		}
		if err := hook.Extinguish(ctx); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "runtime extinguish %s failed", hook.Name)
		}
	}

	r.ignited.Store(false)
	slog.InfoContext(ctx, "runtime extinguished", slog.String("module", "runtime"))
	return firstErr
}

func (r *Runtime) Status() RuntimeStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := RuntimeStatus{
		Ignited: r.ignited.Load(),
		Boots:   r.boots.Load(),
	}
	if status.Ignited {
		t := r.ignitedAt
		status.IgnitedAt = &t
	}
	for _, hook := range r.hooks {
		status.Components = append(status.Components, hook.Name)
	}
	return status
}
