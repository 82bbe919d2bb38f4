// Package optimistic implements the snapshot/apply/commit/rollback cycle used for
// speculative updates of cached views.
package optimistic

import (
	"context"
	"errors"
)

// Store holds the view being updated speculatively.
type Store[V any] interface {
	Load(ctx context.Context, key string) (V, bool, error)
	Save(ctx context.Context, key string, value V) error
	Forget(ctx context.Context, key string) error
}

// Mutation describes one speculative change.
type Mutation[V any] struct {
	Key string
	// Apply derives the speculative value from the snapshot; had is false when nothing was cached.
	Apply func(prev V, had bool) (V, bool)
	// Commit performs the authoritative write and returns the reconciled value.
	Commit func(ctx context.Context) (V, error)
}

// Outcome reports what happened to the view.
type Outcome struct {
	Speculated bool
	RolledBack bool
	StoreErr   error
}

// Run captures the current value, applies the speculative value, commits and then either
// reconciles with the committed value or restores the snapshot. Commit errors are returned
// unchanged and never retried; view store failures are reported in Outcome only.
func Run[V any](ctx context.Context, store Store[V], m Mutation[V]) (V, Outcome, error) {
	var out Outcome

	prev, had, err := store.Load(ctx, m.Key)
	if err != nil {
		out.StoreErr = err
		had = false
	}

	if m.Apply != nil {
		if next, ok := m.Apply(prev, had); ok {
			if err := store.Save(ctx, m.Key, next); err != nil {
				out.StoreErr = errors.Join(out.StoreErr, err)
			} else {
				out.Speculated = true
			}
		}
	}

	result, err := m.Commit(ctx)
	if err != nil {
		var zero V
		if out.Speculated {
			out.RolledBack = true
			var restoreErr error
			if had {
				restoreErr = store.Save(ctx, m.Key, prev)
			} else {
				restoreErr = store.Forget(ctx, m.Key)
			}
			if restoreErr != nil {
				out.StoreErr = errors.Join(out.StoreErr, restoreErr)
			}
		}
		return zero, out, err
	}

	if err := store.Save(ctx, m.Key, result); err != nil {
		out.StoreErr = errors.Join(out.StoreErr, err)
	}
	return result, out, nil
}
