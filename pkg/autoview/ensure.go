package autoview

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// EnsureViews creates the design docs of the given views that do not exist
// yet. The design docs are created concurrently, and the first error is
// returned.
func EnsureViews(ctx context.Context, store Store, specs ...*Spec) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		view := NewAutoView(store, spec)
		g.Go(func() error {
			return view.Ensure(ctx)
		})
	}
	return g.Wait()
}
