package runner

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Runner runs the gateway's long-lived tasks as one errgroup. The first
// task failure cancels the group context handed to every task, so the
// remaining tasks can stop instead of outliving a half-dead process.
type Runner struct {
	g   *errgroup.Group
	ctx context.Context
}

func New(ctx context.Context) *Runner {
	g, gctx := errgroup.WithContext(ctx)

	return &Runner{
		g:   g,
		ctx: gctx,
	}
}

// Go starts f under the group context, cancelled when the parent context is
// cancelled or when any task returns an error.
func (r *Runner) Go(f func(ctx context.Context) error) {
	r.g.Go(func() error {
		return f(r.ctx)
	})
}

func (r *Runner) Wait() error {
	return r.g.Wait()
}
