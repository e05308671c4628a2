package execution

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// RunParallel executes n clones of plan concurrently, one goroutine each.
// newCtx supplies the QueryContext of clone i; each clone fills its own
// statistics and result set. The clones are freed before RunParallel
// returns; plan itself is left untouched.
//
// The first failing clone cancels the others, whose contexts then record
// ErrQueryAborted. The returned contexts are in clone order.
func RunParallel(ctx context.Context, plan *Plan, n int, newCtx func(i int) *QueryContext) ([]*QueryContext, error) {
	if n < 1 {
		n = 1
	}

	// Cloning reads the source tree, so it happens before any worker starts.
	clones := make([]*Plan, n)
	ctxs := make([]*QueryContext, n)
	for i := range clones {
		ctxs[i] = newCtx(i)
		clones[i] = plan.Clone(ctxs[i])
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, clone := range clones {
		g.Go(func() error {
			defer clone.Free()
			return clone.Execute(gctx)
		})
	}
	err := g.Wait()
	if err != nil {
		log.Printf("[exec] parallel run of %d clones failed: %v", n, err)
	}
	return ctxs, err
}
