// Package batch runs many truss optimizations at once, each on its own mesh.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"Trusslab/internal/calc/truss"

	"golang.org/x/sync/errgroup"
)

var (
	ErrNoItems  = errors.New("batch: no items")
	ErrTooMany  = errors.New("batch: too many items")
	ErrBadSheet = errors.New("batch: invalid sheet")
	ErrCanceled = errors.New("batch: canceled")
)

type BatchInput struct {
	Items []truss.Input `json:"items"`
}

// ItemResult is the outcome of one item. Error is set when the item could not
// start; a run that stopped early is reported through Result.Success.
type ItemResult struct {
	Index  int                       `json:"index"`
	Result *truss.OptimizationResult `json:"result,omitempty"`
	Error  string                    `json:"error,omitempty"`
}

type BatchResult struct {
	Count     int          `json:"count"`
	Succeeded int          `json:"succeeded"`
	Results   []ItemResult `json:"results"`
}

// Workers bounds the number of items optimized at the same time.
var Workers = runtime.NumCPU()

// Run optimizes every item and returns the results in input order. A failing
// item does not stop the others; only cancellation of ctx fails the batch.
func Run(ctx context.Context, in BatchInput) (BatchResult, error) {
	if len(in.Items) == 0 {
		return BatchResult{}, ErrNoItems
	}
	out := BatchResult{Count: len(in.Items), Results: make([]ItemResult, len(in.Items))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(Workers, 1))
	for i, item := range in.Items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := truss.Optimize(gctx, item)
			ir := ItemResult{Index: i}
			if err != nil {
				ir.Error = err.Error()
			} else {
				ir.Result = &res
			}
			out.Results[i] = ir
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	if err := ctx.Err(); err != nil {
		return BatchResult{}, fmt.Errorf("%w: %v", ErrCanceled, err)
	}

	for _, r := range out.Results {
		if r.Result != nil && r.Result.Success {
			out.Succeeded++
		}
	}
	return out, nil
}
