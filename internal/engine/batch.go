package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"eet/internal/receipt"
	"eet/internal/response"
)

// SendAllReceipts drains the queue in arrival order and returns the results
// keyed by message uuid. The first failure aborts the drain and is returned
// alone; receipts sent before it leave the queue, the failing one and those
// after it stay queued.
func (e *Engine) SendAllReceipts(ctx context.Context) (map[string]*response.Result, error) {
	pending := e.Pending()
	results := make(map[string]*response.Result, len(pending))
	for _, r := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.Send(ctx, r)
		if err != nil {
			return nil, err
		}
		results[r.MessageUUID] = res
		e.dequeue(r)
	}
	return results, nil
}

// BatchResult holds the outcome of every receipt of a partial drain.
type BatchResult struct {
	Results  map[string]*response.Result
	Failures map[string]error
}

// Err joins all failures, nil when every receipt was registered.
func (b BatchResult) Err() error {
	errs := make([]error, 0, len(b.Failures))
	for key, err := range b.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", key, err))
	}
	return errors.Join(errs...)
}

// SendAllReceiptsPartial sends every queued receipt with bounded concurrency
// and keeps going past failures. Registered receipts leave the queue; failed
// ones stay queued for a later retry.
func (e *Engine) SendAllReceiptsPartial(ctx context.Context) BatchResult {
	pending := e.Pending()
	out := BatchResult{
		Results:  make(map[string]*response.Result, len(pending)),
		Failures: make(map[string]error),
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, r := range pending {
		key := batchKey(i, r)
		g.Go(func() error {
			res, err := e.Send(ctx, r)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failures[key] = err
				return nil
			}
			out.Results[key] = res
			e.dequeue(r)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func batchKey(i int, r *receipt.Receipt) string {
	if r.MessageUUID != "" {
		return r.MessageUUID
	}
	return fmt.Sprintf("queue[%d]", i)
}
