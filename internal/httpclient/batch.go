package httpclient

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// burstDampenDelay is the small sleep inserted once the in-flight set
// passes half of the parallel bound, to damp request bursts.
const burstDampenDelay = 5 * time.Millisecond

// BatchItem is one request submitted to BatchBlob, carrying the index the
// caller uses to correlate it with its own input so results can be
// reassembled in input order regardless of completion order.
type BatchItem struct {
	Index   int
	Request Request
}

// BatchResult is the outcome of one BatchItem, always present at
// result[i].Index == i regardless of completion order.
type BatchResult struct {
	Index    int
	Response Response
	Err      error
}

// BatchBlob submits items with bounded parallelism equal to the smaller of
// the client's pool capacity, 2x hardware concurrency, and len(items),
// prioritizing larger bodies first so big uploads are not left to the tail
// of the batch. Results are returned in input order.
func (c *Client) BatchBlob(ctx context.Context, items []BatchItem, hardwareConcurrency int) []BatchResult {
	results := make([]BatchResult, len(items))
	if len(items) == 0 {
		return results
	}

	bound := c.cfg.PoolCapacity
	if doubled := hardwareConcurrency * 2; doubled < bound {
		bound = doubled
	}
	if len(items) < bound {
		bound = len(items)
	}
	if bound < 1 {
		bound = 1
	}

	ordered := make([]BatchItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Request.Body) > len(ordered[j].Request.Body)
	})

	var inFlight int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bound)

	var mu sync.Mutex
	for _, item := range ordered {
		item := item
		if n := atomic.AddInt64(&inFlight, 1); n > int64(bound)/2 {
			time.Sleep(burstDampenDelay)
		}
		g.Go(func() error {
			defer atomic.AddInt64(&inFlight, -1)
			resp, err := c.Do(gctx, item.Request)
			mu.Lock()
			results[item.Index] = BatchResult{Index: item.Index, Response: resp, Err: err}
			mu.Unlock()
			return nil // per-item errors are carried in the result, not propagated to the group
		})
	}
	_ = g.Wait()

	return results
}
