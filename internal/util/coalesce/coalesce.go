// Package coalesce merges overlapping concurrent lookups into one call.
//
// Callers that arrive within the quiescence window of each other join the
// same batch: their keys are unioned and a single lookup is issued once no
// new caller has arrived for the whole window. Every caller then receives the
// subset of the shared result relevant to its own keys.
package coalesce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLookupPanicked is delivered to every waiter of a batch whose lookup panicked.
var ErrLookupPanicked = errors.New("coalesce: lookup panicked")

// LookupFunc resolves a batch of keys.
type LookupFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// MergeFunc extracts one caller's answer from the shared batch result.
// It must not modify result, which is shared by every caller of the batch.
type MergeFunc[K comparable, V any] func(result map[K]V, keys []K) (map[K]V, error)

// SubsetMerge returns the entries of result whose key is in keys.
func SubsetMerge[K comparable, V any](result map[K]V, keys []K) (map[K]V, error) {
	out := make(map[K]V, len(keys))
	for _, k := range keys {
		if v, ok := result[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

type outcome[K comparable, V any] struct {
	result map[K]V
	err    error
}

type waiter[K comparable, V any] struct {
	done chan outcome[K, V]
}

// Coalescer batches lookups issued within a quiescence window.
type Coalescer[K comparable, V any] struct {
	lookup LookupFunc[K, V]
	merge  MergeFunc[K, V]
	window time.Duration

	mu      sync.Mutex
	keys    []K
	seen    map[K]struct{}
	waiters []waiter[K, V]
	ctx     context.Context
	timer   *time.Timer
	gen     uint64
}

// New returns a Coalescer. A nil merge defaults to SubsetMerge.
func New[K comparable, V any](lookup LookupFunc[K, V], merge MergeFunc[K, V], window time.Duration) *Coalescer[K, V] {
	if merge == nil {
		merge = SubsetMerge[K, V]
	}
	return &Coalescer[K, V]{
		lookup: lookup,
		merge:  merge,
		window: window,
		seen:   make(map[K]struct{}),
	}
}

// Get joins the open batch with keys and waits for its result.
//
// If ctx ends first Get returns ctx.Err(); the batch itself still runs, with
// a context detached from the cancellation of the caller that opened it.
func (c *Coalescer[K, V]) Get(ctx context.Context, keys []K) (map[K]V, error) {
	done := make(chan outcome[K, V], 1)

	c.mu.Lock()
	for _, k := range keys {
		if _, ok := c.seen[k]; ok {
			continue
		}
		c.seen[k] = struct{}{}
		c.keys = append(c.keys, k)
	}
	c.waiters = append(c.waiters, waiter[K, V]{done: done})
	if c.ctx == nil {
		c.ctx = context.WithoutCancel(ctx)
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.window, func() { c.flush(gen) })
	c.mu.Unlock()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		return c.merge(o.result, keys)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flush runs the batch scheduled as generation gen. The pending state is
// captured and reset before lookup so later callers open a new batch.
func (c *Coalescer[K, V]) flush(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || len(c.waiters) == 0 {
		c.mu.Unlock()
		return
	}
	keys, waiters, ctx := c.keys, c.waiters, c.ctx
	c.keys = nil
	c.seen = make(map[K]struct{})
	c.waiters = nil
	c.ctx = nil
	c.timer = nil
	c.mu.Unlock()

	result, err := c.call(ctx, keys)
	for _, w := range waiters {
		w.done <- outcome[K, V]{result: result, err: err}
	}
}

// call runs lookup, turning a panic into ErrLookupPanicked so waiters are
// always answered.
func (c *Coalescer[K, V]) call(ctx context.Context, keys []K) (result map[K]V, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%w: %v", ErrLookupPanicked, r)
		}
	}()
	return c.lookup(ctx, keys)
}
