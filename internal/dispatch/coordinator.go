// Package dispatch runs search units on a bounded worker pool with
// backpressure and per-request deadlines.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/siri1404/NeuroRAG/internal/affinity"
	"github.com/siri1404/NeuroRAG/internal/core"
	"github.com/siri1404/NeuroRAG/internal/metrics"
)

// SearchFunc executes one search unit against the index and cache.
type SearchFunc func(req core.SearchRequest) (core.SearchResult, error)

// Config sizes the worker pool and its admission queue.
type Config struct {
	// Workers is the number of pool goroutines. Zero picks a small default.
	Workers int
	// QueueDepth bounds how many units may wait for a worker. A full
	// queue rejects new units immediately.
	QueueDepth int
	// DefaultTimeout applies when a request carries no deadline of its own.
	DefaultTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 4
	}
	if c.QueueDepth < 1 {
		c.QueueDepth = 256
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 2 * time.Second
	}
	return c
}

type outcome struct {
	result core.SearchResult
	err    error
}

// unit is one queued query. done is buffered so a worker can always
// deliver without blocking, even after the waiter gave up.
type unit struct {
	req       core.SearchRequest
	abandoned atomic.Bool
	done      chan outcome
}

// Coordinator accepts single and batch search requests, enforces queue
// backpressure, and guarantees exactly one outcome per unit: a result, a
// timeout, an overload rejection, or an execution error.
type Coordinator struct {
	cfg      Config
	searchFn SearchFunc
	logger   *zap.Logger

	queue  chan *unit
	stopCh chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewCoordinator starts the worker pool. When aff is non-nil, workers are
// spread across locality domains per its plan and pinned on startup.
func NewCoordinator(cfg Config, searchFn SearchFunc, aff *affinity.Manager, logger *zap.Logger) *Coordinator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		cfg:      cfg,
		searchFn: searchFn,
		logger:   logger,
		queue:    make(chan *unit, cfg.QueueDepth),
		stopCh:   make(chan struct{}),
	}

	if aff != nil {
		for _, assign := range aff.WorkerPlan(cfg.Workers) {
			for i := 0; i < assign.Workers; i++ {
				c.wg.Add(1)
				go c.worker(aff, assign.Domain)
			}
		}
	} else {
		for i := 0; i < cfg.Workers; i++ {
			c.wg.Add(1)
			go c.worker(nil, 0)
		}
	}

	logger.Info("dispatch pool started",
		zap.Int("workers", cfg.Workers),
		zap.Int("queue_depth", cfg.QueueDepth))
	return c
}

func (c *Coordinator) worker(aff *affinity.Manager, domain int) {
	defer c.wg.Done()
	if aff != nil {
		aff.PinWorker(domain)
	}
	for {
		select {
		case <-c.stopCh:
			return
		case u := <-c.queue:
			metrics.DispatchQueueDepth.Dec()
			c.execute(u)
		}
	}
}

func (c *Coordinator) execute(u *unit) {
	// A unit whose waiter already timed out is not worth computing.
	if u.abandoned.Load() {
		return
	}
	result, err := c.searchFn(u.req)
	// Buffered send never blocks; if the waiter is gone the outcome is
	// simply discarded.
	u.done <- outcome{result: result, err: err}
}

// Dispatch queues one search unit and blocks until its outcome or deadline.
func (c *Coordinator) Dispatch(ctx context.Context, req core.SearchRequest) (core.SearchResult, error) {
	if c.closed.Load() {
		return core.SearchResult{}, core.NewUnavailableError("search", "dispatcher shut down")
	}

	deadline := req.Deadline
	if deadline.IsZero() {
		deadline = time.Now().Add(c.cfg.DefaultTimeout)
	}
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	req.Deadline = deadline

	u := &unit{req: req, done: make(chan outcome, 1)}

	select {
	case c.queue <- u:
		metrics.DispatchQueueDepth.Inc()
	default:
		metrics.DispatchRejectionsTotal.Inc()
		return core.SearchResult{}, core.NewResourceExhaustedError("dispatch_queue",
			"worker queue full, retry with backoff")
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case out := <-u.done:
		return out.result, out.err
	case <-timer.C:
		u.abandoned.Store(true)
		metrics.DispatchAbandonedTotal.Inc()
		c.logger.Debug("search unit abandoned at deadline",
			zap.String("request_id", req.RequestID))
		return core.SearchResult{}, core.NewDeadlineExceededError("search")
	case <-ctx.Done():
		u.abandoned.Store(true)
		metrics.DispatchAbandonedTotal.Inc()
		return core.SearchResult{}, core.NewDeadlineExceededError("search")
	}
}

// DispatchBatch decomposes a batch into independent units and reassembles
// their outcomes in submission order. Units may fail individually; the
// result and error slices are index-aligned with reqs.
func (c *Coordinator) DispatchBatch(ctx context.Context, reqs []core.SearchRequest) ([]core.SearchResult, []error) {
	results := make([]core.SearchResult, len(reqs))
	errs := make([]error, len(reqs))

	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Dispatch(ctx, reqs[i])
		}(i)
	}
	wg.Wait()
	return results, errs
}

// Close drains the pool. Units still queued are abandoned; their waiters
// time out normally.
func (c *Coordinator) Close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.stopCh)
	c.wg.Wait()
}
