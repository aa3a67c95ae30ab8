package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siri1404/NeuroRAG/internal/core"
)

func echoSearch(req core.SearchRequest) (core.SearchResult, error) {
	return core.SearchResult{IDs: []int64{int64(req.K)}}, nil
}

func TestDispatchDeliversResult(t *testing.T) {
	c := NewCoordinator(Config{Workers: 2, QueueDepth: 8}, echoSearch, nil, zap.NewNop())
	defer c.Close()

	res, err := c.Dispatch(context.Background(), core.SearchRequest{K: 7})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, res.IDs)
}

func TestDispatchOverloadRejectsImmediately(t *testing.T) {
	block := make(chan struct{})
	slow := func(req core.SearchRequest) (core.SearchResult, error) {
		<-block
		return core.SearchResult{}, nil
	}
	c := NewCoordinator(Config{Workers: 1, QueueDepth: 1, DefaultTimeout: 5 * time.Second}, slow, nil, zap.NewNop())
	defer c.Close()
	defer close(block)

	// Saturate the single worker, then the single queue slot.
	go c.Dispatch(context.Background(), core.SearchRequest{}) //nolint:errcheck
	time.Sleep(50 * time.Millisecond)
	go c.Dispatch(context.Background(), core.SearchRequest{}) //nolint:errcheck
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	_, err := c.Dispatch(context.Background(), core.SearchRequest{})
	require.Error(t, err)
	assert.True(t, core.IsCapacity(err), "overload must be a capacity error, got %v", err)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "rejection must not wait for the queue")
}

func TestDispatchDeadlineAbandons(t *testing.T) {
	var executed atomic.Int32
	slow := func(req core.SearchRequest) (core.SearchResult, error) {
		time.Sleep(200 * time.Millisecond)
		executed.Add(1)
		return core.SearchResult{IDs: []int64{1}}, nil
	}
	c := NewCoordinator(Config{Workers: 1, QueueDepth: 8}, slow, nil, zap.NewNop())
	defer c.Close()

	req := core.SearchRequest{Deadline: time.Now().Add(30 * time.Millisecond)}
	_, err := c.Dispatch(context.Background(), req)
	require.Error(t, err)
	assert.True(t, core.IsTimeout(err), "expected timeout, got %v", err)

	// The in-flight unit may still finish; its result must just be discarded.
	time.Sleep(300 * time.Millisecond)
	assert.LessOrEqual(t, executed.Load(), int32(1))
}

func TestDispatchQueuedUnitSkippedAfterDeadline(t *testing.T) {
	var executed atomic.Int32
	block := make(chan struct{})
	fn := func(req core.SearchRequest) (core.SearchResult, error) {
		if req.RequestID == "blocker" {
			<-block
			return core.SearchResult{}, nil
		}
		executed.Add(1)
		return core.SearchResult{}, nil
	}
	c := NewCoordinator(Config{Workers: 1, QueueDepth: 8}, fn, nil, zap.NewNop())
	defer c.Close()

	go c.Dispatch(context.Background(), core.SearchRequest{RequestID: "blocker", Deadline: time.Now().Add(5 * time.Second)}) //nolint:errcheck
	time.Sleep(50 * time.Millisecond)

	// This unit times out while still queued behind the blocker.
	_, err := c.Dispatch(context.Background(), core.SearchRequest{Deadline: time.Now().Add(30 * time.Millisecond)})
	require.True(t, core.IsTimeout(err))

	close(block)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), executed.Load(), "abandoned queued unit must not execute")
}

func TestDispatchBatchPreservesOrder(t *testing.T) {
	fn := func(req core.SearchRequest) (core.SearchResult, error) {
		// Later units finish first to exercise reassembly.
		time.Sleep(time.Duration(10-req.K) * 5 * time.Millisecond)
		return core.SearchResult{IDs: []int64{int64(req.K)}}, nil
	}
	c := NewCoordinator(Config{Workers: 8, QueueDepth: 32}, fn, nil, zap.NewNop())
	defer c.Close()

	reqs := make([]core.SearchRequest, 10)
	for i := range reqs {
		reqs[i] = core.SearchRequest{K: i}
	}
	results, errs := c.DispatchBatch(context.Background(), reqs)
	require.Len(t, results, 10)
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, []int64{int64(i)}, results[i].IDs, "slot %d out of order", i)
	}
}

func TestDispatchBatchIsolatesFailures(t *testing.T) {
	fn := func(req core.SearchRequest) (core.SearchResult, error) {
		if req.K%2 == 1 {
			return core.SearchResult{}, core.NewInvalidArgumentError("k", fmt.Sprintf("bad k %d", req.K))
		}
		return core.SearchResult{IDs: []int64{int64(req.K)}}, nil
	}
	c := NewCoordinator(Config{Workers: 4, QueueDepth: 16}, fn, nil, zap.NewNop())
	defer c.Close()

	reqs := []core.SearchRequest{{K: 0}, {K: 1}, {K: 2}, {K: 3}}
	results, errs := c.DispatchBatch(context.Background(), reqs)
	assert.NoError(t, errs[0])
	assert.True(t, core.IsValidation(errs[1]))
	assert.NoError(t, errs[2])
	assert.True(t, core.IsValidation(errs[3]))
	assert.Equal(t, []int64{2}, results[2].IDs)
}

func TestDispatchAfterCloseUnavailable(t *testing.T) {
	c := NewCoordinator(Config{Workers: 1, QueueDepth: 1}, echoSearch, nil, zap.NewNop())
	c.Close()

	_, err := c.Dispatch(context.Background(), core.SearchRequest{})
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
}
