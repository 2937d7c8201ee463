package worker

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPoolValidation(t *testing.T) {
	tests := []struct {
		name      string
		workers   int
		queueSize int
		wantErr   bool
	}{
		{"valid", 2, 8, false},
		{"zero workers", 0, 8, true},
		{"negative queue", 2, -1, true},
		{"zero queue", 2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := NewPool(tt.workers, tt.queueSize, testLogger(), nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPool() error = %v, wantErr %v", err, tt.wantErr)
			}
			if pool != nil {
				pool.Stop()
			}
		})
	}
}

func TestPoolRunsAllJobs(t *testing.T) {
	pool, err := NewPool(4, 100, testLogger(), nil)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			atomic.AddInt32(&count, 1)
		}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	wg.Wait()

	if atomic.LoadInt32(&count) != 50 {
		t.Errorf("Expected 50 jobs run, got %d", count)
	}

	pool.Stop()

	stats := pool.GetStats()
	if stats.Submitted != 50 || stats.Completed != 50 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestPoolSubmitNeverBlocks(t *testing.T) {
	pool, err := NewPool(1, 1, testLogger(), nil)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	release := make(chan struct{})
	started := make(chan struct{})

	// Occupy the only worker
	if err := pool.Submit(func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-started

	// Fill the only queue slot
	if err := pool.Submit(func() {}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	err = pool.Submit(func() {})
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	close(release)
	pool.Stop()

	if pool.GetStats().Rejected != 1 {
		t.Errorf("Expected 1 rejected job, got %d", pool.GetStats().Rejected)
	}
}

func TestPoolStopDrainsQueue(t *testing.T) {
	pool, err := NewPool(1, 10, testLogger(), nil)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	var count int32
	for i := 0; i < 10; i++ {
		pool.Submit(func() { atomic.AddInt32(&count, 1) })
	}

	pool.Stop()

	if atomic.LoadInt32(&count) != 10 {
		t.Errorf("Expected queued jobs to run before stop returns, got %d", count)
	}

	if err := pool.Submit(func() {}); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Expected ErrPoolStopped, got %v", err)
	}

	// Second stop is a no-op
	pool.Stop()
}

func TestPoolSurvivesPanics(t *testing.T) {
	pool, err := NewPool(1, 4, testLogger(), nil)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	done := make(chan struct{})
	pool.Submit(func() { panic("boom") })
	pool.Submit(func() { close(done) })

	<-done
	pool.Stop()

	if pool.GetStats().Panics != 1 {
		t.Errorf("Expected 1 panic recorded, got %d", pool.GetStats().Panics)
	}
}
