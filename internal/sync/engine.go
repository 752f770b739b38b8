package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	gosync "sync"

	"github.com/propaths/propaths/internal/discovery"
)

// ErrQueueFull is returned by Submit when the batch queue is at capacity.
var ErrQueueFull = errors.New("sync queue is full")

// BatchJob is one queued sync batch.
type BatchJob struct {
	// RunID is the provenance id for the batch; minted when empty.
	RunID string

	// Source names where the batch came from (API call, cache file path).
	Source string

	Items []discovery.DiscoveredInteraction
}

// Engine runs sync batches on a fixed worker pool. Results are delivered
// through the OnBatchDone callback so the web layer can broadcast progress.
type Engine struct {
	syncer  *Syncer
	queue   chan *BatchJob
	workers int

	// OnBatchDone, when set before Start, is invoked after every batch with
	// its result and aggregated error (nil when everything synced).
	OnBatchDone func(*BatchResult, error)

	mu           gosync.Mutex
	started      bool
	workerCancel context.CancelFunc
	wg           gosync.WaitGroup
}

// NewEngine creates a sync engine with the given pool size and queue depth.
func NewEngine(syncer *Syncer, workers, queueSize int) *Engine {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Engine{
		syncer:  syncer,
		queue:   make(chan *BatchJob, queueSize),
		workers: workers,
	}
}

// Start launches the worker pool.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("sync engine already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.workerCancel = cancel
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}
	e.started = true
	log.Printf("sync: engine started with %d workers", e.workers)
	return nil
}

// Submit enqueues a batch without blocking.
func (e *Engine) Submit(job *BatchJob) error {
	// Held across the send so Shutdown cannot close the queue under us.
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return fmt.Errorf("sync engine not started")
	}

	if job.RunID == "" {
		job.RunID = NewRunID()
	}
	select {
	case e.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth reports how many batches are waiting.
func (e *Engine) QueueDepth() int {
	return len(e.queue)
}

// Shutdown stops the pool gracefully: queued batches finish, the cancelled
// context stops in-flight batches between items, and nothing is rolled
// back. Returns the context's error if the workers outlive it.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return fmt.Errorf("sync engine not started")
	}
	e.started = false
	log.Println("sync: shutting down engine...")
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Tell in-flight batches to stop between items, then wait them out.
		e.workerCancel()
		<-done
		log.Println("sync: engine shut down after cancelling in-flight batches")
		return ctx.Err()
	}

	e.workerCancel()
	log.Println("sync: engine shut down")
	return nil
}

func (e *Engine) worker(ctx context.Context, workerID int) {
	defer e.wg.Done()
	log.Printf("sync: worker %d started", workerID)

	for job := range e.queue {
		result, err := e.syncer.SyncBatch(ctx, job.RunID, job.Items)
		if err != nil {
			log.Printf("sync: worker %d finished %s from %s with failures: %v",
				workerID, job.RunID, job.Source, err)
		} else {
			log.Printf("sync: worker %d finished %s from %s: %d synced",
				workerID, job.RunID, job.Source, result.Synced)
		}
		if e.OnBatchDone != nil {
			e.OnBatchDone(result, err)
		}
	}

	log.Printf("sync: worker %d stopped", workerID)
}
