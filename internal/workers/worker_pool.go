package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/peerlink-network/peerlink-node/internal/utils"
)

// WorkerPool runs submitted tasks on a fixed number of workers. The worker
// count is the concurrency cap: at no point do more than numWorkers tasks
// run simultaneously. Tasks are picked up in submission order.
type WorkerPool struct {
	ctx        context.Context
	cancel     context.CancelFunc
	numWorkers int
	taskChan   chan func()
	wg         sync.WaitGroup
	logger     *utils.LogsManager
}

// NewWorkerPool creates a pool with numWorkers workers. numWorkers < 1 is a
// programming error.
func NewWorkerPool(ctx context.Context, numWorkers int, logger *utils.LogsManager) *WorkerPool {
	if numWorkers < 1 {
		panic(fmt.Sprintf("workers: pool size must be at least 1, got %d", numWorkers))
	}

	poolCtx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		ctx:        poolCtx,
		cancel:     cancel,
		numWorkers: numWorkers,
		taskChan:   make(chan func(), numWorkers),
		logger:     logger,
	}
}

// Start launches all workers in the pool
func (wp *WorkerPool) Start() {
	wp.logger.Debug(fmt.Sprintf("Starting worker pool with %d workers", wp.numWorkers), "workers")

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)

		go func(id int) {
			defer wp.wg.Done()

			for {
				select {
				case task := <-wp.taskChan:
					wp.runTask(id, task)

				case <-wp.ctx.Done():
					wp.logger.Debug(fmt.Sprintf("Worker %d stopping (context done)", id), "workers")
					return
				}
			}
		}(i)
	}
}

// runTask executes one task with panic isolation so a panicking task does
// not take its worker down with it - the slot must come back to the pool.
func (wp *WorkerPool) runTask(workerID int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error(fmt.Sprintf("Worker %d task panic recovered: %v", workerID, r), "workers")
		}
	}()

	task()
}

// Submit queues a task for execution. Blocks when all workers are busy and
// the small submit buffer is full; returns an error only when the pool is
// shutting down.
func (wp *WorkerPool) Submit(task func()) error {
	// Checked separately first: the buffered send below could otherwise win
	// the select against an already-cancelled context.
	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
	}

	select {
	case wp.taskChan <- task:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Stop cancels the workers and waits for them to drain.
func (wp *WorkerPool) Stop() {
	wp.cancel()
	wp.wg.Wait()
	wp.logger.Debug("Worker pool stopped", "workers")
}

// Size returns the number of workers in the pool
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}
