// internal/engine/task_engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/internal/config"
)

var (
	// ErrEngineStopped is returned by Submit outside Start/Stop, and set on queued tasks dropped by Stop.
	ErrEngineStopped = errors.New("task engine is not running")
	// ErrQueueFull is returned by Submit when the queue has no room.
	ErrQueueFull = errors.New("task queue is full")
)

// Task is one unit of detached work.
type Task struct {
	ID string
	// Run performs the work under a context bounded by the engine's task timeout.
	Run func(ctx context.Context) error
	// OnFailure records a failed or panicked Run on the task's own record. It gets a fresh
	// context so the record is written even during shutdown.
	OnFailure func(ctx context.Context, err error)
}

// Handle lets the submitter await or poll a task.
type Handle struct {
	id   string
	done chan struct{}
	err  error
}

// ID returns the task id.
func (h *Handle) ID() string { return h.id }

// Done is closed when the task has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) finish(err error) {
	h.err = err
	close(h.done)
}

type queued struct {
	task   Task
	handle *Handle
}

// TaskEngine runs submitted tasks on a fixed pool of worker goroutines.
type TaskEngine struct {
	cfg    config.Interface
	logger *zap.Logger
	queue  chan queued
	wg     sync.WaitGroup

	// stateLock protects the running state and guards sends on queue.
	stateLock sync.Mutex
	isRunning bool
}

// New creates a new TaskEngine.
func New(cfg config.Interface, logger *zap.Logger) (*TaskEngine, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	size := cfg.Engine().QueueSize
	if size <= 0 {
		size = 100
	}
	return &TaskEngine{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "task_engine")),
		queue:  make(chan queued, size),
	}, nil
}

// Start launches the worker pool.
func (e *TaskEngine) Start(ctx context.Context) {
	e.stateLock.Lock()
	defer e.stateLock.Unlock()
	if e.isRunning {
		e.logger.Warn("TaskEngine.Start called, but engine is already running.")
		return
	}
	e.isRunning = true

	concurrency := e.cfg.Engine().WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	e.logger.Info("Starting task engine worker pool", zap.Int("concurrency", concurrency))
	for i := 0; i < concurrency; i++ {
		e.wg.Add(1)
		go e.runWorker(ctx, i+1)
	}
}

// Submit queues task and returns its handle without waiting for it to run.
func (e *TaskEngine) Submit(task Task) (*Handle, error) {
	if task.Run == nil {
		return nil, errors.New("task has no Run function")
	}
	e.stateLock.Lock()
	defer e.stateLock.Unlock()
	if !e.isRunning {
		return nil, ErrEngineStopped
	}
	h := &Handle{id: task.ID, done: make(chan struct{})}
	select {
	case e.queue <- queued{task: task, handle: h}:
		return h, nil
	default:
		return nil, ErrQueueFull
	}
}

// Stop stops accepting tasks and waits for the workers to exit. Workers finish queued
// tasks unless their context was cancelled; tasks still queued after that fail with
// ErrEngineStopped.
func (e *TaskEngine) Stop() {
	e.stateLock.Lock()
	if !e.isRunning {
		e.stateLock.Unlock()
		return
	}
	e.isRunning = false
	close(e.queue)
	e.stateLock.Unlock()

	e.logger.Info("Stopping task engine... waiting for workers to finish.")
	e.wg.Wait()

	for q := range e.queue {
		e.logger.Warn("Dropping queued task at shutdown.", zap.String("task_id", q.task.ID))
		e.recordFailure(q.task, ErrEngineStopped)
		q.handle.finish(ErrEngineStopped)
	}
	e.logger.Info("Task engine stopped gracefully.")
}

// runWorker is the main loop for a single worker goroutine.
func (e *TaskEngine) runWorker(ctx context.Context, workerID int) {
	defer e.wg.Done()
	logger := e.logger.With(zap.Int("worker_id", workerID))
	logger.Debug("Worker goroutine started")

	for {
		// A cancelled context wins over queued work.
		if ctx.Err() != nil {
			logger.Info("Context cancelled, worker shutting down immediately.", zap.Error(ctx.Err()))
			return
		}
		select {
		case <-ctx.Done():
			logger.Info("Context cancelled, worker shutting down immediately.", zap.Error(ctx.Err()))
			return
		case q, ok := <-e.queue:
			if !ok {
				logger.Debug("Task queue closed and drained, worker shutting down gracefully.")
				return
			}
			q.handle.finish(e.process(ctx, q.task, logger))
		}
	}
}

// process runs one task. Errors and panics are handed to OnFailure, never dropped.
func (e *TaskEngine) process(ctx context.Context, task Task, logger *zap.Logger) (err error) {
	logger = logger.With(zap.String("task_id", task.ID))
	logger.Info("Processing task")

	taskTimeout := e.cfg.Engine().DefaultTaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = 2 * time.Hour
	}
	taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("Task timed out.", zap.Duration("timeout", taskTimeout), zap.Error(err))
			} else {
				logger.Error("Task failed.", zap.Error(err))
			}
			e.recordFailure(task, err)
			return
		}
		logger.Info("Task completed.")
	}()

	return task.Run(taskCtx)
}

func (e *TaskEngine) recordFailure(task Task, err error) {
	if task.OnFailure == nil {
		return
	}
	// Background context so the failure is recorded even if the parent context is gone.
	persistCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	task.OnFailure(persistCtx, err)
}
