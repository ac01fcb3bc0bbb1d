package tasks

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ScanTask asks for one benefit scan of a user's transactions.
type ScanTask struct {
	ID        string
	UserID    uint
	AccountID *uint
	CreatedAt time.Time
}

// ScanFunc runs one task. Errors are logged by the worker, never propagated
// back to whoever enqueued the task.
type ScanFunc func(ctx context.Context, task *ScanTask) error

// Queue is an in-memory, channel-based task queue with a single worker
// goroutine. Enqueue never blocks the caller: when the buffer is full the
// task is dropped with a log line, which is acceptable because a later sync
// or a manual scan re-covers the same transactions.
type Queue struct {
	ch        chan *ScanTask
	closeChan chan struct{}
	wg        sync.WaitGroup
	run       ScanFunc

	mu     sync.Mutex
	closed bool
}

func NewQueue(bufferSize int, run ScanFunc) *Queue {
	return &Queue{
		ch:        make(chan *ScanTask, bufferSize),
		closeChan: make(chan struct{}),
		run:       run,
	}
}

// Start launches the worker. The worker owns its error boundary: a failing
// or panicking task is logged and the loop keeps going.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case task := <-q.ch:
				q.safeRun(ctx, task)
			case <-q.closeChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// EnqueueScan implements the dispatcher the sync orchestrator fires after a
// commit. Non-blocking by contract.
func (q *Queue) EnqueueScan(userID uint, accountID *uint) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		log.Printf("task queue closed, dropping scan for user=%d", userID)
		return
	}

	task := &ScanTask{
		ID:        uuid.New().String(),
		UserID:    userID,
		AccountID: accountID,
		CreatedAt: time.Now(),
	}
	select {
	case q.ch <- task:
	default:
		log.Printf("task queue full, dropping scan task=%s user=%d", task.ID, userID)
	}
}

// Close stops the worker after it finishes the task in flight.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.closeChan)
	q.wg.Wait()
}

func (q *Queue) safeRun(ctx context.Context, task *ScanTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scan task=%s panicked: %v", task.ID, r)
		}
	}()
	if err := q.run(ctx, task); err != nil {
		log.Printf("scan task=%s user=%d failed: %v", task.ID, task.UserID, err)
	}
}
