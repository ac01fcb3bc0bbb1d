package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueRunsEnqueuedTask(t *testing.T) {
	done := make(chan *ScanTask, 1)
	q := NewQueue(4, func(ctx context.Context, task *ScanTask) error {
		done <- task
		return nil
	})
	q.Start(context.Background())
	defer q.Close()

	acct := uint(9)
	q.EnqueueScan(42, &acct)

	select {
	case task := <-done:
		if task.UserID != 42 || task.AccountID == nil || *task.AccountID != 9 {
			t.Errorf("task = %+v, want user 42 account 9", task)
		}
		if task.ID == "" {
			t.Error("task should carry an id")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestQueueSurvivesFailingAndPanickingTasks(t *testing.T) {
	var mu sync.Mutex
	var users []uint
	q := NewQueue(4, func(ctx context.Context, task *ScanTask) error {
		mu.Lock()
		users = append(users, task.UserID)
		mu.Unlock()
		switch task.UserID {
		case 1:
			return errors.New("scan failed")
		case 2:
			panic("scan panicked")
		}
		return nil
	})
	q.Start(context.Background())

	q.EnqueueScan(1, nil)
	q.EnqueueScan(2, nil)
	q.EnqueueScan(3, nil)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(users)
		mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker died early, ran %d of 3 tasks", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
	q.Close()
}

func TestQueueDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue(1, func(ctx context.Context, task *ScanTask) error {
		<-block
		return nil
	})
	q.Start(context.Background())

	// First task occupies the worker, second fills the buffer, the rest
	// must drop without blocking the caller.
	finished := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			q.EnqueueScan(uint(i), nil)
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("EnqueueScan blocked on a full queue")
	}
	close(block)
	q.Close()
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := NewQueue(1, func(ctx context.Context, task *ScanTask) error { return nil })
	q.Start(context.Background())
	q.Close()

	// Must not panic or block.
	q.EnqueueScan(1, nil)
}
