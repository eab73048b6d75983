// Package queue feeds batch extractions to a fixed number of workers.
package queue

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var ErrQueueClosed = errors.New("queue is closed")

// Task is one URL waiting to be extracted. Index is its position in the batch.
type Task struct {
	Index int
	URL   string
}

// Queue is a bounded FIFO of tasks. Push blocks while the queue is full.
type Queue struct {
	tasks  chan Task
	mu     sync.RWMutex
	closed bool
}

func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{tasks: make(chan Task, capacity)}
}

// FromURLs returns a closed queue holding one task per URL.
func FromURLs(urls []string) *Queue {
	q := New(len(urls))
	for i, u := range urls {
		q.tasks <- Task{Index: i, URL: u}
	}
	q.Close()
	return q
}

func (q *Queue) Push(ctx context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop returns the next task. It returns ErrQueueClosed once the queue is
// closed and drained.
func (q *Queue) Pop(ctx context.Context) (Task, error) {
	select {
	case task, ok := <-q.tasks:
		if !ok {
			return Task{}, ErrQueueClosed
		}
		return task, nil
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

// Close stops further pushes; queued tasks can still be popped. It waits for
// in-flight pushes to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
}

// Feed pushes one task per URL line read from r, then closes q. Blank lines
// and lines starting with # are skipped. It returns the number of tasks
// pushed; pushes block while the workers are behind.
func Feed(ctx context.Context, q *Queue, r io.Reader) (int, error) {
	defer q.Close()

	n := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := q.Push(ctx, Task{Index: n, URL: line}); err != nil {
			return n, err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("read urls: %w", err)
	}
	return n, nil
}

// Drain runs workers goroutines that handle tasks until the queue is closed
// and empty or ctx is done, and waits for them to return.
func Drain(ctx context.Context, q *Queue, workers int, handle func(context.Context, Task)) {
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := q.Pop(ctx)
				if err != nil {
					return
				}
				handle(ctx, task)
			}
		}()
	}
	wg.Wait()
}
