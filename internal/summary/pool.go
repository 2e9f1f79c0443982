package summary

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Pool is a bounded worker pool for detached summary tasks. Submissions
// never block: a full queue rejects the task and the caller's request
// proceeds untouched.
type Pool struct {
	tasks  chan func(context.Context)
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	log    *zap.Logger
}

// NewPool starts workers goroutines draining a queue of queueSize tasks.
func NewPool(workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	p := &Pool{
		tasks: make(chan func(context.Context), queueSize),
		log:   logger,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("summary task panicked", zap.Any("panic", r))
		}
	}()
	// Background work carries no deadline; a stuck collaborator call
	// delays this one task without affecting the store.
	task(context.Background())
}

// Submit enqueues a task, reporting false when the queue is full or the
// pool is closed.
func (p *Pool) Submit(task func(context.Context)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for in-flight work to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
