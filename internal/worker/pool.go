// Package worker provides the bounded concurrency primitives used by
// the evaluation harness: a fixed-size task pool and an outbound rate
// limiter.
package worker

import (
	"context"
	"sync"
)

// Task is a unit of work executed by the pool. A task must capture its
// own failure in the Outcome it returns; the pool never inspects it.
type Task interface {
	Run(ctx context.Context) Outcome
}

// Outcome is the result of one task
type Outcome interface {
	Err() error
}

// Pool executes tasks concurrently with a fixed number of workers.
// Task failures are isolated: one failing task never cancels siblings.
type Pool struct {
	workers   int
	tasks     chan Task
	outcomes  chan Outcome
	collected []Outcome
	drained   chan struct{}
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPool creates a pool with the given worker count
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers:  workers,
		tasks:    make(chan Task, workers*2),
		outcomes: make(chan Outcome, workers*2),
		drained:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers and the outcome collector. Outcomes are
// drained continuously so Submit never blocks on finished work.
func (p *Pool) Start() {
	go func() {
		for outcome := range p.outcomes {
			p.collected = append(p.collected, outcome)
		}
		close(p.drained)
	}()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			outcome := task.Run(p.ctx)
			select {
			case p.outcomes <- outcome:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a task for execution
func (p *Pool) Submit(task Task) {
	select {
	case <-p.ctx.Done():
	case p.tasks <- task:
	}
}

// Wait closes the queue, waits for all tasks to finish, and returns
// every outcome. Outcomes arrive in completion order, not submission
// order.
func (p *Pool) Wait() []Outcome {
	close(p.tasks)
	p.wg.Wait()
	p.closeOutcomes()
	<-p.drained
	return p.collected
}

// Shutdown cancels in-flight tasks and releases the workers
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeOutcomes()
	<-p.drained
}

func (p *Pool) closeOutcomes() {
	p.closeOnce.Do(func() {
		close(p.outcomes)
	})
}