package pool

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrClosed       = errors.New("pool is closed")
	ErrTaskPanicked = errors.New("pool task panicked")
)

type Task func()

// Pool runs posted tasks on a fixed set of workers in FIFO order. Complete
// blocks until every posted task has finished.
type Pool struct {
	size int

	mu       sync.Mutex
	work     *sync.Cond
	idle     *sync.Cond
	queue    []Task
	inflight int
	running  bool
	failure  error

	wg sync.WaitGroup
}

// New starts size workers; size <= 0 starts one.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{size: size, running: true}
	p.work = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) Size() int {
	return p.size
}

// Post enqueues task and wakes one worker.
func (p *Pool) Post(task Task) error {
	if task == nil {
		return fmt.Errorf("task is required")
	}
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrClosed
	}
	p.queue = append(p.queue, task)
	p.inflight++
	p.mu.Unlock()

	p.work.Signal()
	return nil
}

// Complete waits until no task is queued or running. It returns the first
// task panic recorded since the previous Complete, wrapped in ErrTaskPanicked.
func (p *Pool) Complete() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.inflight > 0 {
		p.idle.Wait()
	}
	err := p.failure
	p.failure = nil
	return err
}

// InFlight reports queued plus running tasks.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight
}

// Close stops the workers and waits for them. Queued tasks that have not
// started are dropped.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.inflight -= len(p.queue)
	p.queue = nil
	if p.inflight == 0 {
		p.idle.Broadcast()
	}
	p.mu.Unlock()

	p.work.Broadcast()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && p.running {
			p.work.Wait()
		}
		if !p.running {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		err := runTask(task)

		p.mu.Lock()
		if err != nil && p.failure == nil {
			p.failure = err
		}
		p.inflight--
		if p.inflight == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

func runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	task()
	return nil
}
