// Package pool runs parse tasks on a bounded set of worker goroutines.
//
// A single coordinator goroutine owns every piece of pool state: the worker list,
// busy flags, pending counts and the FIFO overflow queue. Callers and workers only
// talk to it over channels, so none of that state needs a lock.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/metrics"
)

// Func parses one task. ctx is cancelled when the pool is terminated.
type Func func(ctx context.Context, task core.ParseTask) (*core.TaskResult, error)

// Config configures a Pool.
type Config struct {
	// Name labels metrics and logs.
	Name string
	// MaxWorkers bounds concurrently running tasks. Defaults to runtime.NumCPU().
	MaxWorkers int
	// MaxPendingPerWorker lets a saturated pool hand extra tasks straight to the
	// least-loaded worker instead of queueing them. 1 (default) disables it.
	MaxPendingPerWorker int
	// Dispatch names the idle-worker selection strategy.
	Dispatch string
}

// WorkerHandle is the coordinator's view of one worker.
type WorkerHandle struct {
	ID        int
	Busy      bool
	Pending   int
	Completed int
}

// Stats is a snapshot of pool state.
type Stats struct {
	Workers    []WorkerHandle
	Busy       int
	Queued     int
	Submitted  uint64
	Succeeded  uint64
	Failed     uint64
	Terminated bool
}

type job struct {
	task core.ParseTask
	fut  *Future
}

type completion struct {
	workerID int
	job      *job
	result   *core.TaskResult
	err      error
	panicked bool
}

type worker struct {
	handle WorkerHandle
	inbox  chan *job
}

// Pool is a bounded worker pool. It must be created with New.
type Pool struct {
	cfg      Config
	fn       Func
	strategy DispatchStrategy

	submitCh chan *job
	doneCh   chan completion
	statsCh  chan chan Stats
	termCh   chan struct{}
	stopped  chan struct{}
	termOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	// Coordinator-owned state.
	workers     []*worker
	queue       []*job
	outstanding map[*Future]struct{}
	submitted   uint64
	succeeded   uint64
	failed      uint64
}

// New creates a pool and starts its coordinator. Workers are spawned lazily.
func New(cfg Config, fn Func) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	if cfg.MaxPendingPerWorker <= 0 {
		cfg.MaxPendingPerWorker = 1
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:         cfg,
		fn:          fn,
		strategy:    NewDispatchStrategy(cfg.Dispatch),
		submitCh:    make(chan *job),
		doneCh:      make(chan completion),
		statsCh:     make(chan chan Stats),
		termCh:      make(chan struct{}),
		stopped:     make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		outstanding: make(map[*Future]struct{}),
	}

	slog.Debug("worker pool created",
		"pool", cfg.Name,
		"max_workers", cfg.MaxWorkers,
		"max_pending_per_worker", cfg.MaxPendingPerWorker,
		"dispatch", p.strategy.Name())

	go p.coordinate()
	return p
}

// Submit hands a task to the pool. After Terminate the returned future is already
// rejected with core.ErrPoolTerminated.
func (p *Pool) Submit(task core.ParseTask) *Future {
	j := &job{task: task, fut: newFuture(task.ID)}
	select {
	case p.submitCh <- j:
	case <-p.stopped:
		j.fut.resolve(nil, core.ErrPoolTerminated)
	}
	return j.fut
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case p.statsCh <- reply:
		return <-reply
	case <-p.stopped:
		return Stats{Terminated: true}
	}
}

// Terminate stops the pool. Queued and running tasks are abandoned and their futures
// rejected with core.ErrPoolTerminated; running tasks see their context cancelled.
// Terminate is idempotent.
func (p *Pool) Terminate() {
	p.termOnce.Do(func() {
		close(p.termCh)
	})
	<-p.stopped
}

func (p *Pool) coordinate() {
	defer close(p.stopped)
	for {
		select {
		case j := <-p.submitCh:
			p.submitted++
			p.dispatch(j)
		case c := <-p.doneCh:
			p.complete(c)
		case reply := <-p.statsCh:
			reply <- p.snapshot()
		case <-p.termCh:
			p.shutdown()
			return
		}
		p.publish()
	}
}

func (p *Pool) dispatch(j *job) {
	if w := p.pickIdle(); w != nil {
		p.assign(w, j)
		return
	}
	if len(p.workers) < p.cfg.MaxWorkers {
		p.assign(p.spawn(), j)
		return
	}
	if p.cfg.MaxPendingPerWorker > 1 {
		if w := p.leastPending(); w != nil {
			p.assign(w, j)
			return
		}
	}
	p.queue = append(p.queue, j)
}

func (p *Pool) pickIdle() *worker {
	var idle []WorkerHandle
	var byIdx []*worker
	for _, w := range p.workers {
		if !w.handle.Busy {
			idle = append(idle, w.handle)
			byIdx = append(byIdx, w)
		}
	}
	if len(idle) == 0 {
		return nil
	}
	return byIdx[p.strategy.Pick(idle)]
}

// leastPending returns the worker with the fewest pending tasks that still has room.
func (p *Pool) leastPending() *worker {
	var best *worker
	for _, w := range p.workers {
		if w.handle.Pending >= p.cfg.MaxPendingPerWorker {
			continue
		}
		if best == nil || w.handle.Pending < best.handle.Pending {
			best = w
		}
	}
	return best
}

func (p *Pool) spawn() *worker {
	w := &worker{
		handle: WorkerHandle{ID: len(p.workers) + 1},
		inbox:  make(chan *job, p.cfg.MaxPendingPerWorker),
	}
	p.workers = append(p.workers, w)
	go p.run(w.handle.ID, w.inbox)
	slog.Debug("worker spawned", "pool", p.cfg.Name, "worker", w.handle.ID)
	return w
}

// assign never blocks: a worker's inbox holds MaxPendingPerWorker jobs and a job is
// only assigned while Pending is below that.
func (p *Pool) assign(w *worker, j *job) {
	w.handle.Pending++
	w.handle.Busy = true
	p.outstanding[j.fut] = struct{}{}
	w.inbox <- j
}

func (p *Pool) complete(c completion) {
	delete(p.outstanding, c.job.fut)

	outcome := metrics.OutcomeOK
	switch {
	case c.panicked:
		outcome = metrics.OutcomePanic
		p.failed++
	case c.err != nil:
		outcome = metrics.OutcomeError
		p.failed++
	default:
		p.succeeded++
	}
	metrics.PoolTasksTotal.WithLabelValues(p.cfg.Name, outcome).Inc()
	c.job.fut.resolve(c.result, c.err)

	w := p.workerByID(c.workerID)
	if w == nil {
		return
	}
	w.handle.Pending--
	w.handle.Completed++
	w.handle.Busy = w.handle.Pending > 0

	for len(p.queue) > 0 && w.handle.Pending < p.cfg.MaxPendingPerWorker {
		next := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.assign(w, next)
	}
}

func (p *Pool) workerByID(id int) *worker {
	if id < 1 || id > len(p.workers) {
		return nil
	}
	return p.workers[id-1]
}

func (p *Pool) shutdown() {
	p.cancel()
	for _, w := range p.workers {
		close(w.inbox)
	}

	rejected := len(p.queue) + len(p.outstanding)
	for _, j := range p.queue {
		j.fut.resolve(nil, core.ErrPoolTerminated)
	}
	for fut := range p.outstanding {
		fut.resolve(nil, core.ErrPoolTerminated)
	}
	p.queue = nil
	p.outstanding = map[*Future]struct{}{}

	if rejected > 0 {
		metrics.PoolTasksTotal.WithLabelValues(p.cfg.Name, metrics.OutcomeTerminated).Add(float64(rejected))
	}
	metrics.PoolWorkers.WithLabelValues(p.cfg.Name).Set(0)
	metrics.PoolBusyWorkers.WithLabelValues(p.cfg.Name).Set(0)
	metrics.PoolQueueDepth.WithLabelValues(p.cfg.Name).Set(0)

	slog.Debug("worker pool terminated", "pool", p.cfg.Name, "workers", len(p.workers), "rejected", rejected)
}

func (p *Pool) snapshot() Stats {
	s := Stats{
		Workers:   make([]WorkerHandle, len(p.workers)),
		Queued:    len(p.queue),
		Submitted: p.submitted,
		Succeeded: p.succeeded,
		Failed:    p.failed,
	}
	for i, w := range p.workers {
		s.Workers[i] = w.handle
		if w.handle.Busy {
			s.Busy++
		}
	}
	return s
}

func (p *Pool) publish() {
	busy := 0
	for _, w := range p.workers {
		if w.handle.Busy {
			busy++
		}
	}
	metrics.PoolWorkers.WithLabelValues(p.cfg.Name).Set(float64(len(p.workers)))
	metrics.PoolBusyWorkers.WithLabelValues(p.cfg.Name).Set(float64(busy))
	metrics.PoolQueueDepth.WithLabelValues(p.cfg.Name).Set(float64(len(p.queue)))
}

// run is the worker loop. It exits when its inbox is closed by shutdown.
func (p *Pool) run(id int, inbox <-chan *job) {
	for j := range inbox {
		if p.ctx.Err() != nil {
			return
		}
		c := p.execute(id, j)
		select {
		case p.doneCh <- c:
		case <-p.stopped:
			return
		}
	}
}

func (p *Pool) execute(id int, j *job) (c completion) {
	c = completion{workerID: id, job: j}
	start := time.Now()
	defer func() {
		metrics.TaskDurationSeconds.WithLabelValues(p.cfg.Name).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			slog.Error("task panicked", "pool", p.cfg.Name, "worker", id, "task", j.task.ID, "panic", r)
			c.result = nil
			c.err = fmt.Errorf("%w: task %s: %v", core.ErrTaskPanic, j.task.ID, r)
			c.panicked = true
		}
	}()
	c.result, c.err = p.fn(p.ctx, j.task)
	return c
}
