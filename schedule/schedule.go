// Package schedule implements the two-level execution discipline (spec.md
// §4.5): a bounded global evaluation queue feeds CanFill/Profitability/the
// dispatch decision, and a set of lazily-created per-destination-chain
// queues each serialize Execute calls at concurrency 1 for nonce safety
// (P3: strictly increasing filler nonces per chain).
//
// Grounded on the teacher's execution/executor.go single-threaded Executor
// (one mutex-guarded map of in-flight orders, one goroutine processing
// fills), generalized from "one global executor" to "one bounded global
// evaluation pool plus N independent single-worker lanes, one per
// destination chain."
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// EvalTask is a fire-and-forget unit of work run on the global evaluation
// queue. A panic is recovered and logged and does not poison the queue
// (spec.md §4.5: "exceptions are logged and do not poison the queue").
type EvalTask func(ctx context.Context)

// ExecTask is a unit of work run on one destination chain's serial lane.
type ExecTask func(ctx context.Context)

// Scheduler owns the global evaluation semaphore and the map of
// per-destination-chain lanes.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc

	evalSem *semaphore.Weighted
	evalWG  sync.WaitGroup

	lanesMu sync.Mutex
	lanes   map[string]*lane

	laneBufferSize int
	drainDeadline  time.Duration
}

// lane is a single concurrency-1 FIFO for one destination chain.
type lane struct {
	tasks chan func(ctx context.Context)
	done  chan struct{}
}

// Config parameterizes the scheduler.
type Config struct {
	MaxConcurrentOrders int64         // global evaluation queue bound
	LaneBufferSize      int           // per-chain queue depth
	DrainDeadline       time.Duration // shutdown: bounded wait for in-flight work
}

// New builds a scheduler bound to parent's lifetime; cancelling parent (or
// calling Shutdown) stops the scheduler from accepting further work.
func New(parent context.Context, cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		ctx:            ctx,
		cancel:         cancel,
		evalSem:        semaphore.NewWeighted(cfg.MaxConcurrentOrders),
		lanes:          make(map[string]*lane),
		laneBufferSize: cfg.LaneBufferSize,
		drainDeadline:  cfg.DrainDeadline,
	}
}

// SubmitEval enqueues an evaluation task onto the bounded global queue. It
// blocks only long enough to acquire a slot (or until the scheduler's
// context is cancelled); the task itself runs on its own goroutine.
func (s *Scheduler) SubmitEval(task EvalTask) {
	if err := s.evalSem.Acquire(s.ctx, 1); err != nil {
		return // scheduler shutting down
	}
	s.evalWG.Add(1)
	go func() {
		defer s.evalWG.Done()
		defer s.evalSem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("eval task panicked, dropping")
			}
		}()
		task(s.ctx)
	}()
}

// SubmitExec enqueues a task on destChain's serial lane, creating the lane
// on first use. Tasks on the same lane run strictly in submission order,
// one at a time (P3).
func (s *Scheduler) SubmitExec(destChain string, task ExecTask) {
	l := s.laneFor(destChain)
	select {
	case l.tasks <- task:
	case <-s.ctx.Done():
	}
}

func (s *Scheduler) laneFor(destChain string) *lane {
	s.lanesMu.Lock()
	defer s.lanesMu.Unlock()

	if l, ok := s.lanes[destChain]; ok {
		return l
	}

	l := &lane{
		tasks: make(chan func(ctx context.Context), laneBufferSizeOrDefault(s)),
		done:  make(chan struct{}),
	}
	s.lanes[destChain] = l
	go s.runLane(destChain, l)
	return l
}

func laneBufferSizeOrDefault(s *Scheduler) int {
	if s.laneBufferSize > 0 {
		return s.laneBufferSize
	}
	return 64
}

func (s *Scheduler) runLane(destChain string, l *lane) {
	defer close(l.done)
	for {
		select {
		case task, ok := <-l.tasks:
			if !ok {
				return
			}
			s.runExecTask(destChain, task)
		case <-s.ctx.Done():
			// Drain whatever is already buffered before exiting, up to the
			// scheduler's shutdown deadline — in-flight work is not aborted
			// mid-task, only unstarted buffered tasks beyond the deadline.
			s.drainLane(destChain, l)
			return
		}
	}
}

func (s *Scheduler) drainLane(destChain string, l *lane) {
	deadline := time.NewTimer(s.drainDeadline)
	defer deadline.Stop()
	for {
		select {
		case task, ok := <-l.tasks:
			if !ok {
				return
			}
			s.runExecTask(destChain, task)
		case <-deadline.C:
			log.Warn().Str("dest_chain", destChain).Msg("drain deadline reached, aborting remaining lane tasks")
			return
		}
	}
}

func (s *Scheduler) runExecTask(destChain string, task func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("dest_chain", destChain).Msg("exec task panicked")
		}
	}()
	task(context.Background())
}

// Shutdown stops the scheduler from accepting new evaluations, waits for
// in-flight evaluation tasks to finish, then closes every lane and waits
// (bounded by the configured drain deadline) for buffered execute tasks to
// complete (spec.md §5).
func (s *Scheduler) Shutdown() {
	s.cancel()
	s.evalWG.Wait()

	s.lanesMu.Lock()
	lanes := make([]*lane, 0, len(s.lanes))
	for _, l := range s.lanes {
		close(l.tasks)
		lanes = append(lanes, l)
	}
	s.lanesMu.Unlock()

	for _, l := range lanes {
		<-l.done
	}
}
