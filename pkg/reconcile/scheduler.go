package reconcile

import (
	"context"
	"sync"

	"github.com/marmos91/regsweep/internal/logger"
	"github.com/marmos91/regsweep/pkg/abort"
)

const (
	// DefaultWorkers bounds how many manifest fetches run at once.
	DefaultWorkers = 5
	// DefaultQueueSize is the fetch queue capacity. Submit blocks when the
	// queue is full, so capacity only smooths bursts.
	DefaultQueueSize = 256
)

// Task is one unit of fetch work. The context trips when the run aborts.
type Task func(ctx context.Context)

// Scheduler runs tasks on a fixed pool of workers in FIFO submission order.
//
// Cancellation contract: once the abort signal trips, queued tasks are
// dropped without starting, in-flight tasks run to completion, and further
// submissions are refused. Join waits for every accepted task to be either
// completed or dropped. Submit must not be called after Join.
type Scheduler struct {
	signal *abort.Signal
	tasks  chan Task
	joined chan struct{}

	workers int
	wg      sync.WaitGroup // workers
	pending sync.WaitGroup // accepted tasks
	once    sync.Once      // closes tasks
	done    sync.Once      // closes joined

	mu        sync.Mutex
	submitted int
	completed int
	dropped   int
}

// NewScheduler starts workers workers reading from a queue of size queueSize.
// Zero or negative values fall back to the defaults.
func NewScheduler(signal *abort.Signal, workers, queueSize int) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	s := &Scheduler{
		signal:  signal,
		tasks:   make(chan Task, queueSize),
		joined:  make(chan struct{}),
		workers: workers,
	}

	logger.Debug("starting fetch scheduler", logger.KeyWorkers, workers)

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	go s.drainOnAbort()

	return s
}

// Submit queues a task. It blocks while the queue is full and returns false
// if the task was dropped because the run aborted first.
func (s *Scheduler) Submit(task Task) bool {
	if s.signal.Aborted() {
		s.noteDropped()
		return false
	}

	s.pending.Add(1)
	select {
	case s.tasks <- task:
		s.mu.Lock()
		s.submitted++
		s.mu.Unlock()
		return true
	case <-s.signal.Done():
		s.pending.Done()
		s.noteDropped()
		return false
	}
}

// Join closes the queue and waits until every accepted task has completed or
// been dropped, then until all workers have exited.
func (s *Scheduler) Join() {
	s.once.Do(func() { close(s.tasks) })
	s.pending.Wait()
	s.done.Do(func() { close(s.joined) })
	s.wg.Wait()

	submitted, completed, dropped := s.Stats()
	logger.Debug("fetch scheduler drained",
		logger.KeySubmitted, submitted,
		logger.KeyCompleted, completed,
		logger.KeyDropped, dropped)
}

// Stats returns how many tasks were submitted, completed and dropped.
func (s *Scheduler) Stats() (submitted, completed, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted, s.completed, s.dropped
}

// worker processes tasks until the queue closes or the run aborts.
//
// The two-phase select gives the abort signal priority over queued work:
// when both are ready the worker must exit rather than race the drainer for
// a task that should be dropped.
func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	logger.Debug("fetch worker started", "worker_id", id)
	ctx := s.signal.Context()

	for {
		select {
		case <-s.signal.Done():
			logger.Debug("fetch worker stopped", "worker_id", id)
			return
		default:
		}

		select {
		case task, ok := <-s.tasks:
			if !ok {
				logger.Debug("fetch worker stopped", "worker_id", id)
				return
			}
			s.runTask(ctx, task)
		case <-s.signal.Done():
			logger.Debug("fetch worker stopped", "worker_id", id)
			return
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	defer s.pending.Done()

	task(ctx)

	s.mu.Lock()
	s.completed++
	s.mu.Unlock()
}

// drainOnAbort discards queued tasks after an abort so Join cannot hang on
// work no worker will ever pick up. It exits quietly when the run joins
// without aborting.
func (s *Scheduler) drainOnAbort() {
	select {
	case <-s.signal.Done():
	case <-s.joined:
		return
	}

	for range s.tasks {
		s.noteDropped()
		s.pending.Done()
	}
}

func (s *Scheduler) noteDropped() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}
