package harness

import (
	"errors"
	"sync"
	"time"

	"github.com/gridnav/planner-test-harness/framework"
)

// Somewhat arbitrary queue depth. Submitters block if the loop falls this far
// behind, which keeps memory bounded without dropping work.
const spinQueueSize = 64

// ErrLoopStopped is returned when work is submitted to a SpinLoop that has
// already been stopped.
var ErrLoopStopped = errors.New("spin loop has been stopped")

// SpinLoop is the harness's background execution loop. All message traffic
// for the harness's own network identity is serviced here: incoming callback
// and service requests, outgoing publications, and periodic broadcasts.
// Blocking waits elsewhere in the harness make progress only because this
// loop is running concurrently.
//
// A harness owns exactly one SpinLoop for its entire lifetime: started once
// at construction, stopped and joined exactly once at teardown, never
// restarted. Stop is safe on every exit path, including early-return errors.
type SpinLoop struct {
	queue    chan func()
	stop     chan struct{}
	done     chan struct{}
	logger   framework.Logger
	started  bool
	startoff sync.Once
	stopoff  sync.Once
	lock     sync.Mutex
}

// NewSpinLoop creates a loop that is not yet running.
func NewSpinLoop(logger framework.Logger) *SpinLoop {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &SpinLoop{
		queue:  make(chan func(), spinQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start launches the loop's goroutine. Calling Start more than once has no
// effect.
func (s *SpinLoop) Start() {
	s.startoff.Do(func() {
		s.lock.Lock()
		s.started = true
		s.lock.Unlock()
		go s.run()
	})
}

func (s *SpinLoop) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			// Drain whatever was already queued so that submitters blocked on
			// replies are not stranded.
			for {
				select {
				case task := <-s.queue:
					task()
				default:
					return
				}
			}
		case task := <-s.queue:
			task()
		}
	}
}

// Submit enqueues work to run on the loop and returns without waiting for it.
// Submitting to a loop that has been stopped always fails with ErrLoopStopped.
func (s *SpinLoop) Submit(task func()) error {
	// Check the stop signal on its own first: in a two-way select with a
	// closed stop channel and free queue space, both cases are ready and the
	// runtime picks one at random.
	select {
	case <-s.stop:
		return ErrLoopStopped
	default:
	}
	select {
	case <-s.stop:
		return ErrLoopStopped
	case s.queue <- task:
		return nil
	}
}

// Do enqueues work on the loop and blocks until it has run. This is how
// request/reply traffic (the costmap service, result callbacks) is funneled
// through the loop.
func (s *SpinLoop) Do(task func()) error {
	completed := make(chan struct{})
	err := s.Submit(func() {
		defer close(completed)
		task()
	})
	if err != nil {
		return err
	}
	select {
	case <-completed:
		return nil
	case <-s.done:
		return ErrLoopStopped
	}
}

// AddTicker runs task on the loop every interval until the loop stops.
func (s *SpinLoop) AddTicker(interval time.Duration, task func()) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if err := s.Submit(task); err != nil {
					return
				}
			}
		}
	}()
}

// Stop signals the loop and joins it. It is idempotent and tolerates a loop
// that has already drained all of its work. Stopping a loop that was never
// started is also safe.
func (s *SpinLoop) Stop() {
	s.stopoff.Do(func() {
		close(s.stop)
		s.lock.Lock()
		started := s.started
		s.lock.Unlock()
		if started {
			<-s.done
		}
	})
}
