package assets

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/prism/engine/core"
)

// JobTask is a unit of work run on a worker. OnComplete and OnFailure run
// later on whichever goroutine calls Update, which is the main loop.
type JobTask struct {
	Name       string
	Run        func() (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type jobResult struct {
	task   JobTask
	result interface{}
	err    error
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mu       sync.Mutex
	finished []jobResult

	// Held for reading while sending on jobQueue so Shutdown never closes
	// it under a sender.
	queueMu sync.RWMutex
	closed  bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = fmt.Errorf("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				result, err := job.Run()
				if err != nil {
					core.LogError("job %s failed: %s", job.Name, err)
				}
				js.mu.Lock()
				js.finished = append(js.finished, jobResult{task: job, result: result, err: err})
				js.mu.Unlock()
			}
		}()
	}
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	js.queueMu.RLock()
	defer js.queueMu.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}

/**
 * @brief Runs the callbacks of every job finished since the last call and
 * returns how many there were. Should happen once an update cycle.
 */
func (js *JobSystem) Update() int {
	js.mu.Lock()
	finished := js.finished
	js.finished = nil
	js.mu.Unlock()

	for _, f := range finished {
		if f.err != nil {
			if f.task.OnFailure != nil {
				f.task.OnFailure(f.err)
			}
			continue
		}
		if f.task.OnComplete != nil {
			f.task.OnComplete(f.result)
		}
	}
	return len(finished)
}

/**
 * @brief Shuts the job system down. Queued jobs still run; their callbacks
 * are dropped unless Update is called afterwards.
 */
func (js *JobSystem) Shutdown() error {
	js.queueMu.Lock()
	if js.closed {
		js.queueMu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.queueMu.Unlock()

	js.wg.Wait()
	return nil
}
