package pipeline

import (
	"sync"

	"crashwatch/internal/logger"
)

// Dispatcher fans messages out to a bounded worker pool. A camera id is
// pinned to one worker, so messages for a given camera are processed in
// arrival order while distinct cameras run in parallel. The window
// reconstructor depends on that ordering: a later offset must never reach
// detection before all earlier segments for the camera are durably written.
type Dispatcher struct {
	orch   *Orchestrator
	queues []chan *Message
	log    *logger.Logger
	wg     sync.WaitGroup

	// mu orders Enqueue sends against Stop closing the queues: a camera
	// reader can still be alive after the HTTP server shut down, and a send
	// on a closed channel panics even inside a select.
	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher starts workers goroutines, each draining its own queue of
// depth capacity.
func NewDispatcher(orch *Orchestrator, workers, depth int, log *logger.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		orch:   orch,
		queues: make([]chan *Message, workers),
		log:    log,
	}
	for i := range d.queues {
		d.queues[i] = make(chan *Message, depth)
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for msg := range d.queues[id] {
		d.orch.Process(msg)
		msg.Close()
	}
}

// Enqueue hands a message to the camera's worker. A full queue drops the
// message rather than blocking the ingest connection, and a stopped
// dispatcher refuses the message outright.
func (d *Dispatcher) Enqueue(msg *Message) bool {
	idx := msg.CameraID
	if idx < 0 {
		idx = -idx
	}
	queue := d.queues[idx%len(d.queues)]

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.orch.deps.Metrics.IncDropped()
		d.log.Warning("pipeline stopped, rejecting %s for camera %d offset %d",
			msg.Stage, msg.CameraID, msg.StartOffset)
		msg.Close()
		return false
	}

	select {
	case queue <- msg:
		return true
	default:
		d.orch.deps.Metrics.IncDropped()
		d.log.Warning("pipeline queue full, dropping %s for camera %d offset %d",
			msg.Stage, msg.CameraID, msg.StartOffset)
		msg.Close()
		return false
	}
}

// Stop drains the queues and waits for in-flight traversals to finish.
// Enqueue calls racing or following Stop are rejected, never panicked on.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, queue := range d.queues {
			close(queue)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}
