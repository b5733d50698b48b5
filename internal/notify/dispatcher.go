// Package notify runs best-effort side effects after a database commit:
// e-mails to customers, messages to the staff chat and domain events.
// A failed task is logged and never reaches the caller.
package notify

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Task is one side effect.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher runs tasks on a fixed pool of workers fed by a bounded queue.
type Dispatcher struct {
	queue   chan Task
	workers int
	timeout time.Duration

	mu      sync.Mutex
	dropped int
}

// NewDispatcher creates a dispatcher. Call Start to begin processing.
func NewDispatcher(workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		queue:   make(chan Task, queueSize),
		workers: workers,
		timeout: timeout,
	}
}

// Dispatch enqueues t without blocking. A full queue drops the task with a warning.
func (d *Dispatcher) Dispatch(t Task) bool {
	select {
	case d.queue <- t:
		return true
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		log.WithField("task", t.Name).Warn("Notification queue full, task dropped")
		return false
	}
}

// Dropped returns how many tasks were discarded because the queue was full.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Start runs the workers until ctx is cancelled, then finishes what is already queued.
func (d *Dispatcher) Start(ctx context.Context) error {
	log.WithFields(log.Fields{
		"workers": d.workers,
		"queue":   cap(d.queue),
	}).Info("Notification dispatcher started")

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-d.queue:
					d.run(t)
				}
			}
		}()
	}
	wg.Wait()

	d.drain()
	log.Info("Notification dispatcher stopped")
	return nil
}

func (d *Dispatcher) drain() {
	for {
		select {
		case t := <-d.queue:
			d.run(t)
		default:
			return
		}
	}
}

// run executes one task with its own deadline. The request context is gone by now.
func (d *Dispatcher) run(t Task) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"task": t.Name, "panic": r}).Error("Notification task panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	if err := t.Run(ctx); err != nil {
		log.WithError(err).WithField("task", t.Name).Warn("Notification task failed")
		return
	}
	log.WithFields(log.Fields{
		"task":    t.Name,
		"elapsed": time.Since(start).String(),
	}).Debug("Notification task done")
}
