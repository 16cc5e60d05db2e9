package service

import (
	"sync"
	"time"
)

// PendingSpew is the deferred key for the next autonomous response
const PendingSpew = "pending spew"

// DeferredTasks runs callbacks after a delay, keyed by name.
// Scheduling a key again replaces the earlier callback.
type DeferredTasks struct {
	mu      sync.Mutex
	tasks   map[string]*deferredTask
	gen     uint64
	stopped bool
	wg      sync.WaitGroup
}

type deferredTask struct {
	timer *time.Timer
	gen   uint64
}

// NewDeferredTasks creates an empty registry
func NewDeferredTasks() *DeferredTasks {
	return &DeferredTasks{tasks: make(map[string]*deferredTask)}
}

// Schedule runs fn after delay unless key is scheduled again or cancelled first
func (d *DeferredTasks) Schedule(key string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if old, ok := d.tasks[key]; ok {
		if old.timer.Stop() {
			d.wg.Done()
		}
	}

	d.gen++
	gen := d.gen
	d.wg.Add(1)
	task := &deferredTask{gen: gen}
	task.timer = time.AfterFunc(delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		cur, ok := d.tasks[key]
		if !ok || cur.gen != gen {
			d.mu.Unlock()
			return
		}
		delete(d.tasks, key)
		d.mu.Unlock()
		fn()
	})
	d.tasks[key] = task
}

// Cancel drops a pending callback. It reports whether one was pending.
func (d *DeferredTasks) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	task, ok := d.tasks[key]
	if !ok {
		return false
	}
	delete(d.tasks, key)
	if task.timer.Stop() {
		d.wg.Done()
	}
	return true
}

// Pending reports whether key has a callback waiting
func (d *DeferredTasks) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.tasks[key]
	return ok
}

// Stop cancels every pending callback and waits for running ones
func (d *DeferredTasks) Stop() {
	d.mu.Lock()
	d.stopped = true
	for key, task := range d.tasks {
		if task.timer.Stop() {
			d.wg.Done()
		}
		delete(d.tasks, key)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
