package asset

import "sync"

// Dispatcher queues functions posted from any goroutine and runs them on the
// goroutine that calls Dispatch. It is the only point where background
// loading touches render-thread state.
type Dispatcher struct {
	mu      sync.Mutex
	pending []func()
	running []func()
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Post queues fn. Safe for concurrent use.
func (d *Dispatcher) Post(fn func()) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.pending = append(d.pending, fn)
	d.mu.Unlock()
}

// Dispatch runs every function posted so far, in post order, and returns how
// many ran. Functions posted while dispatching run on the next call.
// Call it between frames from the render thread.
func (d *Dispatcher) Dispatch() int {
	d.mu.Lock()
	d.running, d.pending = d.pending, d.running[:0]
	batch := d.running
	d.mu.Unlock()

	for i, fn := range batch {
		fn()
		batch[i] = nil
	}
	return len(batch)
}

// Pending returns the number of queued functions.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
