package collector

import (
	"context"
	"sync"
)

// Dispatcher is a Source that routes each update to the callbacks
// registered for its name. Updates for names nobody registered are
// dropped.
type Dispatcher struct {
	mu        sync.RWMutex
	callbacks map[string][]Callback
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{callbacks: make(map[string][]Callback)}
}

func (d *Dispatcher) On(signal string, fn Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks[signal] = append(d.callbacks[signal], fn)
}

// Dispatch invokes the callbacks for m.Name and reports whether there were
// any.
func (d *Dispatcher) Dispatch(ctx context.Context, page PageContext, m Metric) bool {
	d.mu.RLock()
	fns := d.callbacks[m.Name]
	d.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx, page, m)
	}
	return len(fns) > 0
}
