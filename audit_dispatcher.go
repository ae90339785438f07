package utsavAuth

import (
	"context"
	"sync"
)

// auditDispatcher hands events to the sink on one background goroutine.
//
// Every event that does not reach the sink is counted against its event type: a full
// buffer under DropIfFull, a caller context that ends while waiting for room, an Emit
// after shutdown, a sink that panics, or events still queued when the shutdown
// deadline passes.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan AuditEvent
	dropIfFull bool

	// gate orders Emit against shutdown: senders hold it shared, shutdown takes it
	// exclusively to flip closing, after which no send is in flight.
	gate    sync.RWMutex
	closing bool

	quit     chan struct{}
	stopped  chan struct{}
	shutOnce sync.Once
	shutErr  error

	mu    sync.Mutex
	drops map[string]uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan AuditEvent, size),
		dropIfFull: cfg.DropIfFull,
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
		drops:      make(map[string]uint64),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.stopped)
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.quit:
			return
		}
	}
}

func (d *auditDispatcher) deliver(event AuditEvent) {
	defer func() {
		if recover() != nil {
			d.drop(event.EventType)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. Under DropIfFull a full buffer drops it at once; otherwise Emit
// waits for room until ctx ends.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.gate.RLock()
	defer d.gate.RUnlock()
	if d.closing {
		d.drop(event.EventType)
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.drop(event.EventType)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event.EventType)
	case <-d.quit:
		d.drop(event.EventType)
	}
}

// Shutdown stops intake, then delivers what is queued until ctx ends. Events left
// undelivered are counted as dropped and ctx's error is returned. A sink stuck past the
// deadline is abandoned. Later calls return the first result.
func (d *auditDispatcher) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.shutOnce.Do(func() {
		close(d.quit)
		d.gate.Lock()
		d.closing = true
		d.gate.Unlock()

		select {
		case <-d.stopped:
		case <-ctx.Done():
			d.dropQueued()
			d.shutErr = ctx.Err()
			return
		}

		for {
			select {
			case event := <-d.queue:
				if ctx.Err() != nil {
					d.drop(event.EventType)
					continue
				}
				d.deliver(event)
			default:
				d.shutErr = ctx.Err()
				return
			}
		}
	})
	return d.shutErr
}

func (d *auditDispatcher) dropQueued() {
	for {
		select {
		case event := <-d.queue:
			d.drop(event.EventType)
		default:
			return
		}
	}
}

func (d *auditDispatcher) drop(eventType string) {
	d.mu.Lock()
	d.drops[eventType]++
	d.mu.Unlock()
}

// Dropped returns the total number of events that never reached the sink.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var total uint64
	for _, n := range d.drops {
		total += n
	}
	return total
}

// DroppedByType returns a copy of the per-event-type drop counts.
func (d *auditDispatcher) DroppedByType() map[string]uint64 {
	out := map[string]uint64{}
	if d == nil {
		return out
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range d.drops {
		out[k] = v
	}
	return out
}
