// Package publisher fans audit events out to a Store, synchronously or through
// a bounded background buffer.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "stride/pkg/platform/audit"
)

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer int
	queue  chan audit.Event
	wg     sync.WaitGroup

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit enqueue events for a background writer. When
// the buffer is full Emit writes synchronously instead of dropping.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = size
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer > 0 {
		p.queue = make(chan audit.Event, p.buffer)
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit records event, stamping the current time when none is set.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.queue != nil && !p.closed {
		select {
		case p.queue <- event:
			return nil
		default:
		}
	}
	return p.store.Append(ctx, event)
}

// Close stops the background writer after draining queued events.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		if p.queue != nil {
			close(p.queue)
		}
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.queue {
		// Detached from the emitting request, which has usually finished.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.Error("failed to write audit event",
				"action", event.Action,
				"error", err,
			)
		}
		cancel()
	}
}
