package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DeliverySink durably stores a message that was already fanned out.
type DeliverySink interface {
	Deliver(ctx context.Context, msg Message) error
}

type ForwarderConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Forwarder hands messages to a DeliverySink off the fan-out path. Enqueue
// never blocks; a full queue drops the message. Deliveries are not retried.
type Forwarder struct {
	sink    DeliverySink
	timeout time.Duration
	queue   chan Message

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewForwarder(sink DeliverySink, cfg ForwarderConfig) *Forwarder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	f := &Forwarder{
		sink:    sink,
		timeout: cfg.Timeout,
		queue:   make(chan Message, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		f.wg.Add(1)
		go f.work()
	}
	return f
}

// Enqueue reports whether msg was accepted.
func (f *Forwarder) Enqueue(msg Message) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return false
	}

	select {
	case f.queue <- msg:
		return true
	default:
		zap.L().Warn("relay.sink_queue_full",
			zap.String("room", msg.RoomID),
			zap.String("user", msg.Username),
		)
		return false
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (f *Forwarder) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	f.wg.Wait()
}

func (f *Forwarder) work() {
	defer f.wg.Done()
	for msg := range f.queue {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		err := f.sink.Deliver(ctx, msg)
		cancel()
		if err != nil {
			zap.L().Warn("relay.sink_deliver",
				zap.String("room", msg.RoomID),
				zap.String("user", msg.Username),
				zap.Error(err),
			)
		}
	}
}
