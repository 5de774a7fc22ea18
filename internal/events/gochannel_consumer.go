package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/destel/rill"
)

type ConsumerOptions struct {
	BufferSize   int
	BatchSize    int
	BatchTimeout time.Duration
	WorkerCount  int
	Logger       *slog.Logger
}

// typecheck
var _ EventConsumer = new(GoChannelConsumer)

// GoChannelConsumer buffers audit events in memory and stores them in batches from a
// fixed set of workers. Events still buffered at Stop are flushed; events buffered when
// the process dies are lost. Use WALConsumer when that matters.
type GoChannelConsumer struct {
	eventRepository EventRepository
	workCh          chan Event
	opts            ConsumerOptions
	workerWg        sync.WaitGroup
	// guards stopped and the close of workCh against concurrent Consume calls
	mu      sync.RWMutex
	stopped bool
}

func (o *ConsumerOptions) defaults() {
	if o.BufferSize == 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout == 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.WorkerCount == 0 {
		o.WorkerCount = 4
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func NewConsumer(eventRepository EventRepository, opts ConsumerOptions) *GoChannelConsumer {
	opts.defaults()

	return &GoChannelConsumer{
		eventRepository: eventRepository,
		workCh:          make(chan Event, opts.BufferSize),
		opts:            opts,
	}
}

func (c *GoChannelConsumer) Start(ctx context.Context) {
	for range c.opts.WorkerCount {
		c.workerWg.Add(1)
		go c.worker(ctx)
	}
}

// Stop closes the intake and waits until every buffered event has been flushed.
func (c *GoChannelConsumer) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.workCh)
	}
	c.mu.Unlock()

	c.workerWg.Wait()
}

func (c *GoChannelConsumer) worker(ctx context.Context) {
	defer c.workerWg.Done()

	batches := rill.Batch(rill.FromChan(c.workCh, nil), c.opts.BatchSize, c.opts.BatchTimeout)
	for batch := range batches {
		if len(batch.Value) == 0 {
			continue
		}
		if err := c.eventRepository.BulkInsert(ctx, batch.Value); err != nil {
			c.opts.Logger.Error("dropping audit events after failed insert", "error", err, "count", len(batch.Value))
		}
	}
}

// Consume never blocks: a full buffer is reported as ErrConsumerFull.
func (c *GoChannelConsumer) Consume(ctx context.Context, event Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.stopped {
		return ErrConsumerStopped
	}

	select {
	case c.workCh <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrConsumerFull
	}
}
