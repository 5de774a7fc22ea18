package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/destel/rill"
	"github.com/vadiminshakov/gowal"
)

var _ EventConsumer = new(WALConsumer)

// WALConsumer appends every accepted event to a local write-ahead log before handing it
// to the workers. An index is acknowledged only after its batch is stored, so audit
// records survive both a crash and a failing database: whatever is not acknowledged is
// replayed on the next start.
type WALConsumer struct {
	eventRepository    EventRepository
	wal                *gowal.Wal
	workCh             chan WorkItem
	doneCh             chan uint64
	opts               WALConsumerOptions
	logger             *slog.Logger
	stateFile          string
	lastProcessedIndex atomic.Uint64
	lastFlushedIndex   atomic.Uint64
	coordinatorDone    chan struct{}
	quit               chan struct{}
	workerWg           sync.WaitGroup
	stopOnce           sync.Once
	// serializes index allocation, WAL writes and every send on workCh
	walMutex sync.Mutex
	stopped  bool
}

type WALConsumerOptions struct {
	BufferSize       int
	BatchSize        int
	BatchTimeout     time.Duration
	WALDir           string
	WALPrefix        string
	SegmentThreshold int
	MaxSegments      int
	IsInSyncDiskMode bool
	WorkerCount      int
	FlushThreshold   int
	FlushInterval    time.Duration
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
	Logger           *slog.Logger
}

type WorkItem struct {
	Index uint64
	Event Event
}

func (o *WALConsumerOptions) defaults() {
	if o.BufferSize == 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout == 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.WALDir == "" {
		o.WALDir = "./wal"
	}
	if o.WALPrefix == "" {
		o.WALPrefix = "event_"
	}
	if o.SegmentThreshold == 0 {
		o.SegmentThreshold = 1000
	}
	if o.MaxSegments == 0 {
		o.MaxSegments = 10
	}
	if o.WorkerCount == 0 {
		o.WorkerCount = 4
	}
	if o.FlushThreshold == 0 {
		o.FlushThreshold = 1000
	}
	if o.FlushInterval == 0 {
		o.FlushInterval = 5 * time.Second
	}
	if o.RetryInterval == 0 {
		o.RetryInterval = 100 * time.Millisecond
	}
	if o.MaxRetryInterval == 0 {
		o.MaxRetryInterval = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func NewWALConsumer(eventRepository EventRepository, opts WALConsumerOptions) (*WALConsumer, error) {
	opts.defaults()

	if err := os.MkdirAll(opts.WALDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              opts.WALDir,
		Prefix:           opts.WALPrefix,
		SegmentThreshold: opts.SegmentThreshold,
		MaxSegments:      opts.MaxSegments,
		IsInSyncDiskMode: opts.IsInSyncDiskMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create WAL: %w", err)
	}

	return &WALConsumer{
		eventRepository: eventRepository,
		wal:             wal,
		workCh:          make(chan WorkItem, opts.BufferSize),
		doneCh:          make(chan uint64, opts.BufferSize),
		opts:            opts,
		logger:          opts.Logger.With("component", "wal_consumer"),
		stateFile:       filepath.Join(opts.WALDir, opts.WALPrefix+"processor.state"),
		coordinatorDone: make(chan struct{}),
		quit:            make(chan struct{}),
	}, nil
}

func (c *WALConsumer) Start(ctx context.Context) {
	lastFlushedIndex, err := c.readLastProcessedIndex()
	if err != nil {
		c.logger.Warn("failed to read last processed index, starting from 0", "error", err)
		lastFlushedIndex = 0
	}
	c.lastFlushedIndex.Store(lastFlushedIndex)
	c.lastProcessedIndex.Store(lastFlushedIndex)

	go c.stateCoordinator(ctx)

	for range c.opts.WorkerCount {
		c.workerWg.Add(1)
		go c.worker(ctx)
	}

	if err := c.recover(ctx); err != nil {
		c.logger.Error("error during recovery", "error", err)
	}
}

func (c *WALConsumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)

		c.walMutex.Lock()
		c.stopped = true
		close(c.workCh)
		c.walMutex.Unlock()

		c.workerWg.Wait()

		close(c.doneCh)
		<-c.coordinatorDone

		if err := c.writeLastProcessedIndex(c.lastProcessedIndex.Load()); err != nil {
			c.logger.Error("error during final flush", "error", err)
		}

		c.walMutex.Lock()
		defer c.walMutex.Unlock()
		if err := c.wal.Close(); err != nil {
			c.logger.Error("error closing WAL", "error", err)
		}
	})
}

func (c *WALConsumer) Consume(ctx context.Context, event Event) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	c.walMutex.Lock()
	defer c.walMutex.Unlock()

	if c.stopped {
		return ErrConsumerStopped
	}

	// Only holders of walMutex send on workCh, so a free slot seen here is still free
	// after the write. A rejected event never reaches the WAL and leaves no gap in the
	// index sequence.
	if len(c.workCh) == cap(c.workCh) {
		return ErrConsumerFull
	}

	index := c.wal.CurrentIndex() + 1
	if err := c.wal.Write(index, event.ID, eventJSON); err != nil {
		return fmt.Errorf("failed to write to WAL: %w", err)
	}

	c.workCh <- WorkItem{Index: index, Event: event}
	return nil
}

func (c *WALConsumer) recover(ctx context.Context) error {
	lastProcessedIndex := c.lastProcessedIndex.Load()
	c.logger.Info("recovering audit events", "from_index", lastProcessedIndex)

	c.walMutex.Lock()
	defer c.walMutex.Unlock()

	recovered := 0
	for msg := range c.wal.Iterator() {
		if msg.Index() <= lastProcessedIndex {
			continue
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error("skipping unreadable WAL entry", "index", msg.Index(), "error", err)
			c.doneCh <- msg.Index()
			continue
		}

		select {
		case c.workCh <- WorkItem{Index: msg.Index(), Event: event}:
			recovered++
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.logger.Info("recovery completed", "recovered", recovered)
	return nil
}

// stateCoordinator advances the contiguous processed index as batches complete,
// tolerating out-of-order completion across workers.
func (c *WALConsumer) stateCoordinator(ctx context.Context) {
	defer close(c.coordinatorDone)

	completedOutOfOrder := make(map[uint64]bool)

	flushTicker := time.NewTicker(c.opts.FlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case completedIndex, ok := <-c.doneCh:
			if !ok {
				return
			}

			next := c.lastProcessedIndex.Load() + 1
			switch {
			case completedIndex == next:
				c.lastProcessedIndex.Store(next)
				for completedOutOfOrder[c.lastProcessedIndex.Load()+1] {
					idx := c.lastProcessedIndex.Add(1)
					delete(completedOutOfOrder, idx)
				}

				current := c.lastProcessedIndex.Load()
				if current-c.lastFlushedIndex.Load() >= uint64(c.opts.FlushThreshold) {
					c.flush(current)
				}
			case completedIndex > next:
				completedOutOfOrder[completedIndex] = true
			}
			// completedIndex < next is a duplicate.

		case <-flushTicker.C:
			current := c.lastProcessedIndex.Load()
			if current > c.lastFlushedIndex.Load() {
				c.flush(current)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *WALConsumer) flush(index uint64) {
	if err := c.writeLastProcessedIndex(index); err != nil {
		c.logger.Error("failed to write last processed index", "index", index, "error", err)
		return
	}
	c.lastFlushedIndex.Store(index)
	c.logger.Debug("flushed state to disk", "index", index)
}

func (c *WALConsumer) worker(ctx context.Context) {
	defer c.workerWg.Done()

	batches := rill.Batch(rill.FromChan(c.workCh, nil), c.opts.BatchSize, c.opts.BatchTimeout)
	for batch := range batches {
		if len(batch.Value) == 0 {
			continue
		}

		evts := make([]Event, len(batch.Value))
		for i, item := range batch.Value {
			evts[i] = item.Event
		}

		if !c.insertWithRetry(ctx, evts) {
			// Unacknowledged items stay in the WAL and are replayed on the next start.
			for range batches {
			}
			return
		}
		for _, item := range batch.Value {
			c.doneCh <- item.Index
		}
	}
}

// insertWithRetry stores evts, backing off between failed attempts. It gives up only
// when the consumer is stopping or ctx is done, and reports whether the insert succeeded.
func (c *WALConsumer) insertWithRetry(ctx context.Context, evts []Event) bool {
	backoff := c.opts.RetryInterval
	for {
		err := c.eventRepository.BulkInsert(ctx, evts)
		if err == nil {
			return true
		}
		c.logger.Error("failed to bulk insert events, retrying", "error", err, "count", len(evts), "backoff", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-c.quit:
			timer.Stop()
			c.logger.Warn("stopping with unstored events, they will be replayed", "count", len(evts))
			return false
		case <-ctx.Done():
			timer.Stop()
			return false
		}
		backoff = min(2*backoff, c.opts.MaxRetryInterval)
	}
}

func (c *WALConsumer) readLastProcessedIndex() (uint64, error) {
	data, err := os.ReadFile(c.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

func (c *WALConsumer) writeLastProcessedIndex(index uint64) error {
	return os.WriteFile(c.stateFile, []byte(strconv.FormatUint(index, 10)), 0644)
}
