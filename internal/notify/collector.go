package notify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"

	"github.com/srg/classicgap/internal/groutine"
)

const (
	CollectorStateNotRunning uint32 = iota
	CollectorStateRunning
	CollectorStateStopping

	// MaxHistorySize guards against accidental misconfiguration.
	MaxHistorySize uint32 = 64 * 1024
)

// Record is one collected notification with its arrival time.
type Record struct {
	At           time.Time
	Notification Notification
}

// CollectorMetrics are updated atomically.
type CollectorMetrics struct {
	RecordsProcessed   int64
	RecordsOverwritten int64
	ErrorsOccurred     int64
}

// Collector keeps a bounded history of the notifications read from a
// channel. When the history is full the oldest records are overwritten.
//
// All methods are safe for concurrent use.
type Collector struct {
	source  <-chan Notification
	buffer  mpmc.RichOverlappedRingBuffer[Record]
	onError func(error)
	metrics CollectorMetrics
	state   uint32
	stop    chan struct{}
	done    <-chan struct{}
	now     func() time.Time
}

// NewCollector creates a collector reading from source. onError is called
// when the history buffer fails; nil ignores such errors.
func NewCollector(source <-chan Notification, size uint32, onError func(error)) (*Collector, error) {
	if source == nil {
		return nil, fmt.Errorf("source channel cannot be nil")
	}
	if size == 0 {
		return nil, fmt.Errorf("history size must be > 0")
	}
	if size > MaxHistorySize {
		return nil, fmt.Errorf("history size %d exceeds maximum %d", size, MaxHistorySize)
	}
	if onError == nil {
		onError = func(error) {}
	}

	return &Collector{
		source:  source,
		buffer:  mpmc.NewOverlappedRingBuffer[Record](size),
		onError: onError,
		state:   CollectorStateNotRunning,
		now:     time.Now,
	}, nil
}

// Start begins collecting in the background.
func (c *Collector) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&c.state, CollectorStateNotRunning, CollectorStateRunning) {
		if atomic.LoadUint32(&c.state) == CollectorStateStopping {
			return fmt.Errorf("collector is stopping, wait for it to finish")
		}
		return fmt.Errorf("collector is already running")
	}

	c.stop = make(chan struct{})
	stop := c.stop

	c.done = groutine.Go(ctx, "notify-collector", func(ctx context.Context) {
		defer atomic.StoreUint32(&c.state, CollectorStateNotRunning)
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case n, ok := <-c.source:
				if !ok {
					return
				}
				c.collect(n)
			}
		}
	})
	return nil
}

func (c *Collector) collect(n Notification) {
	overwrites, err := c.buffer.EnqueueM(Record{At: c.now(), Notification: n})
	if err != nil {
		atomic.AddInt64(&c.metrics.ErrorsOccurred, 1)
		c.onError(fmt.Errorf("history enqueue: %w", err))
		return
	}
	atomic.AddInt64(&c.metrics.RecordsOverwritten, int64(overwrites))
	atomic.AddInt64(&c.metrics.RecordsProcessed, 1)
}

// Stop halts collection and waits for the background goroutine to exit.
// Stopping a collector that is not running is a no-op.
func (c *Collector) Stop() error {
	if !atomic.CompareAndSwapUint32(&c.state, CollectorStateRunning, CollectorStateStopping) {
		return nil
	}
	close(c.stop)

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		<-c.done
		return fmt.Errorf("stop completed but exceeded 5s timeout")
	}
}

// Drain removes and returns every buffered record, oldest first.
func (c *Collector) Drain() ([]Record, error) {
	var out []Record
	for !c.buffer.IsEmpty() {
		rec, err := c.buffer.Dequeue()
		if err != nil {
			return out, fmt.Errorf("history dequeue: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetMetrics returns a snapshot of the counters.
func (c *Collector) GetMetrics() CollectorMetrics {
	return CollectorMetrics{
		RecordsProcessed:   atomic.LoadInt64(&c.metrics.RecordsProcessed),
		RecordsOverwritten: atomic.LoadInt64(&c.metrics.RecordsOverwritten),
		ErrorsOccurred:     atomic.LoadInt64(&c.metrics.ErrorsOccurred),
	}
}

// GetState returns one of the CollectorState constants.
func (c *Collector) GetState() uint32 {
	return atomic.LoadUint32(&c.state)
}
