package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/kafka"
)

// Publisher writes a batch of events to a topic.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// BatchPublisher publishes events in batches. Each Deliver flushes whatever
// is queued, and a background loop retries leftovers every flushInterval.
// Failed flushes are re-queued up to three batches; older events beyond
// that are dropped.
//
// Deliver publishes before it returns, so a caller that only acknowledges
// its input after a nil Deliver gets at-least-once output. Anything still
// buffered then belongs to a Deliver that failed and will be retried, so
// overflow drops never lose an acknowledged result.
type BatchPublisher struct {
	publisher     Publisher
	flushMu       sync.Mutex
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	done          chan struct{}
	logger        *slog.Logger
}

func NewBatchPublisher(p Publisher, batchSize int, flushInterval time.Duration) *BatchPublisher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &BatchPublisher{
		publisher:     p,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
		logger:        slog.Default().With("component", "batch-publisher"),
	}
}

// Start launches the flush loop. When ctx ends the buffer is flushed one
// last time with a short deadline.
func (bp *BatchPublisher) Start(ctx context.Context) {
	go func() {
		defer close(bp.done)
		ticker := time.NewTicker(bp.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = bp.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = bp.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bp.logger.Info("batch publisher started", "batch_size", bp.batchSize, "flush_interval", bp.flushInterval)
}

// Deliver buffers an event and flushes the buffer. A nil return means the
// event reached the broker; on error it stays queued for a later flush and
// a retrying caller may publish it twice.
func (bp *BatchPublisher) Deliver(ctx context.Context, key string, value any) error {
	bp.mu.Lock()
	bp.buffer = append(bp.buffer, kafka.Event{Key: key, Value: value})
	bp.mu.Unlock()
	return bp.Flush(ctx)
}

// Health reports Degraded while results from failed publishes are waiting
// for a retry.
func (bp *BatchPublisher) Health(context.Context) health.ComponentHealth {
	if n := bp.BufferLen(); n > 0 {
		return health.ComponentHealth{Status: health.StatusDegraded, Message: fmt.Sprintf("%d results awaiting publish", n)}
	}
	return health.ComponentHealth{Status: health.StatusUp}
}

// Close waits for the flush loop to exit after its context ended.
func (bp *BatchPublisher) Close() {
	<-bp.done
}

func (bp *BatchPublisher) BufferLen() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.buffer)
}

// Flush publishes everything buffered. Flushes are serialised, so once
// Flush returns every event queued before the call was either published or
// is back in the buffer.
func (bp *BatchPublisher) Flush(ctx context.Context) error {
	bp.flushMu.Lock()
	defer bp.flushMu.Unlock()

	bp.mu.Lock()
	if len(bp.buffer) == 0 {
		bp.mu.Unlock()
		return nil
	}
	pending := bp.buffer
	bp.buffer = make([]kafka.Event, 0, bp.batchSize)
	bp.mu.Unlock()

	if err := bp.publisher.PublishBatch(ctx, pending); err != nil {
		bp.logger.Error("batch flush failed", "batch_size", len(pending), "error", err)
		bp.mu.Lock()
		bp.buffer = append(pending, bp.buffer...)
		if limit := bp.batchSize * 3; len(bp.buffer) > limit {
			dropped := len(bp.buffer) - limit
			bp.buffer = bp.buffer[dropped:]
			bp.logger.Warn("buffer overflow, oldest results dropped", "dropped", dropped)
		}
		bp.mu.Unlock()
		return err
	}
	bp.logger.Debug("batch flushed", "events", len(pending))
	return nil
}
