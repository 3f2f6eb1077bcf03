package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/event"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/telemetry"
)

// Dispatcher fans security events out to a sink through a buffered
// channel and background worker. Emitting never blocks the validation
// hot path beyond the configured send timeout.
type Dispatcher struct {
	sink          event.Sink
	eventChan     chan event.Record
	wg            sync.WaitGroup
	logger        *slog.Logger
	metrics       *telemetry.Metrics
	batchSize     int
	flushInterval time.Duration

	channelSize int           // capacity, kept for depth percentages
	sendTimeout time.Duration // 0 = drop immediately, >0 = block up to this duration
	dropCount   atomic.Int64

	warningThreshold int          // percent of capacity that triggers a depth warning
	lastWarning      atomic.Int64 // rate-limits warning logs (Unix nanos)

	adaptiveFlushThreshold int // depth percent that switches to fast flushing
}

// DispatchOption configures a Dispatcher.
type DispatchOption func(*Dispatcher)

// WithBatchSize sets the number of records batched before a write.
func WithBatchSize(size int) DispatchOption {
	return func(d *Dispatcher) {
		d.batchSize = size
	}
}

// WithFlushInterval sets the interval at which partial batches are written.
func WithFlushInterval(interval time.Duration) DispatchOption {
	return func(d *Dispatcher) {
		d.flushInterval = interval
	}
}

// WithChannelSize sets the event channel buffer size.
func WithChannelSize(size int) DispatchOption {
	return func(d *Dispatcher) {
		d.eventChan = make(chan event.Record, size)
		d.channelSize = size
	}
}

// WithSendTimeout sets the backpressure timeout.
// 0 = drop immediately, >0 = block up to this duration before dropping.
func WithSendTimeout(timeout time.Duration) DispatchOption {
	return func(d *Dispatcher) {
		d.sendTimeout = timeout
	}
}

// WithWarningThreshold sets the channel depth warning percentage (0-100).
func WithWarningThreshold(percent int) DispatchOption {
	return func(d *Dispatcher) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		d.warningThreshold = percent
	}
}

// WithAdaptiveFlushThreshold sets the channel depth percent that switches
// the worker to a 4x faster flush interval. 0 disables adaptive flushing.
func WithAdaptiveFlushThreshold(percent int) DispatchOption {
	return func(d *Dispatcher) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		d.adaptiveFlushThreshold = percent
	}
}

// WithDispatchMetrics wires the drop counter into the engine metrics.
func WithDispatchMetrics(m *telemetry.Metrics) DispatchOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher creates a dispatcher writing to the given sink.
func NewDispatcher(sink event.Sink, logger *slog.Logger, opts ...DispatchOption) *Dispatcher {
	defaultChannelSize := 1000
	d := &Dispatcher{
		sink:                   sink,
		eventChan:              make(chan event.Record, defaultChannelSize),
		logger:                 logger,
		batchSize:              100,
		flushInterval:          time.Second,
		channelSize:            defaultChannelSize,
		sendTimeout:            100 * time.Millisecond,
		warningThreshold:       80,
		adaptiveFlushThreshold: 80,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Start begins the background worker that batches and writes events.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.worker(ctx)
}

// Emit queues a security event. Missing timestamp and severity are
// filled in, and the detail map is redacted before the record crosses
// the async boundary. Applies backpressure: fast non-blocking send,
// then a bounded wait, then the record is dropped and counted.
func (d *Dispatcher) Emit(rec event.Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.Severity == "" {
		rec.Severity = event.DefaultSeverity(rec.Type)
	}
	if rec.Detail != nil {
		rec.Detail = event.RedactDetail(rec.Detail)
	}

	if d.warningThreshold > 0 {
		depth := len(d.eventChan)
		threshold := d.channelSize * d.warningThreshold / 100
		if depth >= threshold {
			d.warnChannelDepth(depth)
		}
	}

	select {
	case d.eventChan <- rec:
		return
	default:
		// Channel full, apply backpressure.
	}

	if d.sendTimeout <= 0 {
		d.recordDrop(rec)
		return
	}

	select {
	case d.eventChan <- rec:
	case <-time.After(d.sendTimeout):
		d.recordDrop(rec)
	}
}

// recordDrop counts and logs a dropped event.
func (d *Dispatcher) recordDrop(rec event.Record) {
	drops := d.dropCount.Add(1)
	if d.metrics != nil {
		d.metrics.EventsDropped.Inc()
	}
	d.logger.Warn("security event dropped",
		"type", rec.Type,
		"session", rec.SessionID,
		"total_drops", drops,
	)
}

// warnChannelDepth logs a capacity warning, rate-limited to once per second.
func (d *Dispatcher) warnChannelDepth(depth int) {
	now := time.Now().UnixNano()
	last := d.lastWarning.Load()

	if now-last < int64(time.Second) {
		return
	}

	if d.lastWarning.CompareAndSwap(last, now) {
		d.logger.Warn("event channel approaching capacity",
			"depth", depth,
			"capacity", d.channelSize,
			"percent", depth*100/d.channelSize,
		)
	}
}

// DroppedEvents returns the total number of dropped events.
func (d *Dispatcher) DroppedEvents() int64 {
	return d.dropCount.Load()
}

// ChannelDepth returns the current channel usage.
func (d *Dispatcher) ChannelDepth() int {
	return len(d.eventChan)
}

// ChannelCapacity returns the channel buffer size.
func (d *Dispatcher) ChannelCapacity() int {
	return d.channelSize
}

// Stop signals the worker to stop and waits for it to drain. Pending
// events are flushed before returning.
func (d *Dispatcher) Stop() {
	close(d.eventChan)
	d.wg.Wait()
}

// worker collects events and writes them to the sink in batches.
func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	batch := make([]event.Record, 0, d.batchSize)
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	fastMode := false

	for {
		select {
		case rec, ok := <-d.eventChan:
			if !ok {
				// Channel closed: final flush with a bounded deadline.
				if len(batch) > 0 {
					flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
					d.flush(flushCtx, batch)
					flushCancel()
				}
				return
			}
			batch = append(batch, rec)

			shouldFlush := len(batch) >= d.batchSize

			// Under pressure, flush partial batches early.
			if !shouldFlush && d.adaptiveFlushThreshold > 0 && len(batch) > 0 {
				depth := len(d.eventChan)
				if depth*100/d.channelSize >= d.adaptiveFlushThreshold {
					shouldFlush = true
				}
			}

			if shouldFlush {
				d.flush(ctx, batch)
				batch = batch[:0]
			}

			if d.adaptiveFlushThreshold > 0 {
				depthPercent := len(d.eventChan) * 100 / d.channelSize

				if depthPercent >= d.adaptiveFlushThreshold && !fastMode {
					ticker.Reset(d.flushInterval / 4)
					fastMode = true
					d.logger.Debug("event dispatch entering fast flush",
						"depth_percent", depthPercent,
						"interval", d.flushInterval/4,
					)
				} else if depthPercent < d.adaptiveFlushThreshold && fastMode {
					ticker.Reset(d.flushInterval)
					fastMode = false
					d.logger.Debug("event dispatch returning to normal flush",
						"depth_percent", depthPercent,
						"interval", d.flushInterval,
					)
				}
			}

		case <-ticker.C:
			if len(batch) > 0 {
				d.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			// Drain whatever is queued, then flush with a bounded deadline.
			for rec := range d.eventChan {
				batch = append(batch, rec)
			}
			if len(batch) > 0 {
				flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
				d.flush(flushCtx, batch)
				flushCancel()
			}
			return
		}
	}
}

// flush writes a batch to the sink. Errors are logged, never propagated:
// event delivery must not fail session operations.
func (d *Dispatcher) flush(ctx context.Context, batch []event.Record) {
	if err := d.sink.Append(ctx, batch...); err != nil {
		d.logger.Error("failed to write event batch",
			"error", err,
			"count", len(batch),
		)
	}
}
