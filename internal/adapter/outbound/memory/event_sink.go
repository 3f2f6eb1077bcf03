// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/event"
)

const defaultRecentCap = 1000

// EventSink implements event.Sink by writing records as JSON lines to
// stdout or a caller-supplied writer. It also keeps a bounded in-memory
// ring of the most recent records so event.Reader queries work without
// durable storage.
type EventSink struct {
	encoder *json.Encoder
	writer  io.Writer
	mu      sync.Mutex
	// recent is a bounded ring of the most recent records.
	recent []event.Record
	cap    int
}

// resolveCapacity returns the first positive capacity value, or defaultRecentCap.
func resolveCapacity(capacity ...int) int {
	if len(capacity) > 0 && capacity[0] > 0 {
		return capacity[0]
	}
	return defaultRecentCap
}

// NewEventSink creates an event sink writing to stdout.
// An optional capacity parameter sets the ring size (default 1000).
func NewEventSink(capacity ...int) *EventSink {
	return NewEventSinkWithWriter(os.Stdout, capacity...)
}

// NewEventSinkWithWriter creates an event sink writing to w.
// An optional capacity parameter sets the ring size (default 1000).
func NewEventSinkWithWriter(w io.Writer, capacity ...int) *EventSink {
	cap := resolveCapacity(capacity...)
	return &EventSink{
		encoder: json.NewEncoder(w),
		writer:  w,
		recent:  make([]event.Record, 0, cap),
		cap:     cap,
	}
}

// Append writes the records as JSON lines and adds them to the ring.
func (s *EventSink) Append(ctx context.Context, records ...event.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if err := s.encoder.Encode(r); err != nil {
			return err
		}
		if len(s.recent) >= s.cap {
			// Shift left, drop oldest.
			copy(s.recent, s.recent[1:])
			s.recent[len(s.recent)-1] = r
		} else {
			s.recent = append(s.recent, r)
		}
	}
	return nil
}

// Flush forces pending records to storage.
// No-op for this implementation (no buffering).
func (s *EventSink) Flush(ctx context.Context) error {
	return nil
}

// Close releases resources.
func (s *EventSink) Close() error {
	// Close the file unless it is stdout/stderr.
	if f, ok := s.writer.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Close()
	}
	return nil
}

// Query retrieves records matching the filter from the ring, newest first.
func (s *EventSink) Query(ctx context.Context, filter event.Filter) ([]event.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var result []event.Record
	for i := len(s.recent) - 1; i >= 0 && len(result) < limit; i-- {
		rec := s.recent[i]
		if !filter.StartTime.IsZero() && rec.Timestamp.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && rec.Timestamp.After(filter.EndTime) {
			continue
		}
		if filter.SessionID != "" && rec.SessionID != filter.SessionID {
			continue
		}
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		if filter.Severity != "" && !strings.EqualFold(rec.Severity, filter.Severity) {
			continue
		}
		result = append(result, rec)
	}

	return result, nil
}

// Compile-time interface verification.
var (
	_ event.Sink   = (*EventSink)(nil)
	_ event.Reader = (*EventSink)(nil)
)
