// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/event"
)

func TestEventSink_Append(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	buf := &bytes.Buffer{}
	sink := NewEventSinkWithWriter(buf)

	record := event.Record{
		Timestamp: time.Now().UTC(),
		Type:      event.TypeSessionCreated,
		Severity:  event.SeverityInfo,
		SessionID: "sess-123",
		UserID:    "user-1",
		SourceIP:  "203.0.113.10",
	}

	if err := sink.Append(ctx, record); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	output := buf.String()
	if output == "" {
		t.Fatal("Append() did not write to buffer")
	}

	var decoded event.Record
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &decoded); err != nil {
		t.Fatalf("Written output is not valid JSON: %v", err)
	}

	if decoded.Type != event.TypeSessionCreated {
		t.Errorf("Type = %q, want %q", decoded.Type, event.TypeSessionCreated)
	}
	if decoded.SessionID != "sess-123" {
		t.Errorf("SessionID = %q, want %q", decoded.SessionID, "sess-123")
	}
}

func TestEventSink_AppendMultiple(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	buf := &bytes.Buffer{}
	sink := NewEventSinkWithWriter(buf)

	records := []event.Record{
		{Type: event.TypeSessionCreated, SessionID: "sess-1", Timestamp: time.Now().UTC()},
		{Type: event.TypeSessionRefreshed, SessionID: "sess-2", Timestamp: time.Now().UTC()},
		{Type: event.TypeSessionTerminated, SessionID: "sess-3", Timestamp: time.Now().UTC()},
	}

	if err := sink.Append(ctx, records...); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		t.Errorf("Expected 3 JSON lines, got %d", len(lines))
	}

	for i, line := range lines {
		var decoded event.Record
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Errorf("Line %d is not valid JSON: %v", i, err)
		}
		want := "sess-" + strconv.Itoa(i+1)
		if decoded.SessionID != want {
			t.Errorf("Line %d SessionID = %q, want %q", i, decoded.SessionID, want)
		}
	}
}

func TestEventSink_RingOverflow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	buf := &bytes.Buffer{}
	sink := NewEventSinkWithWriter(buf, 3)

	for i := 0; i < 5; i++ {
		rec := event.Record{
			Type:      event.TypeSessionCreated,
			SessionID: "sess-" + strconv.Itoa(i),
			Timestamp: time.Now().UTC(),
		}
		if err := sink.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	// Ring keeps the newest 3; all 5 still reach the writer.
	got, err := sink.Query(ctx, event.Filter{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Query() returned %d records, want 3", len(got))
	}
	for i, want := range []string{"sess-4", "sess-3", "sess-2"} {
		if got[i].SessionID != want {
			t.Errorf("record %d = %q, want %q", i, got[i].SessionID, want)
		}
	}
	if lines := strings.Split(strings.TrimSpace(buf.String()), "\n"); len(lines) != 5 {
		t.Errorf("writer received %d lines, want 5", len(lines))
	}
}

func TestEventSink_QueryFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := NewEventSinkWithWriter(&bytes.Buffer{})
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seed := []event.Record{
		{Type: event.TypeSessionCreated, Severity: event.SeverityInfo, SessionID: "s-1", UserID: "alice", Timestamp: base},
		{Type: event.TypeSessionTerminated, Severity: event.SeverityCritical, SessionID: "s-1", UserID: "alice", Timestamp: base.Add(time.Minute)},
		{Type: event.TypeSessionCreated, Severity: event.SeverityInfo, SessionID: "s-2", UserID: "bob", Timestamp: base.Add(2 * time.Minute)},
		{Type: event.TypeBehaviorAnomaly, Severity: event.SeverityWarning, SessionID: "s-2", UserID: "bob", Timestamp: base.Add(3 * time.Minute)},
	}
	if err := sink.Append(ctx, seed...); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	tests := []struct {
		name   string
		filter event.Filter
		want   int
	}{
		{"all", event.Filter{}, 4},
		{"by type", event.Filter{Type: event.TypeSessionCreated}, 2},
		{"by user", event.Filter{UserID: "alice"}, 2},
		{"by session", event.Filter{SessionID: "s-2"}, 2},
		{"severity case-insensitive", event.Filter{Severity: "CRITICAL"}, 1},
		{"time range", event.Filter{StartTime: base.Add(90 * time.Second)}, 2},
		{"limit", event.Filter{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sink.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Query() returned %d records, want %d", len(got), tt.want)
			}
		})
	}

	// Newest first.
	got, err := sink.Query(ctx, event.Filter{UserID: "alice"})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if got[0].Type != event.TypeSessionTerminated {
		t.Errorf("first record = %q, want newest (%q)", got[0].Type, event.TypeSessionTerminated)
	}
}

func TestEventSink_Flush(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	buf := &bytes.Buffer{}
	sink := NewEventSinkWithWriter(buf)

	if err := sink.Append(ctx, event.Record{Type: event.TypeSessionCreated, Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	// Flush is a no-op but should not error.
	if err := sink.Flush(ctx); err != nil {
		t.Errorf("Flush() error: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Buffer should still contain data after Flush()")
	}
}

func TestEventSink_Close(t *testing.T) {
	t.Parallel()

	sink := NewEventSinkWithWriter(&bytes.Buffer{})
	if err := sink.Close(); err != nil {
		t.Errorf("Close() error: %v (expected nil for non-file writer)", err)
	}
}

func TestEventSink_AppendEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	buf := &bytes.Buffer{}
	sink := NewEventSinkWithWriter(buf)

	if err := sink.Append(ctx); err != nil {
		t.Errorf("Append() with no records error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Buffer should be empty after appending no records, got %d bytes", buf.Len())
	}
}

func TestEventSink_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	buf := &bytes.Buffer{}
	sink := NewEventSinkWithWriter(buf)

	var wg sync.WaitGroup
	errCh := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			rec := event.Record{
				Type:      event.TypeSessionCreated,
				SessionID: "sess-" + strconv.Itoa(idx),
				Timestamp: time.Now().UTC(),
			}
			if err := sink.Append(ctx, rec); err != nil {
				errCh <- err
			}
		}(i)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("Concurrent Append() error: %v", err)
	}

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 100 {
		t.Errorf("Expected 100 JSON lines, got %d", len(lines))
	}
}

func TestEventSink_DefaultStdout(t *testing.T) {
	// Just verifies construction; nothing is written to stdout here.
	sink := NewEventSink()
	if sink == nil {
		t.Fatal("NewEventSink() returned nil")
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close() on default sink error: %v", err)
	}
}
