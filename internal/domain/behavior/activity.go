// Package behavior contains per-user behavioral baselines, per-session
// activity logs, and the anomaly analysis that feeds risk scoring.
package behavior

import "time"

// Record is one request sample appended by session validation.
type Record struct {
	Timestamp time.Time     `json:"timestamp"`
	Path      string        `json:"path"`
	Method    string        `json:"method"`
	Gap       time.Duration `json:"gap"` // since the previous request; 0 for the first
}

// Ring is a bounded buffer of recent activity records. It is not
// self-synchronizing: a Ring is owned by a single session and guarded by
// that session's lock.
type Ring struct {
	entries []Record
	head    int
	count   int
}

// NewRing creates a ring holding at most capacity records.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ring{entries: make([]Record, capacity)}
}

// Append adds a record, overwriting the oldest when full.
func (r *Ring) Append(rec Record) {
	r.entries[r.head] = rec
	r.head = (r.head + 1) % len(r.entries)
	if r.count < len(r.entries) {
		r.count++
	}
}

// Len returns the number of records currently held.
func (r *Ring) Len() int { return r.count }

// Snapshot returns the held records in chronological order.
func (r *Ring) Snapshot() []Record {
	if r.count == 0 {
		return nil
	}
	out := make([]Record, r.count)
	start := (r.head - r.count + len(r.entries)) % len(r.entries)
	for i := 0; i < r.count; i++ {
		out[i] = r.entries[(start+i)%len(r.entries)]
	}
	return out
}

// Clone returns an independent copy of the ring.
func (r *Ring) Clone() *Ring {
	cp := &Ring{
		entries: make([]Record, len(r.entries)),
		head:    r.head,
		count:   r.count,
	}
	copy(cp.entries, r.entries)
	return cp
}
