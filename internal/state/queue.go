package state

import (
	"sync"
	"time"
)

// DefaultQueueCapacity bounds the change log when the host does not
// configure its own limit. A hundred buffered updates is ample headroom for
// the usual drain cadence.
const DefaultQueueCapacity = 100

// ChangeRecord is one batch of state-property mutations, immutable once
// queued.
type ChangeRecord struct {
	// Timestamp is when the mutation batch was committed.
	Timestamp time.Time `json:"timestamp"`

	// Changes maps property names to their new values.
	Changes map[string]any `json:"changes"`
}

// Queue is the bounded FIFO of state-change records buffered for the
// upstream notifier.
//
// The producer is the state Manager; the consumer is exactly one external
// notifier draining on its own cadence. When the queue is at capacity the
// oldest record is coalesced into its successor rather than dropped, so
// the queue never exceeds its capacity and never loses the latest value of
// any property — only intermediate snapshots collapse, last writer wins per
// property within the coalesced window.
type Queue struct {
	mu       sync.Mutex
	capacity int
	records  []ChangeRecord
}

// NewQueue creates a change queue bounded to the given capacity.
// Non-positive capacities fall back to DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{capacity: capacity}
}

// Capacity returns the configured maximum record count.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Len returns the number of buffered records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// NotifyPropertiesUpdated appends one change record.
//
// The changes map is copied; callers may reuse it. Empty batches are
// ignored.
func (q *Queue) NotifyPropertiesUpdated(timestamp time.Time, changes map[string]any) {
	if len(changes) == 0 {
		return
	}
	copied := make(map[string]any, len(changes))
	for k, v := range changes {
		copied[k] = v
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.records = append(q.records, ChangeRecord{Timestamp: timestamp, Changes: copied})
	for len(q.records) > q.capacity {
		q.foldFront()
	}
}

// Requeue returns previously drained records to the front of the queue, in
// their original order, ahead of anything buffered since the drain. The
// notifier calls this when publication fails so records survive a broker
// outage instead of being lost with the failed publish.
//
// Capacity is re-enforced by coalescing from the front, so the combined
// backlog still never exceeds the bound and the latest value of every
// property still survives.
func (q *Queue) Requeue(records []ChangeRecord) {
	if len(records) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	merged := make([]ChangeRecord, 0, len(records)+len(q.records))
	merged = append(merged, records...)
	merged = append(merged, q.records...)
	q.records = merged
	for len(q.records) > q.capacity {
		q.foldFront()
	}
}

// foldFront folds the front record into its successor, keeping the
// successor's values on conflict. Callers must hold the mutex and guarantee
// at least two buffered records.
func (q *Queue) foldFront() {
	oldest := q.records[0]
	q.records = q.records[1:]

	target := q.records[0].Changes
	for name, value := range oldest.Changes {
		if _, ok := target[name]; !ok {
			target[name] = value
		}
	}
}

// GetAllChanges returns everything buffered since the last drain, in
// chronological order, and clears the queue.
//
// Concurrent drains are not supported; the host must serialize consumers.
func (q *Queue) GetAllChanges() []ChangeRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	records := q.records
	q.records = nil
	return records
}
