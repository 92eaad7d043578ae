package spamcheck

import (
	"sync"
	"time"
)

// CheckRecord is a check response with the time it was recorded
type CheckRecord struct {
	Response
	CheckedAt time.Time `json:"checked_at"`
}

// History keeps the most recent check records in a fixed-size circular buffer, thread-safe.
type History struct {
	records []CheckRecord
	next    int // slot for the next record
	count   int // number of filled slots
	now     func() time.Time
	lock    sync.RWMutex
}

// NewHistory makes a history keeping up to capacity records, at least one
func NewHistory(capacity int) *History {
	return &History{records: make([]CheckRecord, max(capacity, 1)), now: time.Now}
}

// Add records the response, overwriting the oldest record when full
func (h *History) Add(resp Response) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.records[h.next] = CheckRecord{Response: resp, CheckedAt: h.now()}
	h.next = (h.next + 1) % len(h.records)
	h.count = min(h.count+1, len(h.records))
}

// Recent returns up to n latest records, oldest first. Never nil.
func (h *History) Recent(n int) []CheckRecord {
	h.lock.RLock()
	defer h.lock.RUnlock()

	n = min(max(n, 0), h.count)
	res := make([]CheckRecord, n)
	start := h.next - n + len(h.records)
	for i := range res {
		res[i] = h.records[(start+i)%len(h.records)]
	}
	return res
}

// Cap returns the maximum number of kept records
func (h *History) Cap() int {
	return len(h.records)
}
