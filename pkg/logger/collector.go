package logger

import (
	"sync"
	"time"
)

// Entry is one collected log record.
type Entry struct {
	Time    time.Time              `json:"time"`
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// Collector keeps a bounded ring of recent warn/error entries so the
// diagnostics endpoint can serve them without tailing files.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewCollector creates a collector retaining up to capacity entries.
func NewCollector(capacity int) *Collector {
	if capacity <= 0 {
		capacity = 256
	}
	return &Collector{entries: make([]Entry, capacity)}
}

// Add appends one entry, overwriting the oldest when the ring is full.
func (c *Collector) Add(level, msg string, fields map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.next] = Entry{Time: time.Now(), Level: level, Message: msg, Fields: fields}
	c.next++
	if c.next == len(c.entries) {
		c.next = 0
		c.full = true
	}
}

// Recent returns collected entries, oldest first.
func (c *Collector) Recent() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Entry
	if c.full {
		out = append(out, c.entries[c.next:]...)
	}
	out = append(out, c.entries[:c.next]...)

	cp := make([]Entry, len(out))
	copy(cp, out)
	return cp
}
