package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/reagent/logging"
	"github.com/hupe1980/reagent/message"
)

// InMemoryOptions configure the in-memory message store.
type InMemoryOptions struct {
	// Capacity is the maximum number of messages retained.
	Capacity int

	// AutoTruncate evicts the oldest message on overflow. When false, an
	// Add that would exceed Capacity is rejected (no-op returning false).
	AutoTruncate bool

	// Logger receives debug output (defaults to NoOpLogger).
	Logger logging.Logger
}

// InMemoryMemory is a process-local Memory. Reads take the shared lock and
// return copies; every mutation takes the exclusive lock. Lock holds are
// bounded by the copy/scan work, nothing in here blocks on I/O.
type InMemoryMemory struct {
	mu       sync.RWMutex
	messages []*message.Msg
	opts     InMemoryOptions
	logger   logging.Logger
}

// NewInMemoryMemory creates a store with the default configuration
// (capacity 1000, auto-truncate enabled).
func NewInMemoryMemory(optFns ...func(o *InMemoryOptions)) *InMemoryMemory {
	opts := InMemoryOptions{
		Capacity:     1000,
		AutoTruncate: true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryMemory{
		opts:   opts,
		logger: logging.OrNoOp(opts.Logger),
	}
}

// Add appends msg to the tail. With auto-truncate enabled the oldest entry is
// evicted once size exceeds capacity; otherwise an overflowing Add is
// rejected. Nil messages are ignored.
func (m *InMemoryMemory) Add(msg *message.Msg) bool {
	if msg == nil {
		m.logger.Warn("memory.add.nil_message")
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.opts.AutoTruncate && len(m.messages) >= m.opts.Capacity {
		m.logger.Warn("memory.add.rejected", "capacity", m.opts.Capacity)
		return false
	}

	m.messages = append(m.messages, msg)
	m.logger.Debug("memory.add", "id", msg.ID(), "size", len(m.messages))

	if m.opts.AutoTruncate && len(m.messages) > m.opts.Capacity {
		evicted := m.messages[0]
		m.messages = m.messages[1:]
		m.logger.Debug("memory.evict", "id", evicted.ID())
	}
	return true
}

// All returns a snapshot of every stored message in insertion order.
func (m *InMemoryMemory) All() []*message.Msg {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return snapshot(m.messages)
}

// Recent returns the last n messages in insertion order. n >= size yields all
// messages; n <= 0 yields an empty slice.
func (m *InMemoryMemory) Recent(n int) []*message.Msg {
	if n <= 0 {
		return []*message.Msg{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if n >= len(m.messages) {
		return snapshot(m.messages)
	}
	return snapshot(m.messages[len(m.messages)-n:])
}

// ByRole returns the messages with the given role in insertion order.
func (m *InMemoryMemory) ByRole(role message.Role) []*message.Msg {
	return m.Filter(Filter{Role: role})
}

// Filter returns the messages matching every set criterion of f, in insertion
// order.
func (m *InMemoryMemory) Filter(f Filter) []*message.Msg {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*message.Msg, 0)
	for _, msg := range m.messages {
		if matches(msg, f) {
			out = append(out, msg)
		}
	}
	return out
}

// RemoveOlderThan removes every message with a timestamp strictly before the
// cutoff and returns the number removed. Unparseable timestamps are kept.
func (m *InMemoryMemory) RemoveOlderThan(cutoff string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.messages[:0]
	removed := 0
	for _, msg := range m.messages {
		if isBefore(msg.Timestamp(), cutoff) {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	m.messages = kept
	if removed > 0 {
		m.logger.Info("memory.remove_older_than", "cutoff", cutoff, "removed", removed)
	}
	return removed
}

// RemoveByID removes the message with the given id, reporting whether it was
// present.
func (m *InMemoryMemory) RemoveByID(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, msg := range m.messages {
		if msg.ID() == id {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			return true
		}
	}
	return false
}

// TruncateToRecent keeps only the last keep messages, returning how many were
// dropped. keep < 0 is a no-op.
func (m *InMemoryMemory) TruncateToRecent(keep int) int {
	if keep < 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.messages) <= keep {
		return 0
	}
	removed := len(m.messages) - keep
	m.messages = append([]*message.Msg(nil), m.messages[removed:]...)
	m.logger.Info("memory.truncate", "kept", keep, "removed", removed)
	return removed
}

// Size returns the current number of stored messages.
func (m *InMemoryMemory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Clear removes all stored messages.
func (m *InMemoryMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

func snapshot(msgs []*message.Msg) []*message.Msg {
	out := make([]*message.Msg, len(msgs))
	copy(out, msgs)
	return out
}

func matches(msg *message.Msg, f Filter) bool {
	if f.Role != "" && msg.Role() != f.Role {
		return false
	}
	if f.Name != "" && msg.Name() != f.Name {
		return false
	}
	if f.ContainsText != "" && !strings.Contains(msg.TextContent(), f.ContainsText) {
		return false
	}
	if f.Before != "" && !isBefore(msg.Timestamp(), f.Before) {
		return false
	}
	if f.After != "" && !isBefore(f.After, msg.Timestamp()) {
		return false
	}
	return true
}

// isBefore reports ts1 < ts2 in TimestampFormat. Malformed timestamps never
// compare as before, keeping filter queries total.
func isBefore(ts1, ts2 string) bool {
	t1, err1 := time.Parse(message.TimestampFormat, ts1)
	t2, err2 := time.Parse(message.TimestampFormat, ts2)
	if err1 != nil || err2 != nil {
		return false
	}
	return t1.Before(t2)
}
