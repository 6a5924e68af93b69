// Package memory provides the short-term conversational store used by agents
// plus the long-term memory contract. The in-memory implementations are safe
// for concurrent use; swap in durable backends by implementing the interfaces.
package memory

import (
	"context"

	"github.com/hupe1980/reagent/message"
)

// Memory is the bounded, ordered log of messages an agent reasons over.
// Implementations must serve concurrent readers while serializing mutation,
// and all read operations must return snapshots, never live views.
type Memory interface {
	// Add appends a message to the tail, applying the store's eviction
	// policy. It reports whether the message was stored.
	Add(msg *message.Msg) bool

	// All returns a snapshot of every stored message in insertion order.
	All() []*message.Msg

	// Recent returns a snapshot of the last n messages (all messages when
	// n exceeds the size, empty for n <= 0).
	Recent(n int) []*message.Msg

	// ByRole returns a snapshot of the messages with the given role.
	ByRole(role message.Role) []*message.Msg

	// Filter returns a snapshot of the messages matching all set criteria.
	Filter(f Filter) []*message.Msg

	// RemoveOlderThan removes messages with a timestamp strictly before the
	// cutoff and returns how many were removed.
	RemoveOlderThan(cutoff string) int

	// RemoveByID removes the message with the given id, reporting success.
	RemoveByID(id string) bool

	// TruncateToRecent keeps only the last keep messages and returns how
	// many were removed.
	TruncateToRecent(keep int) int

	// Size returns the current number of stored messages.
	Size() int

	// Clear removes all stored messages.
	Clear()
}

// Filter describes the predicate applied by Memory.Filter. Zero-valued
// fields are ignored. Timestamp comparisons that cannot be parsed are treated
// as "does not match" so queries stay total.
type Filter struct {
	Role         message.Role // Match this role exactly
	Name         string       // Match this sender name exactly
	ContainsText string       // Text content must contain this substring
	Before       string       // Timestamp strictly before (TimestampFormat)
	After        string       // Timestamp strictly after (TimestampFormat)
}

// SearchResult is a single long-term memory hit.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// LongTermMemory is the durable cross-conversation store consulted around the
// reasoning loop (static control) or invoked by the model as a tool (agent
// control). The persistence format is implementation defined.
type LongTermMemory interface {
	// Record persists the given messages for later retrieval.
	Record(ctx context.Context, msgs []*message.Msg) error

	// Retrieve returns context relevant to the given message as plain text,
	// or "" when nothing relevant is stored.
	Retrieve(ctx context.Context, msg *message.Msg) (string, error)

	// Search performs a free-form query returning up to limit results.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}
