package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/reagent/message"
)

// storedEntry is the internal representation persisted by
// InMemoryLongTermMemory.
type storedEntry struct {
	id       string
	content  string
	metadata map[string]any
}

// InMemoryLongTermMemory is a naive process-local LongTermMemory. Search is a
// linear scan with substring matching assigning a constant score of 1.0 to
// every hit. Suitable for tests and demos; swap for a vector store or
// semantic index for production retrieval.
type InMemoryLongTermMemory struct {
	mu      sync.RWMutex
	entries []storedEntry
}

// NewInMemoryLongTermMemory creates an empty store.
func NewInMemoryLongTermMemory() *InMemoryLongTermMemory {
	return &InMemoryLongTermMemory{}
}

// Record appends the text content of each message, generating a simple
// incremental id per entry. Messages without text are skipped.
func (m *InMemoryLongTermMemory) Record(_ context.Context, msgs []*message.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range msgs {
		text := msg.TextContent()
		if text == "" {
			continue
		}
		m.entries = append(m.entries, storedEntry{
			id:      fmt.Sprintf("mem_%d", len(m.entries)),
			content: text,
			metadata: map[string]any{
				"role": string(msg.Role()),
				"name": msg.Name(),
			},
		})
	}
	return nil
}

// Retrieve returns the stored entries containing the message text, joined by
// newlines, or "" when nothing matches.
func (m *InMemoryLongTermMemory) Retrieve(ctx context.Context, msg *message.Msg) (string, error) {
	if msg == nil {
		return "", nil
	}
	results, err := m.Search(ctx, msg.TextContent(), 5)
	if err != nil {
		return "", err
	}
	contents := make([]string, 0, len(results))
	for _, r := range results {
		contents = append(contents, r.Content)
	}
	return strings.Join(contents, "\n"), nil
}

// Search performs a substring match over stored entries in insertion order up
// to limit. An empty query matches everything.
func (m *InMemoryLongTermMemory) Search(_ context.Context, query string, limit int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, limit)
	for _, e := range m.entries {
		if limit > 0 && len(results) >= limit {
			break
		}
		if query != "" && !strings.Contains(e.content, query) {
			continue
		}
		md := make(map[string]any, len(e.metadata))
		for k, v := range e.metadata {
			md[k] = v
		}
		results = append(results, SearchResult{ID: e.id, Content: e.content, Score: 1.0, Metadata: md})
	}
	return results, nil
}
