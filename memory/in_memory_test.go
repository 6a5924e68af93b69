package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reagent/message"
)

func userMsg(text string) *message.Msg {
	return message.MustNew("user", text, message.RoleUser)
}

// -------------------- Capacity Tests --------------------

func TestAdd_AutoTruncateKeepsNewest(t *testing.T) {
	m := NewInMemoryMemory(func(o *InMemoryOptions) {
		o.Capacity = 10
	})

	for i := 0; i < 1000; i++ {
		assert.True(t, m.Add(userMsg(fmt.Sprintf("msg-%d", i))))
	}

	assert.Equal(t, 10, m.Size())
	all := m.All()
	require.Len(t, all, 10)
	assert.Equal(t, "msg-990", all[0].TextContent())
	assert.Equal(t, "msg-999", all[9].TextContent())
}

func TestAdd_RejectsOnOverflowWithoutAutoTruncate(t *testing.T) {
	m := NewInMemoryMemory(func(o *InMemoryOptions) {
		o.Capacity = 2
		o.AutoTruncate = false
	})

	assert.True(t, m.Add(userMsg("a")))
	assert.True(t, m.Add(userMsg("b")))
	assert.False(t, m.Add(userMsg("c")))

	assert.Equal(t, 2, m.Size())
	assert.Equal(t, "b", m.All()[1].TextContent())
}

func TestAdd_NilIgnored(t *testing.T) {
	m := NewInMemoryMemory()
	assert.False(t, m.Add(nil))
	assert.Equal(t, 0, m.Size())
}

// -------------------- Query Tests --------------------

func TestRecent_Edges(t *testing.T) {
	m := NewInMemoryMemory()
	for i := 0; i < 5; i++ {
		m.Add(userMsg(fmt.Sprintf("m%d", i)))
	}

	assert.Empty(t, m.Recent(0))
	assert.Empty(t, m.Recent(-1))
	assert.Len(t, m.Recent(3), 3)
	assert.Equal(t, "m2", m.Recent(3)[0].TextContent())
	assert.Len(t, m.Recent(5), 5)
	assert.Len(t, m.Recent(50), 5)
}

func TestByRoleAndFilter(t *testing.T) {
	m := NewInMemoryMemory()
	m.Add(message.MustNew("user", "question", message.RoleUser))
	m.Add(message.MustNew("agent", "answer one", message.RoleAssistant))
	m.Add(message.MustNew("agent", "answer two", message.RoleAssistant))

	assert.Len(t, m.ByRole(message.RoleAssistant), 2)
	assert.Len(t, m.ByRole(message.RoleSystem), 0)

	got := m.Filter(Filter{Role: message.RoleAssistant, ContainsText: "two"})
	require.Len(t, got, 1)
	assert.Equal(t, "answer two", got[0].TextContent())

	got = m.Filter(Filter{Name: "user"})
	require.Len(t, got, 1)
	assert.Equal(t, "question", got[0].TextContent())
}

func TestFilter_MalformedTimestampNeverMatchesComparisons(t *testing.T) {
	m := NewInMemoryMemory()

	broken, err := message.FromMap(map[string]any{
		"name":      "user",
		"role":      "user",
		"content":   "broken clock",
		"timestamp": "not-a-timestamp",
	})
	require.NoError(t, err)
	m.Add(broken)

	assert.Empty(t, m.Filter(Filter{Before: "2999-01-01 00:00:00.000"}))
	assert.Empty(t, m.Filter(Filter{After: "1999-01-01 00:00:00.000"}))
	assert.Equal(t, 0, m.RemoveOlderThan("2999-01-01 00:00:00.000"))
	assert.Equal(t, 1, m.Size())
}

// -------------------- Mutation Tests --------------------

func TestRemoveByID(t *testing.T) {
	m := NewInMemoryMemory()
	msg := userMsg("target")
	m.Add(userMsg("keep"))
	m.Add(msg)

	assert.True(t, m.RemoveByID(msg.ID()))
	assert.False(t, m.RemoveByID(msg.ID()))
	assert.Equal(t, 1, m.Size())
}

func TestTruncateToRecent(t *testing.T) {
	m := NewInMemoryMemory()
	for i := 0; i < 5; i++ {
		m.Add(userMsg(fmt.Sprintf("m%d", i)))
	}

	assert.Equal(t, 0, m.TruncateToRecent(10))
	assert.Equal(t, 3, m.TruncateToRecent(2))
	require.Equal(t, 2, m.Size())
	assert.Equal(t, "m3", m.All()[0].TextContent())
	assert.Equal(t, 0, m.TruncateToRecent(-1))
}

func TestClear(t *testing.T) {
	m := NewInMemoryMemory()
	m.Add(userMsg("a"))
	m.Clear()
	assert.Equal(t, 0, m.Size())
	assert.Empty(t, m.All())
}

// -------------------- Long-Term Memory Tests --------------------

func TestLongTermMemory_RecordSearchRetrieve(t *testing.T) {
	ctx := context.Background()
	ltm := NewInMemoryLongTermMemory()

	err := ltm.Record(ctx, []*message.Msg{
		message.MustNew("agent", "the user likes coffee", message.RoleAssistant),
		message.MustNew("agent", "the user dislikes tea", message.RoleAssistant),
		message.MustNew("agent", nil, message.RoleAssistant), // no text, skipped
	})
	require.NoError(t, err)

	results, err := ltm.Search(ctx, "coffee", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "the user likes coffee", results[0].Content)
	assert.Equal(t, 1.0, results[0].Score)

	// empty query matches everything, bounded by limit
	results, err = ltm.Search(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	retrieved, err := ltm.Retrieve(ctx, message.MustNew("user", "coffee", message.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, "the user likes coffee", retrieved)

	retrieved, err = ltm.Retrieve(ctx, message.MustNew("user", "sushi", message.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, "", retrieved)
}
