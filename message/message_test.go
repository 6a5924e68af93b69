package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- Construction Tests --------------------

func TestNew_ValidRoles(t *testing.T) {
	for _, role := range []Role{RoleUser, RoleAssistant, RoleSystem} {
		msg, err := New("alice", "hi", role)
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID())
		assert.Equal(t, "alice", msg.Name())
		assert.Equal(t, role, msg.Role())
		assert.NotEmpty(t, msg.Timestamp())
	}
}

func TestNew_InvalidRole(t *testing.T) {
	_, err := New("alice", "hi", Role("tool"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role must be one of")
}

func TestNew_InvalidContentShape(t *testing.T) {
	_, err := New("alice", 42, RoleUser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content must be a string or []ContentBlock")
}

func TestSetRole_Revalidates(t *testing.T) {
	msg := MustNew("alice", "hi", RoleUser)
	require.NoError(t, msg.SetRole(RoleAssistant))
	assert.Equal(t, RoleAssistant, msg.Role())
	assert.Error(t, msg.SetRole(Role("bogus")))
	assert.Equal(t, RoleAssistant, msg.Role())
}

// -------------------- Content Tests --------------------

func TestTextContent(t *testing.T) {
	plain := MustNew("alice", "hello", RoleUser)
	assert.Equal(t, "hello", plain.TextContent())

	blocks := MustNew("alice", []ContentBlock{
		TextBlock{Text: "hello "},
		ThinkingBlock{Thinking: "hmm"},
		TextBlock{Text: "world"},
	}, RoleAssistant)
	assert.Equal(t, "hello world", blocks.TextContent())

	empty := MustNew("alice", nil, RoleUser)
	assert.Equal(t, "", empty.TextContent())
}

func TestContentBlocks_FilterByKind(t *testing.T) {
	msg := MustNew("alice", []ContentBlock{
		TextBlock{Text: "a"},
		ToolUseBlock{ID: "c1", Name: "echo", Input: map[string]any{"message": "x"}},
		TextBlock{Text: "b"},
	}, RoleAssistant)

	assert.Len(t, msg.ContentBlocks(""), 3)
	assert.Len(t, msg.ContentBlocks(BlockTypeText), 2)
	assert.Len(t, msg.ContentBlocks(BlockTypeToolUse), 1)
	assert.Empty(t, msg.ContentBlocks(BlockTypeImage))
	assert.True(t, msg.HasContentBlocks(BlockTypeToolUse))
	assert.False(t, msg.HasContentBlocks(BlockTypeThinking))

	// string content has no blocks
	plain := MustNew("alice", "hi", RoleUser)
	assert.Nil(t, plain.ContentBlocks(""))
}

// -------------------- Identity Tests --------------------

func TestEqual_ByIDOnly(t *testing.T) {
	a := MustNew("alice", "hi", RoleUser)
	b := MustNew("alice", "hi", RoleUser)
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(nil))

	// same id, different fields
	clone, err := FromMap(a.ToMap())
	require.NoError(t, err)
	clone.SetName("bob")
	assert.True(t, a.Equal(clone))
}

// -------------------- Round-Trip Tests --------------------

func TestToMapFromMap_RoundTrip(t *testing.T) {
	msg := MustNew("alice", "hello", RoleUser)
	msg.SetMetadata(map[string]any{"lang": "en"})
	msg.SetInvocationID("inv-1")

	got, err := FromMap(msg.ToMap())
	require.NoError(t, err)

	assert.Equal(t, msg.ID(), got.ID())
	assert.Equal(t, msg.Name(), got.Name())
	assert.Equal(t, msg.Role(), got.Role())
	assert.Equal(t, msg.TextContent(), got.TextContent())
	assert.Equal(t, msg.Timestamp(), got.Timestamp())
	assert.Equal(t, msg.InvocationID(), got.InvocationID())
	assert.Equal(t, "en", got.Metadata()["lang"])
}

func TestToMapFromMap_RoundTripBlocks(t *testing.T) {
	msg := MustNew("agent", []ContentBlock{
		TextBlock{Text: "calling"},
		ToolUseBlock{ID: "c1", Name: "echo", Input: map[string]any{"message": "x"}},
		ToolResultBlock{ID: "c1", Output: "x"},
	}, RoleAssistant)

	got, err := FromMap(msg.ToMap())
	require.NoError(t, err)

	blocks := got.ContentBlocks("")
	require.Len(t, blocks, 3)
	assert.Equal(t, TextBlock{Text: "calling"}, blocks[0])

	tu, ok := blocks[1].(ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "c1", tu.ID)
	assert.Equal(t, "echo", tu.Name)
	assert.Equal(t, "x", tu.Input["message"])

	tr, ok := blocks[2].(ToolResultBlock)
	require.True(t, ok)
	assert.Equal(t, "c1", tr.ID)
	assert.Equal(t, "x", tr.Output)
}

func TestFromMap_GeneratesIDWhenMissing(t *testing.T) {
	got, err := FromMap(map[string]any{
		"name":    "alice",
		"role":    "user",
		"content": "hi",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID())
	assert.Equal(t, "hi", got.TextContent())
}

func TestFromMap_InvalidRole(t *testing.T) {
	_, err := FromMap(map[string]any{"name": "x", "role": "robot", "content": "hi"})
	assert.Error(t, err)
}

// -------------------- Block Mapping Tests --------------------

func TestBlockFromMap_PreservesUnknownTags(t *testing.T) {
	raw := map[string]any{"type": "custom_widget", "payload": "abc"}
	block := BlockFromMap(raw)

	rb, ok := block.(RawBlock)
	require.True(t, ok)
	assert.Equal(t, "custom_widget", rb.BlockType())

	back := BlockToMap(block)
	assert.Equal(t, "custom_widget", back["type"])
	assert.Equal(t, "abc", back["payload"])
}

func TestMediaBlocks_SourceVariants(t *testing.T) {
	img := ImageBlock{Source: URLSource{URL: "https://example.com/cat.png"}}
	back := BlockFromMap(BlockToMap(img))

	gotImg, ok := back.(ImageBlock)
	require.True(t, ok)
	src, ok := gotImg.Source.(URLSource)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/cat.png", src.URL)

	audio := AudioBlock{Source: Base64Source{MediaType: "audio/wav", Data: "UklGRg=="}}
	back = BlockFromMap(BlockToMap(audio))

	gotAudio, ok := back.(AudioBlock)
	require.True(t, ok)
	b64, ok := gotAudio.Source.(Base64Source)
	require.True(t, ok)
	assert.Equal(t, "audio/wav", b64.MediaType)
	assert.Equal(t, "UklGRg==", b64.Data)
}
