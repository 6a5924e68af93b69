// Package message defines the immutable unit of conversation exchange: the
// Msg type plus the closed set of content blocks a Msg can carry. Messages are
// identified solely by their id; two Msg values with the same id are the same
// message regardless of other fields.
package message

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampFormat is the wall clock layout used on messages and tool responses.
const TimestampFormat = "2006-01-02 15:04:05.000"

// Role identifies the conversational role of a message sender.
type Role string

// The closed set of accepted roles. No other value is accepted at
// construction or on mutation.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Validate reports whether the role is one of the three accepted values.
func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return nil
	default:
		return fmt.Errorf("role must be one of: user, assistant, system (got %q)", string(r))
	}
}

// Msg is a single message in a conversation. Content is either a plain string
// or an ordered []ContentBlock. Msg values are immutable in practice once
// created; the setters exist for state transfer but are not used by the core
// loop.
type Msg struct {
	id           string
	name         string
	role         Role
	content      any // string or []ContentBlock
	metadata     map[string]any
	timestamp    string
	invocationID string
}

// New creates a message with a generated id and the current timestamp.
// The role is validated immediately; an invalid role fails construction.
func New(name string, content any, role Role) (*Msg, error) {
	if err := role.Validate(); err != nil {
		return nil, err
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	return &Msg{
		id:        uuid.NewString(),
		name:      name,
		role:      role,
		content:   content,
		timestamp: time.Now().Format(TimestampFormat),
	}, nil
}

// MustNew is New for contents the caller knows are valid; it panics on an
// invalid role or content shape. Intended for literals in tests and wiring.
func MustNew(name string, content any, role Role) *Msg {
	m, err := New(name, content, role)
	if err != nil {
		panic(err)
	}
	return m
}

func validateContent(content any) error {
	switch content.(type) {
	case string, []ContentBlock, nil:
		return nil
	default:
		return fmt.Errorf("content must be a string or []ContentBlock, got %T", content)
	}
}

// ID returns the opaque unique identifier of the message.
func (m *Msg) ID() string { return m.id }

// Name returns the sender name.
func (m *Msg) Name() string { return m.name }

// Role returns the conversational role.
func (m *Msg) Role() Role { return m.role }

// Content returns the raw content (string or []ContentBlock).
func (m *Msg) Content() any { return m.content }

// Metadata returns the optional metadata map (may be nil).
func (m *Msg) Metadata() map[string]any { return m.metadata }

// Timestamp returns the creation timestamp in TimestampFormat.
func (m *Msg) Timestamp() string { return m.timestamp }

// InvocationID returns the correlation id of the API invocation that produced
// this message, or "" when not set.
func (m *Msg) InvocationID() string { return m.invocationID }

// SetName updates the sender name.
func (m *Msg) SetName(name string) { m.name = name }

// SetRole updates the role, re-validating against the closed set.
func (m *Msg) SetRole(role Role) error {
	if err := role.Validate(); err != nil {
		return err
	}
	m.role = role
	return nil
}

// SetContent replaces the content, enforcing the string-or-blocks shape.
func (m *Msg) SetContent(content any) error {
	if err := validateContent(content); err != nil {
		return err
	}
	m.content = content
	return nil
}

// SetMetadata replaces the metadata map.
func (m *Msg) SetMetadata(md map[string]any) { m.metadata = md }

// SetInvocationID sets the API invocation correlation id.
func (m *Msg) SetInvocationID(id string) { m.invocationID = id }

// TextContent gathers the text of the message: the content itself when it is
// a plain string, otherwise the concatenation of all text blocks. Returns ""
// when there is no text.
func (m *Msg) TextContent() string {
	switch c := m.content.(type) {
	case string:
		return c
	case []ContentBlock:
		var sb strings.Builder
		for _, b := range c {
			if tb, ok := b.(TextBlock); ok {
				sb.WriteString(tb.Text)
			}
		}
		return sb.String()
	default:
		return ""
	}
}

// ContentBlocks returns the blocks whose discriminant matches kind, or all
// blocks when kind is "". Plain string content yields no blocks.
func (m *Msg) ContentBlocks(kind string) []ContentBlock {
	blocks, ok := m.content.([]ContentBlock)
	if !ok {
		return nil
	}
	if kind == "" {
		out := make([]ContentBlock, len(blocks))
		copy(out, blocks)
		return out
	}
	var out []ContentBlock
	for _, b := range blocks {
		if b.BlockType() == kind {
			out = append(out, b)
		}
	}
	return out
}

// HasContentBlocks reports whether the message carries at least one block of
// the given kind ("" for any kind).
func (m *Msg) HasContentBlocks(kind string) bool {
	return len(m.ContentBlocks(kind)) > 0
}

// Equal reports identity: two messages are equal iff their ids match.
func (m *Msg) Equal(other *Msg) bool {
	return other != nil && m.id == other.id
}

// ToMap converts the message into a flat key/value mapping for serialization,
// logging or state transfer. Block content is flattened via BlockToMap.
func (m *Msg) ToMap() map[string]any {
	content := m.content
	if blocks, ok := m.content.([]ContentBlock); ok {
		content = BlocksToMaps(blocks)
	}
	dict := map[string]any{
		"id":        m.id,
		"name":      m.name,
		"role":      string(m.role),
		"content":   content,
		"metadata":  m.metadata,
		"timestamp": m.timestamp,
	}
	if m.invocationID != "" {
		dict["invocationId"] = m.invocationID
	}
	return dict
}

// FromMap reconstructs a message from its ToMap form. The id is preserved
// when present, otherwise a fresh one is generated. The role is validated the
// same way construction validates it.
func FromMap(data map[string]any) (*Msg, error) {
	name, _ := data["name"].(string)
	role, _ := data["role"].(string)

	content := data["content"]
	switch c := content.(type) {
	case []map[string]any:
		content = BlocksFromMaps(c)
	case []any:
		maps := make([]map[string]any, 0, len(c))
		for _, raw := range c {
			if m, ok := raw.(map[string]any); ok {
				maps = append(maps, m)
			}
		}
		if len(maps) == len(c) {
			content = BlocksFromMaps(maps)
		}
	}

	msg, err := New(name, content, Role(role))
	if err != nil {
		return nil, err
	}
	if md, ok := data["metadata"].(map[string]any); ok {
		msg.metadata = md
	}
	if ts, ok := data["timestamp"].(string); ok && ts != "" {
		msg.timestamp = ts
	}
	if id, ok := data["id"].(string); ok && id != "" {
		msg.id = id
	}
	if inv, ok := data["invocationId"].(string); ok {
		msg.invocationID = inv
	}
	return msg, nil
}

// String implements fmt.Stringer with a compact identity form.
func (m *Msg) String() string {
	return fmt.Sprintf("Msg{id=%q, name=%q, role=%q, timestamp=%q}", m.id, m.name, m.role, m.timestamp)
}
