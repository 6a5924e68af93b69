package message

// ContentBlock represents one typed unit of message content. Concrete block
// types implement the unexported isBlock marker enabling a closed set; the
// BlockType discriminant is always present and consistent with the shape.
type ContentBlock interface {
	// BlockType returns the discriminant tag ("text", "tool_use", ...).
	BlockType() string

	isBlock()
}

// Block type discriminants.
const (
	BlockTypeText       = "text"
	BlockTypeThinking   = "thinking"
	BlockTypeImage      = "image"
	BlockTypeAudio      = "audio"
	BlockTypeVideo      = "video"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// TextBlock is a plain text content segment.
type TextBlock struct {
	Text string `json:"text"`
}

// BlockType returns the discriminant tag for TextBlock.
func (TextBlock) BlockType() string { return BlockTypeText }

func (TextBlock) isBlock() {}

// ThinkingBlock carries model reasoning that is displayed separately from the
// final answer text.
type ThinkingBlock struct {
	Thinking string `json:"thinking"`
}

// BlockType returns the discriminant tag for ThinkingBlock.
func (ThinkingBlock) BlockType() string { return BlockTypeThinking }

func (ThinkingBlock) isBlock() {}

// ImageBlock is an image content segment.
type ImageBlock struct {
	Source Source `json:"source"`
}

// BlockType returns the discriminant tag for ImageBlock.
func (ImageBlock) BlockType() string { return BlockTypeImage }

func (ImageBlock) isBlock() {}

// AudioBlock is an audio content segment.
type AudioBlock struct {
	Source Source `json:"source"`
}

// BlockType returns the discriminant tag for AudioBlock.
func (AudioBlock) BlockType() string { return BlockTypeAudio }

func (AudioBlock) isBlock() {}

// VideoBlock is a video content segment.
type VideoBlock struct {
	Source Source `json:"source"`
}

// BlockType returns the discriminant tag for VideoBlock.
func (VideoBlock) BlockType() string { return BlockTypeVideo }

func (VideoBlock) isBlock() {}

// ToolUseBlock describes a tool invocation requested by the model.
type ToolUseBlock struct {
	ID    string         `json:"id"`    // Call id correlating use and result
	Name  string         `json:"name"`  // Tool name
	Input map[string]any `json:"input"` // Structured arguments
}

// BlockType returns the discriminant tag for ToolUseBlock.
func (ToolUseBlock) BlockType() string { return BlockTypeToolUse }

func (ToolUseBlock) isBlock() {}

// ToolResultBlock carries the outcome of a tool invocation. Output is either
// plain text or a nested []ContentBlock.
type ToolResultBlock struct {
	ID     string `json:"id"` // Matches the originating ToolUseBlock ID
	Output any    `json:"output"`
}

// BlockType returns the discriminant tag for ToolResultBlock.
func (ToolResultBlock) BlockType() string { return BlockTypeToolResult }

func (ToolResultBlock) isBlock() {}

// RawBlock preserves a block whose discriminant tag is not part of the known
// set. Collaborator formats that require strictness can reject it; the core
// keeps it opaquely instead of dropping it.
type RawBlock struct {
	Type   string
	Fields map[string]any
}

// BlockType returns the preserved discriminant tag.
func (b RawBlock) BlockType() string { return b.Type }

func (RawBlock) isBlock() {}

// Source is the media payload variant carried by image/audio/video blocks.
type Source interface {
	// SourceType returns the discriminant tag ("base64" or "url").
	SourceType() string

	isSource()
}

// Base64Source is an inlined media payload.
type Base64Source struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"` // Base64 encoded contents
}

// SourceType returns the discriminant tag for Base64Source.
func (Base64Source) SourceType() string { return "base64" }

func (Base64Source) isSource() {}

// URLSource references media available at an external URL.
type URLSource struct {
	URL string `json:"url"`
}

// SourceType returns the discriminant tag for URLSource.
func (URLSource) SourceType() string { return "url" }

func (URLSource) isSource() {}

// BlockToMap converts a block into its flat map form with the "type"
// discriminant set, suitable for serialization and provider payloads.
func BlockToMap(b ContentBlock) map[string]any {
	switch v := b.(type) {
	case TextBlock:
		return map[string]any{"type": BlockTypeText, "text": v.Text}
	case ThinkingBlock:
		return map[string]any{"type": BlockTypeThinking, "thinking": v.Thinking}
	case ImageBlock:
		return map[string]any{"type": BlockTypeImage, "source": sourceToMap(v.Source)}
	case AudioBlock:
		return map[string]any{"type": BlockTypeAudio, "source": sourceToMap(v.Source)}
	case VideoBlock:
		return map[string]any{"type": BlockTypeVideo, "source": sourceToMap(v.Source)}
	case ToolUseBlock:
		return map[string]any{"type": BlockTypeToolUse, "id": v.ID, "name": v.Name, "input": v.Input}
	case ToolResultBlock:
		out := v.Output
		if blocks, ok := out.([]ContentBlock); ok {
			out = BlocksToMaps(blocks)
		}
		return map[string]any{"type": BlockTypeToolResult, "id": v.ID, "output": out}
	case RawBlock:
		m := make(map[string]any, len(v.Fields)+1)
		for k, val := range v.Fields {
			m[k] = val
		}
		m["type"] = v.Type
		return m
	default:
		return map[string]any{"type": b.BlockType()}
	}
}

// BlockFromMap reconstructs a block from its flat map form. Unknown
// discriminants yield a RawBlock; a missing discriminant is treated as text.
func BlockFromMap(m map[string]any) ContentBlock {
	t, _ := m["type"].(string)
	switch t {
	case BlockTypeText:
		text, _ := m["text"].(string)
		return TextBlock{Text: text}
	case BlockTypeThinking:
		thinking, _ := m["thinking"].(string)
		return ThinkingBlock{Thinking: thinking}
	case BlockTypeImage:
		return ImageBlock{Source: sourceFromMap(m["source"])}
	case BlockTypeAudio:
		return AudioBlock{Source: sourceFromMap(m["source"])}
	case BlockTypeVideo:
		return VideoBlock{Source: sourceFromMap(m["source"])}
	case BlockTypeToolUse:
		id, _ := m["id"].(string)
		name, _ := m["name"].(string)
		input, _ := m["input"].(map[string]any)
		return ToolUseBlock{ID: id, Name: name, Input: input}
	case BlockTypeToolResult:
		id, _ := m["id"].(string)
		return ToolResultBlock{ID: id, Output: m["output"]}
	default:
		fields := make(map[string]any, len(m))
		for k, v := range m {
			if k == "type" {
				continue
			}
			fields[k] = v
		}
		return RawBlock{Type: t, Fields: fields}
	}
}

// BlocksToMaps converts an ordered block sequence into its map form.
func BlocksToMaps(blocks []ContentBlock) []map[string]any {
	maps := make([]map[string]any, len(blocks))
	for i, b := range blocks {
		maps[i] = BlockToMap(b)
	}
	return maps
}

// BlocksFromMaps reconstructs an ordered block sequence from map form.
func BlocksFromMaps(maps []map[string]any) []ContentBlock {
	blocks := make([]ContentBlock, len(maps))
	for i, m := range maps {
		blocks[i] = BlockFromMap(m)
	}
	return blocks
}

func sourceToMap(s Source) map[string]any {
	switch v := s.(type) {
	case Base64Source:
		return map[string]any{"type": "base64", "media_type": v.MediaType, "data": v.Data}
	case URLSource:
		return map[string]any{"type": "url", "url": v.URL}
	default:
		return nil
	}
}

func sourceFromMap(raw any) Source {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	t, _ := m["type"].(string)
	switch t {
	case "url":
		url, _ := m["url"].(string)
		return URLSource{URL: url}
	default:
		mediaType, _ := m["media_type"].(string)
		data, _ := m["data"].(string)
		return Base64Source{MediaType: mediaType, Data: data}
	}
}
