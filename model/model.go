// Package model defines the provider-agnostic capability the orchestrator
// consumes: a single Call over the conversation history plus tool schemas,
// returning a ChatResponse of content blocks. Providers (OpenAI, Anthropic,
// DashScope-compatible endpoints) implement the Model interface in their own
// subpackages so higher layers stay decoupled from vendor SDKs.
package model

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/reagent/message"
)

// ToolChoice constrains how the model may use the supplied tools. Beyond the
// four modes, a literal tool name forces that specific tool; the name must be
// present in the supplied schemas or Call fails at the boundary.
type ToolChoice string

// Tool choice modes.
const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceAny      ToolChoice = "any"
	ToolChoiceRequired ToolChoice = "required"
)

// Validate checks the choice against the supplied tool schemas. The empty
// choice is valid and means provider default. A literal name not present in
// tools is a contract violation reported here, never silently ignored.
func (c ToolChoice) Validate(tools []map[string]any) error {
	switch c {
	case "", ToolChoiceAuto, ToolChoiceNone, ToolChoiceAny, ToolChoiceRequired:
		return nil
	}

	available := make([]string, 0, len(tools))
	for _, schema := range tools {
		fn, _ := schema["function"].(map[string]any)
		if name, ok := fn["name"].(string); ok {
			if name == string(c) {
				return nil
			}
			available = append(available, name)
		}
	}
	return fmt.Errorf(
		"invalid tool_choice %q. Available options: auto, none, any, required, %v",
		string(c), available,
	)
}

// ChatUsage captures token accounting for one model call.
type ChatUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Time         float64 `json:"time"` // Elapsed seconds
}

// TotalTokens returns input plus output tokens.
func (u *ChatUsage) TotalTokens() int { return u.InputTokens + u.OutputTokens }

// ToMap converts the usage into its flat serialized form.
func (u *ChatUsage) ToMap() map[string]any {
	return map[string]any{
		"input_tokens":  u.InputTokens,
		"output_tokens": u.OutputTokens,
		"time":          u.Time,
		"type":          "chat",
	}
}

// UsageFromMap reconstructs usage from its ToMap form.
func UsageFromMap(data map[string]any) *ChatUsage {
	u := &ChatUsage{}
	u.InputTokens = intFrom(data["input_tokens"])
	u.OutputTokens = intFrom(data["output_tokens"])
	if t, ok := data["time"].(float64); ok {
		u.Time = t
	}
	return u
}

func intFrom(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// ChatResponse is the normalized result of one model call.
type ChatResponse struct {
	ID        string
	CreatedAt string
	Content   []message.ContentBlock // Ordered content blocks
	Usage     *ChatUsage
	Metadata  map[string]any
}

// NewChatResponse creates a response with a generated id and the current
// timestamp.
func NewChatResponse(content []message.ContentBlock) *ChatResponse {
	return &ChatResponse{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().Format(message.TimestampFormat),
		Content:   content,
	}
}

// TextContent concatenates the text blocks of the response.
func (r *ChatResponse) TextContent() string {
	var out string
	for _, b := range r.Content {
		if tb, ok := b.(message.TextBlock); ok {
			out += tb.Text
		}
	}
	return out
}

// ToolUseBlocks returns the tool invocation requests in the response, in
// order.
func (r *ChatResponse) ToolUseBlocks() []message.ToolUseBlock {
	var calls []message.ToolUseBlock
	for _, b := range r.Content {
		if tu, ok := b.(message.ToolUseBlock); ok {
			calls = append(calls, tu)
		}
	}
	return calls
}

// Model is the capability the orchestrator consumes. msgs is the ordered
// conversation history, tools the schemas surfaced to the model
// ({type: "function", function: {name, description, parameters}}), toolChoice
// an optional usage constraint, and options an open provider-specific map.
type Model interface {
	Call(
		ctx context.Context,
		msgs []*message.Msg,
		tools []map[string]any,
		toolChoice ToolChoice,
		options map[string]any,
	) (*ChatResponse, error)

	// Info returns metadata about the model implementation.
	Info() Info
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", ...
	SupportsTools bool   `json:"supports_tools"`
}
