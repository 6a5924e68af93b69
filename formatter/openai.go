package formatter

import (
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/reagent/message"
)

// OpenAIFormatterOptions configure the OpenAI chat formatter.
type OpenAIFormatterOptions struct {
	// MaxTokens bounds the estimated history size (-1 = unlimited). When the
	// estimate exceeds the bound the oldest non-system messages are dropped.
	MaxTokens int

	// AssistantName is the sender name given to parsed responses.
	AssistantName string
}

// OpenAIFormatter renders histories into OpenAI Chat Completions message
// params and parses completions back into messages. It supports tool calls
// and streaming but not multimodal content.
type OpenAIFormatter struct {
	opts OpenAIFormatterOptions
}

// NewOpenAIFormatter creates a formatter with unlimited token budget.
func NewOpenAIFormatter(optFns ...func(o *OpenAIFormatterOptions)) *OpenAIFormatter {
	opts := OpenAIFormatterOptions{
		MaxTokens:     -1,
		AssistantName: "assistant",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &OpenAIFormatter{opts: opts}
}

// Capabilities implements Formatter.
func (f *OpenAIFormatter) Capabilities() Capabilities {
	return Capabilities{
		Streaming:  true,
		ToolCalls:  true,
		Multimodal: false,
		MaxTokens:  f.opts.MaxTokens,
	}
}

// Format implements Formatter, producing []openai.ChatCompletionMessageParamUnion.
func (f *OpenAIFormatter) Format(msgs []*message.Msg, _ map[string]any) (any, error) {
	if err := ValidateMessages(msgs, f.Capabilities()); err != nil {
		return nil, err
	}
	msgs = TruncateMessages(msgs, f.opts.MaxTokens)

	var out []openai.ChatCompletionMessageParamUnion
	for _, msg := range msgs {
		params, err := f.formatMsg(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, params...)
	}
	return out, nil
}

// formatMsg renders one message. Assistant messages carrying tool_use blocks
// become an assistant turn with tool calls; tool_result blocks become tool
// role messages correlated by call id; everything else is plain text in its
// role.
func (f *OpenAIFormatter) formatMsg(msg *message.Msg) ([]openai.ChatCompletionMessageParamUnion, error) {
	if results := msg.ContentBlocks(message.BlockTypeToolResult); len(results) > 0 {
		out := make([]openai.ChatCompletionMessageParamUnion, 0, len(results))
		for _, b := range results {
			tr := b.(message.ToolResultBlock)
			out = append(out, openai.ToolMessage(toolResultText(tr), tr.ID))
		}
		return out, nil
	}

	text := msg.TextContent()

	if uses := msg.ContentBlocks(message.BlockTypeToolUse); len(uses) > 0 {
		toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(uses))
		for _, b := range uses {
			tu := b.(message.ToolUseBlock)
			args, err := json.Marshal(tu.Input)
			if err != nil {
				return nil, fmt.Errorf("marshal tool input for %q: %w", tu.Name, err)
			}
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID:   tu.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tu.Name,
					Arguments: string(args),
				},
			})
		}
		return []openai.ChatCompletionMessageParamUnion{{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: toolCalls,
			},
		}}, nil
	}

	switch msg.Role() {
	case message.RoleSystem:
		return []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(text)}, nil
	case message.RoleAssistant:
		return []openai.ChatCompletionMessageParamUnion{openai.AssistantMessage(text)}, nil
	default:
		return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(text)}, nil
	}
}

// ParseResponse implements Formatter. It accepts an *openai.ChatCompletion
// and lifts the first choice into an assistant Msg.
func (f *OpenAIFormatter) ParseResponse(payload any) (*message.Msg, error) {
	completion, ok := payload.(*openai.ChatCompletion)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T, want *openai.ChatCompletion", payload)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion %s", completion.ID)
	}

	choice := completion.Choices[0]
	blocks := make([]message.ContentBlock, 0, len(choice.Message.ToolCalls)+1)
	if choice.Message.Content != "" {
		blocks = append(blocks, message.TextBlock{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		var input map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				return nil, fmt.Errorf("unmarshal tool arguments for %q: %w", tc.Function.Name, err)
			}
		}
		blocks = append(blocks, message.ToolUseBlock{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}

	msg, err := message.New(f.opts.AssistantName, blocks, message.RoleAssistant)
	if err != nil {
		return nil, err
	}
	msg.SetInvocationID(completion.ID)
	return msg, nil
}

func toolResultText(tr message.ToolResultBlock) string {
	switch out := tr.Output.(type) {
	case string:
		return out
	case []message.ContentBlock:
		var text string
		for _, b := range out {
			if tb, ok := b.(message.TextBlock); ok {
				text += tb.Text
			}
		}
		return text
	default:
		return fmt.Sprintf("%v", out)
	}
}
