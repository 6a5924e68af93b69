// Package anthropic provides an implementation of model.Model using the
// Anthropic Messages API (including function/tool calling). Histories are
// rendered directly into SDK message params; system messages travel in the
// dedicated system field, thinking blocks are surfaced on the way back.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/reagent/message"
	"github.com/hupe1980/reagent/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string

	// CallTimeout bounds a single API call. Zero means no adapter-level bound;
	// the caller's context still applies.
	CallTimeout time.Duration
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Call implements model.Model.
func (m *Model) Call(
	ctx context.Context,
	msgs []*message.Msg,
	tools []map[string]any,
	toolChoice model.ToolChoice,
	_ map[string]any,
) (*model.ChatResponse, error) {
	if err := toolChoice.Validate(tools); err != nil {
		return nil, err
	}

	if m.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.CallTimeout)
		defer cancel()
	}

	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(msgs),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if systemBlocks := extractSystemBlocks(msgs); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
		if choice, ok := buildToolChoice(toolChoice); ok {
			params.ToolChoice = choice
		}
	}

	start := time.Now()
	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	blocks, err := parseContent(resp.Content)
	if err != nil {
		return nil, err
	}

	out := model.NewChatResponse(blocks)
	out.ID = resp.ID
	out.Usage = &model.ChatUsage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		Time:         time.Since(start).Seconds(),
	}
	return out, nil
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}

// buildMessages converts the history into Anthropic message params. System
// messages are handled separately; tool results become user-role tool_result
// blocks as the Messages API requires. Thinking blocks are not replayed.
func buildMessages(msgs []*message.Msg) []anthropic.MessageParam {
	var out []anthropic.MessageParam

	for _, msg := range msgs {
		if msg.Role() == message.RoleSystem {
			continue
		}

		if results := msg.ContentBlocks(message.BlockTypeToolResult); len(results) > 0 {
			content := make([]anthropic.ContentBlockParamUnion, 0, len(results))
			for _, b := range results {
				tr := b.(message.ToolResultBlock)
				content = append(content, anthropic.NewToolResultBlock(tr.ID, toolResultText(tr), false))
			}
			out = append(out, anthropic.NewUserMessage(content...))
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if text := msg.TextContent(); text != "" {
			content = append(content, anthropic.NewTextBlock(text))
		}
		for _, b := range msg.ContentBlocks(message.BlockTypeToolUse) {
			tu := b.(message.ToolUseBlock)
			content = append(content, anthropic.NewToolUseBlock(tu.ID, tu.Input, tu.Name))
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role() == message.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}

	return out
}

// extractSystemBlocks gathers system message text for the system field.
func extractSystemBlocks(msgs []*message.Msg) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range msgs {
		if msg.Role() != message.RoleSystem {
			continue
		}
		if text := msg.TextContent(); text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: text})
		}
	}
	return blocks
}

// buildTools converts generic tool schemas into Anthropic tool params.
func buildTools(tools []map[string]any) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))

	for _, schema := range tools {
		fn, _ := schema["function"].(map[string]any)
		name, _ := fn["name"].(string)
		parameters, _ := fn["parameters"].(map[string]any)

		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if parameters != nil {
			if properties, exists := parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					var names []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							names = append(names, s)
						}
					}
					inputSchema.Required = names
				}
			}
		}

		out = append(out, anthropic.ToolUnionParamOfTool(inputSchema, name))
	}

	return out
}

// buildToolChoice maps the normalized tool choice onto the SDK union.
// "required" has no Messages API equivalent and maps to "any". The empty
// choice leaves the provider default in place.
func buildToolChoice(choice model.ToolChoice) (anthropic.ToolChoiceUnionParam, bool) {
	switch choice {
	case "":
		return anthropic.ToolChoiceUnionParam{}, false
	case model.ToolChoiceAuto:
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}, true
	case model.ToolChoiceNone:
		return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}, true
	case model.ToolChoiceAny, model.ToolChoiceRequired:
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}, true
	default:
		return anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: string(choice)},
		}, true
	}
}

// parseContent lifts response content blocks into the normalized union.
func parseContent(content []anthropic.ContentBlockUnion) ([]message.ContentBlock, error) {
	var blocks []message.ContentBlock

	for i := range content {
		block := &content[i]
		switch block.Type {
		case "text":
			textBlock := block.AsText()
			if textBlock.Text != "" {
				blocks = append(blocks, message.TextBlock{Text: textBlock.Text})
			}
		case "thinking":
			thinkingBlock := block.AsThinking()
			if thinkingBlock.Thinking != "" {
				blocks = append(blocks, message.ThinkingBlock{Thinking: thinkingBlock.Thinking})
			}
		case "tool_use":
			toolBlock := block.AsToolUse()
			var input map[string]any
			if len(toolBlock.Input) > 0 {
				if err := json.Unmarshal(toolBlock.Input, &input); err != nil {
					return nil, fmt.Errorf("unmarshal tool input for %q: %w", toolBlock.Name, err)
				}
			}
			blocks = append(blocks, message.ToolUseBlock{
				ID:    toolBlock.ID,
				Name:  toolBlock.Name,
				Input: input,
			})
		}
	}

	return blocks, nil
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
