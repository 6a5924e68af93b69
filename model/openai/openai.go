// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API (including function/tool calling). It delegates message
// rendering to the shared OpenAI formatter and maps the SDK response back into
// the normalized ChatResponse shape.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/reagent/formatter"
	"github.com/hupe1980/reagent/message"
	"github.com/hupe1980/reagent/model"
)

// Options configure the OpenAI model adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string

	// CallTimeout bounds a single API call. Zero means no adapter-level bound;
	// the caller's context still applies.
	CallTimeout time.Duration
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client    *openai.Client
	formatter *formatter.OpenAIFormatter
	opts      Options
}

// NewModel creates a new OpenAI model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)

	return newModel(&client, opts)
}

// NewModelFromClient creates a new OpenAI model from an existing client
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return newModel(client, opts)
}

func newModel(client *openai.Client, opts Options) *Model {
	return &Model{
		client:    client,
		formatter: formatter.NewOpenAIFormatter(),
		opts:      opts,
	}
}

// Call implements model.Model. The history is rendered through the OpenAI
// formatter, tool schemas and tool choice are attached, and the completion is
// lifted back into content blocks with token usage.
func (m *Model) Call(
	ctx context.Context,
	msgs []*message.Msg,
	tools []map[string]any,
	toolChoice model.ToolChoice,
	options map[string]any,
) (*model.ChatResponse, error) {
	if err := toolChoice.Validate(tools); err != nil {
		return nil, err
	}

	if m.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.CallTimeout)
		defer cancel()
	}

	payload, err := m.formatter.Format(msgs, options)
	if err != nil {
		return nil, err
	}
	messages, ok := payload.([]openai.ChatCompletionMessageParamUnion)
	if !ok {
		return nil, fmt.Errorf("unexpected formatter payload type %T", payload)
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
		if choice, ok := buildToolChoice(toolChoice); ok {
			params.ToolChoice = choice
		}
	}

	start := time.Now()
	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	msg, err := m.formatter.ParseResponse(completion)
	if err != nil {
		return nil, err
	}

	resp := model.NewChatResponse(msg.ContentBlocks(""))
	resp.ID = completion.ID
	resp.Usage = &model.ChatUsage{
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
		Time:         time.Since(start).Seconds(),
	}
	return resp, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}

// buildTools converts generic tool schemas
// ({type: "function", function: {name, description, parameters}}) into SDK
// tool params.
func buildTools(tools []map[string]any) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, schema := range tools {
		fn, _ := schema["function"].(map[string]any)
		name, _ := fn["name"].(string)
		description, _ := fn["description"].(string)
		parameters, _ := fn["parameters"].(map[string]any)

		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        name,
				Description: openai.String(description),
				Parameters:  openai.FunctionParameters(parameters),
			},
		})
	}
	return out
}

// buildToolChoice maps the normalized tool choice onto the SDK union. "any"
// has no Chat Completions equivalent and maps to "required". The empty choice
// leaves the provider default in place.
func buildToolChoice(choice model.ToolChoice) (openai.ChatCompletionToolChoiceOptionUnionParam, bool) {
	switch choice {
	case "":
		return openai.ChatCompletionToolChoiceOptionUnionParam{}, false
	case model.ToolChoiceAuto:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}, true
	case model.ToolChoiceNone:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}, true
	case model.ToolChoiceAny, model.ToolChoiceRequired:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}, true
	default:
		return openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{
					Name: string(choice),
				},
			},
		}, true
	}
}
