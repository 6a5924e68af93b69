package model

import (
	"context"
	"time"

	"github.com/hupe1980/reagent/message"
)

// MockModel is a lightweight scripted Model useful for tests and examples.
// Responses are returned in the order they were queued; the last response
// repeats once the script is exhausted. A zero-script mock echoes the last
// user message.
type MockModel struct {
	info      Info
	script    []*ChatResponse
	callIndex int
	delay     time.Duration
	err       error

	// Calls records the history each Call received, for assertions.
	Calls [][]*message.Msg
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel() *MockModel {
	return &MockModel{
		info: Info{Name: "mock", Provider: "mock", SupportsTools: true},
	}
}

// Queue appends a scripted response.
func (m *MockModel) Queue(resp *ChatResponse) *MockModel {
	m.script = append(m.script, resp)
	return m
}

// QueueText appends a scripted plain text response.
func (m *MockModel) QueueText(text string) *MockModel {
	return m.Queue(NewChatResponse([]message.ContentBlock{message.TextBlock{Text: text}}))
}

// QueueToolUse appends a scripted response requesting a single tool call.
func (m *MockModel) QueueToolUse(callID, name string, input map[string]any) *MockModel {
	return m.Queue(NewChatResponse([]message.ContentBlock{
		message.ToolUseBlock{ID: callID, Name: name, Input: input},
	}))
}

// FailWith makes every subsequent Call return err.
func (m *MockModel) FailWith(err error) *MockModel {
	m.err = err
	return m
}

// WithDelay makes each Call sleep (cancellably) before responding, to
// exercise interruption paths in tests.
func (m *MockModel) WithDelay(d time.Duration) *MockModel {
	m.delay = d
	return m
}

// Call implements Model by replaying the script.
func (m *MockModel) Call(
	ctx context.Context,
	msgs []*message.Msg,
	tools []map[string]any,
	toolChoice ToolChoice,
	_ map[string]any,
) (*ChatResponse, error) {
	if err := toolChoice.Validate(tools); err != nil {
		return nil, err
	}

	m.Calls = append(m.Calls, msgs)

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}

	if m.err != nil {
		return nil, m.err
	}

	if len(m.script) == 0 {
		text := "mock response"
		if len(msgs) > 0 {
			text = "Mock response to: " + msgs[len(msgs)-1].TextContent()
		}
		return NewChatResponse([]message.ContentBlock{message.TextBlock{Text: text}}), nil
	}

	idx := m.callIndex
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	m.callIndex++
	return m.script[idx], nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
