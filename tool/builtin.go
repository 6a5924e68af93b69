package tool

import (
	"context"
	"time"

	"github.com/hupe1980/reagent/message"
)

// Built-in tool names. Both may be overridden by re-registration.
const (
	EchoToolName        = "echo"
	CurrentTimeToolName = "get_current_time"
)

// registerBuiltins installs the default tools every toolkit starts with.
func (t *Toolkit) registerBuiltins() {
	t.Register(
		EchoToolName,
		"Echo the input message",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "The message to echo",
				},
			},
			"required": []string{"message"},
		},
		func(_ context.Context, input map[string]any) (*ToolResponse, error) {
			return NewResponse(input["message"]), nil
		},
	)

	t.Register(
		CurrentTimeToolName,
		"Get the current date and time",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(_ context.Context, _ map[string]any) (*ToolResponse, error) {
			return NewResponse(time.Now().Format(message.TimestampFormat)), nil
		},
	)
}
