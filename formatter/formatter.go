// Package formatter translates between reagent messages and provider wire
// formats. A Formatter owns one provider dialect: Format renders an ordered
// history into the provider payload, ParseResponse lifts a provider response
// back into a Msg. Capability flags let callers fail fast when a dialect
// cannot carry tool calls or multimodal content instead of dropping it.
package formatter

import (
	"fmt"

	"github.com/hupe1980/reagent/message"
)

// Capabilities describe what a formatter's provider dialect can express.
type Capabilities struct {
	Streaming  bool
	ToolCalls  bool
	Multimodal bool
	MaxTokens  int // -1 = unlimited
}

// Formatter converts between Msg values and a provider payload.
type Formatter interface {
	// Format renders the ordered history into the provider payload. Content
	// the dialect cannot express is a hard error, never silently dropped.
	Format(msgs []*message.Msg, options map[string]any) (any, error)

	// ParseResponse lifts a provider response payload into a Msg.
	ParseResponse(payload any) (*message.Msg, error)

	// Capabilities returns the dialect's capability flags.
	Capabilities() Capabilities
}

// ValidateMessages rejects histories the given capabilities cannot carry:
// multimodal blocks without multimodal support, tool blocks without tool-call
// support, nil or empty histories.
func ValidateMessages(msgs []*message.Msg, caps Capabilities) error {
	if len(msgs) == 0 {
		return fmt.Errorf("messages cannot be empty")
	}
	for _, msg := range msgs {
		if msg == nil {
			return fmt.Errorf("message cannot be nil")
		}
		if !caps.Multimodal {
			if msg.HasContentBlocks(message.BlockTypeImage) ||
				msg.HasContentBlocks(message.BlockTypeAudio) ||
				msg.HasContentBlocks(message.BlockTypeVideo) {
				return fmt.Errorf("formatter does not support multimodal content (message %s)", msg.ID())
			}
		}
		if !caps.ToolCalls {
			if msg.HasContentBlocks(message.BlockTypeToolUse) ||
				msg.HasContentBlocks(message.BlockTypeToolResult) {
				return fmt.Errorf("formatter does not support tool calls (message %s)", msg.ID())
			}
		}
	}
	return nil
}

// TruncateMessages drops the oldest non-system messages until the estimated
// token count fits maxTokens. System messages are never dropped; once only
// system messages remain the result is returned as-is. maxTokens <= 0 means
// unlimited.
func TruncateMessages(msgs []*message.Msg, maxTokens int) []*message.Msg {
	if maxTokens <= 0 || EstimateTokens(msgs) <= maxTokens {
		return msgs
	}

	truncated := make([]*message.Msg, len(msgs))
	copy(truncated, msgs)

	for EstimateTokens(truncated) > maxTokens {
		removed := false
		for i, msg := range truncated {
			if msg.Role() != message.RoleSystem {
				truncated = append(truncated[:i], truncated[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			break // only system messages left
		}
	}
	return truncated
}

// EstimateTokens roughly estimates the token cost of a history: one token
// per four characters of text plus a structural overhead per message. Real
// tokenization belongs in provider adapters.
func EstimateTokens(msgs []*message.Msg) int {
	total := 0
	for _, msg := range msgs {
		total += len(msg.TextContent())/4 + 10
	}
	return total
}
