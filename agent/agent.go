// Package agent implements the reasoning-acting orchestrator and the shared
// agent plumbing it sits on. BaseAgent carries identity, hook dispatch and
// console printing; ReActAgent drives the bounded reason/act loop over a
// model, a toolkit and memory.
package agent

import (
	"context"

	"github.com/hupe1980/reagent/hook"
	"github.com/hupe1980/reagent/message"
)

// Agent is the minimal surface the orchestration loop and callers rely on.
type Agent interface {
	// ID returns the stable unique id of this agent instance.
	ID() string

	// Name returns the agent's display name, used as the sender name on
	// messages it produces.
	Name() string

	// Reply generates a response to msg, running the full lifecycle
	// (observe, reason, act) until a final message is produced. msg may be
	// nil to continue from the current memory state.
	Reply(ctx context.Context, msg *message.Msg) (*message.Msg, error)

	// Observe records msg into the agent's memory without generating a
	// reply. A nil msg is a no-op.
	Observe(ctx context.Context, msg *message.Msg) error

	// Interrupt cancels an in-flight Reply. An optional msg is observed
	// first so the interruption context is retained.
	Interrupt(ctx context.Context, msg *message.Msg) (*message.Msg, error)

	// Print renders msg to the console respecting hooks and the agent's
	// output settings. last marks the final chunk of a streamed message.
	Print(msg *message.Msg, last bool)

	// Hooks returns the agent's instance-scoped hook registry.
	Hooks() *hook.Registry
}
