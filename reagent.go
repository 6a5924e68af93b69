// Package reagent provides a high-level façade over the agent, tool, memory
// and model packages for building reasoning-acting (ReAct) agents. Most
// applications interact with this package by:
//  1. Creating an agent via New() with a model implementation
//  2. Registering tools on the agent's toolkit
//  3. Driving the conversation with Ask or agent.Reply
//
// The façade delegates orchestration to agent.ReActAgent while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a bounded memory
// configuration and a structured logger.
package reagent

import (
	"context"

	"github.com/hupe1980/reagent/agent"
	"github.com/hupe1980/reagent/message"
	"github.com/hupe1980/reagent/model"
)

// Version is the library version.
const Version = "0.1.0"

// New creates a ReAct agent around mdl with in-memory defaults. Options pass
// through to the underlying agent constructor.
func New(name string, mdl model.Model, optFns ...func(o *agent.ReActOptions)) (*agent.ReActAgent, error) {
	return agent.NewReActAgent(name, mdl, optFns...)
}

// Ask is a convenience helper for one conversational turn: it wraps text in a
// user message and returns the agent's reply text.
func Ask(ctx context.Context, a agent.Agent, text string) (string, error) {
	msg, err := message.New("user", text, message.RoleUser)
	if err != nil {
		return "", err
	}

	reply, err := a.Reply(ctx, msg)
	if err != nil {
		return "", err
	}
	return reply.TextContent(), nil
}
