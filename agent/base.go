package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/hupe1980/reagent/hook"
	"github.com/hupe1980/reagent/logging"
	"github.com/hupe1980/reagent/message"
)

// BaseOptions configure the shared agent plumbing.
type BaseOptions struct {
	// DisableConsoleOutput suppresses all Print output. Hooks still run.
	DisableConsoleOutput bool

	// Logger receives lifecycle diagnostics (defaults to NoOpLogger).
	Logger logging.Logger
}

// BaseAgent carries the identity, hook dispatch and console printing shared
// by concrete agents. It is embedded, never used on its own.
type BaseAgent struct {
	id     string
	name   string
	kind   string
	hooks  *hook.Registry
	logger logging.Logger

	disableConsoleOutput bool

	printMu sync.Mutex
	// printed text per message id, so streamed chunks only emit their delta
	streamed map[string]string

	nameColor     *color.Color
	thinkingColor *color.Color
}

// NewBaseAgent creates the shared plumbing for an agent of the given kind.
// The kind selects which process-wide hook registry applies to the instance.
func NewBaseAgent(name, kind string, opts BaseOptions) *BaseAgent {
	return &BaseAgent{
		id:                   uuid.NewString(),
		name:                 name,
		kind:                 kind,
		hooks:                hook.NewRegistry(),
		logger:               logging.OrNoOp(opts.Logger),
		disableConsoleOutput: opts.DisableConsoleOutput,
		streamed:             make(map[string]string),
		nameColor:            color.New(color.FgCyan, color.Bold),
		thinkingColor:        color.New(color.FgHiBlack),
	}
}

// ID returns the agent instance id.
func (a *BaseAgent) ID() string { return a.id }

// Name returns the agent's display name.
func (a *BaseAgent) Name() string { return a.name }

// Kind returns the agent kind used for process-wide hook scoping.
func (a *BaseAgent) Kind() string { return a.kind }

// Hooks returns the instance-scoped hook registry.
func (a *BaseAgent) Hooks() *hook.Registry { return a.hooks }

// Logger returns the agent's logger.
func (a *BaseAgent) Logger() logging.Logger { return a.logger }

// runHooks executes the phase's hooks, process-wide kind scope first, then
// the instance scope, and returns the (possibly patched) state.
func (a *BaseAgent) runHooks(phase hook.Type, msg *message.Msg, last bool) *hook.State {
	s := &hook.State{
		AgentName: a.name,
		AgentID:   a.id,
		Phase:     phase,
		Msg:       msg,
		Last:      last,
	}
	hook.Run(a.logger, s, hook.Global(a.kind), a.hooks)
	return s
}

// Print renders msg to the console. Text blocks are printed verbatim,
// thinking blocks with a "(thinking)" prefix. For streamed messages Print is
// called repeatedly with growing content and only the delta is emitted; the
// per-message bookkeeping is cleared when last is true.
func (a *BaseAgent) Print(msg *message.Msg, last bool) {
	if msg == nil {
		return
	}

	s := a.runHooks(hook.PrePrint, msg, last)
	msg = s.Msg

	if msg != nil && !a.disableConsoleOutput {
		a.printMu.Lock()
		text := a.renderPrintable(msg)
		prev := a.streamed[msg.ID()]
		if delta, ok := strings.CutPrefix(text, prev); ok && prev != "" {
			text = delta
		}
		if text != "" {
			if prev == "" {
				fmt.Printf("%s: ", a.nameColor.Sprint(msg.Name()))
			}
			fmt.Print(text)
		}
		if last {
			delete(a.streamed, msg.ID())
			fmt.Println()
		} else {
			a.streamed[msg.ID()] = prev + text
		}
		a.printMu.Unlock()
	}

	a.runHooks(hook.PostPrint, msg, last)
}

// renderPrintable extracts the console text of a message: plain text blocks
// joined in order, thinking blocks prefixed "(thinking)".
func (a *BaseAgent) renderPrintable(msg *message.Msg) string {
	if blocks := msg.ContentBlocks(""); len(blocks) > 0 {
		var sb strings.Builder
		for _, b := range blocks {
			switch block := b.(type) {
			case message.TextBlock:
				sb.WriteString(block.Text)
			case message.ThinkingBlock:
				sb.WriteString(a.thinkingColor.Sprintf("(thinking) %s", block.Thinking))
				sb.WriteString("\n")
			}
		}
		return sb.String()
	}
	return msg.TextContent()
}
