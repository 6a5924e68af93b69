package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/reagent/hook"
	"github.com/hupe1980/reagent/logging"
	"github.com/hupe1980/reagent/memory"
	"github.com/hupe1980/reagent/message"
	"github.com/hupe1980/reagent/model"
	"github.com/hupe1980/reagent/tool"
)

// ReActAgentKind scopes process-wide hooks shared by all ReAct agents.
const ReActAgentKind = "react_agent"

const (
	// DefaultMaxIters bounds the reason/act loop.
	DefaultMaxIters = 10

	// DefaultFinishFunctionName is the tool the model calls to deliver its
	// final response.
	DefaultFinishFunctionName = "generate_response"

	interruptedReplyText = "Agent interrupted and ready for new input."
	maxItersReplyText    = "Maximum iterations reached without completion."
)

// LongTermMode selects who drives long-term memory.
type LongTermMode string

// Long-term memory control modes. In agent control the model manages memory
// through the retrieve_memory / record_memory tools; in static control the
// agent retrieves before each loop and records the final reply; both does
// both.
const (
	LongTermAgentControl  LongTermMode = "agent_control"
	LongTermStaticControl LongTermMode = "static_control"
	LongTermBoth          LongTermMode = "both"
)

// Validate reports whether m is a supported mode.
func (m LongTermMode) Validate() error {
	switch m {
	case LongTermAgentControl, LongTermStaticControl, LongTermBoth:
		return nil
	default:
		return fmt.Errorf("unsupported long-term memory mode: %q", string(m))
	}
}

func (m LongTermMode) agentControlled() bool {
	return m == LongTermAgentControl || m == LongTermBoth
}

func (m LongTermMode) staticControlled() bool {
	return m == LongTermStaticControl || m == LongTermBoth
}

// ReActOptions configure a ReActAgent.
type ReActOptions struct {
	// SysPrompt is prepended to every model call as a system message.
	SysPrompt string

	// Toolkit holds the tools exposed to the model. A default toolkit with
	// built-ins is created when nil.
	Toolkit *tool.Toolkit

	// Memory holds the conversation history. An in-memory store is created
	// when nil.
	Memory memory.Memory

	// LongTermMemory enables cross-conversation recall. Optional.
	LongTermMemory memory.LongTermMemory

	// LongTermMode selects who drives long-term memory. Only meaningful
	// with LongTermMemory set; defaults to both.
	LongTermMode LongTermMode

	// MaxIters bounds the reason/act loop.
	MaxIters int

	// FinishFunctionName overrides the finish tool name.
	FinishFunctionName string

	// ToolChoice constrains tool usage on every model call. Empty means
	// provider default.
	ToolChoice model.ToolChoice

	// ModelOptions is passed through to every model call.
	ModelOptions map[string]any

	// DisableConsoleOutput suppresses Print output.
	DisableConsoleOutput bool

	// Logger receives lifecycle diagnostics (defaults to NoOpLogger).
	Logger logging.Logger
}

// ReActAgent drives the bounded reasoning-acting loop: reason with the model
// over memory, act on requested tool calls, feed results back, repeat until
// the model delivers a final response or the iteration bound is hit. A new
// Reply cancels a prior in-flight one; Interrupt cancels without replacing.
type ReActAgent struct {
	*BaseAgent

	sysPrompt    string
	model        model.Model
	toolkit      *tool.Toolkit
	memory       memory.Memory
	longTerm     memory.LongTermMemory
	longTermMode LongTermMode
	maxIters     int
	finishName   string
	toolChoice   model.ToolChoice
	modelOptions map[string]any

	replyMu  sync.Mutex
	inFlight *replyHandle
}

type replyHandle struct {
	cancel context.CancelFunc
}

// NewReActAgent creates a ReAct agent around mdl. The finish tool is
// registered on the toolkit so the model can deliver its final response as a
// tool call; with long-term memory in agent control mode the memory tools are
// registered as well.
func NewReActAgent(name string, mdl model.Model, optFns ...func(o *ReActOptions)) (*ReActAgent, error) {
	if name == "" {
		return nil, fmt.Errorf("agent name must not be empty")
	}
	if mdl == nil {
		return nil, fmt.Errorf("model must not be nil")
	}

	opts := ReActOptions{
		MaxIters:           DefaultMaxIters,
		FinishFunctionName: DefaultFinishFunctionName,
		LongTermMode:       LongTermBoth,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxIters <= 0 {
		return nil, fmt.Errorf("max iters must be positive, got %d", opts.MaxIters)
	}
	if opts.LongTermMemory != nil {
		if err := opts.LongTermMode.Validate(); err != nil {
			return nil, err
		}
	}
	if opts.Toolkit == nil {
		opts.Toolkit = tool.NewToolkit(func(o *tool.Options) {
			o.Logger = opts.Logger
		})
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewInMemoryMemory(func(o *memory.InMemoryOptions) {
			o.Logger = opts.Logger
		})
	}

	a := &ReActAgent{
		BaseAgent: NewBaseAgent(name, ReActAgentKind, BaseOptions{
			DisableConsoleOutput: opts.DisableConsoleOutput,
			Logger:               opts.Logger,
		}),
		sysPrompt:    opts.SysPrompt,
		model:        mdl,
		toolkit:      opts.Toolkit,
		memory:       opts.Memory,
		longTerm:     opts.LongTermMemory,
		longTermMode: opts.LongTermMode,
		maxIters:     opts.MaxIters,
		finishName:   opts.FinishFunctionName,
		toolChoice:   opts.ToolChoice,
		modelOptions: opts.ModelOptions,
	}

	a.registerFinishFunction()
	if a.longTerm != nil && a.longTermMode.agentControlled() {
		a.registerMemoryTools()
	}

	return a, nil
}

// Toolkit returns the agent's toolkit for registering additional tools.
func (a *ReActAgent) Toolkit() *tool.Toolkit { return a.toolkit }

// Memory returns the agent's conversation memory.
func (a *ReActAgent) Memory() memory.Memory { return a.memory }

// Observe records msg into memory without generating a reply. Pre-observe
// hooks may patch the message; post-observe hooks see the stored one.
func (a *ReActAgent) Observe(ctx context.Context, msg *message.Msg) error {
	if msg == nil {
		return nil
	}

	s := a.runHooks(hook.PreObserve, msg, true)
	msg = s.Msg
	if msg == nil {
		return nil
	}

	if !a.memory.Add(msg) {
		return fmt.Errorf("memory rejected message %s", msg.ID())
	}
	a.runHooks(hook.PostObserve, msg, true)
	return nil
}

// Reply runs the reasoning-acting loop for msg and returns the final
// assistant message. A prior in-flight Reply is cancelled first. Model
// failure produces an error-text assistant message, never an error return;
// iteration exhaustion produces the documented sentinel message.
func (a *ReActAgent) Reply(ctx context.Context, msg *message.Msg) (*message.Msg, error) {
	ctx, cancel := context.WithCancel(ctx)
	handle := &replyHandle{cancel: cancel}

	a.replyMu.Lock()
	if a.inFlight != nil {
		a.inFlight.cancel()
	}
	a.inFlight = handle
	a.replyMu.Unlock()

	defer func() {
		cancel()
		a.replyMu.Lock()
		if a.inFlight == handle {
			a.inFlight = nil
		}
		a.replyMu.Unlock()
	}()

	s := a.runHooks(hook.PreReply, msg, true)
	msg = s.Msg

	if msg != nil {
		if err := a.Observe(ctx, msg); err != nil {
			return nil, err
		}
		a.retrieveLongTerm(ctx, msg)
	}

	for iter := 0; iter < a.maxIters; iter++ {
		if ctx.Err() != nil {
			return a.interruptedReply(ctx)
		}

		resp, err := a.model.Call(ctx, a.promptMessages(), a.toolkit.Schemas(), a.toolChoice, a.modelOptions)
		if err != nil {
			if ctx.Err() != nil {
				return a.interruptedReply(ctx)
			}
			a.Logger().Error("react.reasoning_failed", "agent", a.Name(), "error", err.Error())
			errMsg := message.MustNew(a.Name(), "Error during reasoning: "+err.Error(), message.RoleAssistant)
			return a.conclude(ctx, errMsg, true, false)
		}

		assistant := message.MustNew(a.Name(), resp.Content, message.RoleAssistant)
		assistant.SetInvocationID(resp.ID)
		a.memory.Add(assistant)
		a.Print(assistant, true)

		uses := resp.ToolUseBlocks()
		if len(uses) == 0 {
			if strings.TrimSpace(resp.TextContent()) != "" {
				return a.conclude(ctx, assistant, false, true)
			}
			// nothing to act on and nothing to say, reason again
			continue
		}

		// An explicit finish call ends the loop with its response text and
		// takes precedence over dispatching anything else in the turn.
		if fin := a.findFinish(uses); fin != nil {
			text, _ := fin.Input["response"].(string)
			if text == "" {
				text = resp.TextContent()
			}
			final := message.MustNew(a.Name(), text, message.RoleAssistant)
			return a.conclude(ctx, final, true, true)
		}

		if ctx.Err() != nil {
			return a.interruptedReply(ctx)
		}

		calls := make([]tool.Call, len(uses))
		for i, u := range uses {
			calls[i] = tool.Call{ID: u.ID, Name: u.Name, Input: u.Input}
		}
		results := a.toolkit.ExecuteCalls(ctx, calls)

		blocks := make([]message.ContentBlock, len(results))
		for i, r := range results {
			blocks[i] = message.ToolResultBlock{ID: r.Call.ID, Output: r.Response.ContentString()}
		}
		resultMsg := message.MustNew("system", blocks, message.RoleUser)
		a.memory.Add(resultMsg)
	}

	final := message.MustNew(a.Name(), maxItersReplyText, message.RoleAssistant)
	a.Print(final, true)
	return a.conclude(ctx, final, false, false)
}

// Interrupt cancels an in-flight Reply, observing msg first when given. The
// cancelled Reply appends the interruption notice to memory; Interrupt only
// returns it.
func (a *ReActAgent) Interrupt(ctx context.Context, msg *message.Msg) (*message.Msg, error) {
	if msg != nil {
		if err := a.Observe(ctx, msg); err != nil {
			return nil, err
		}
	}

	a.replyMu.Lock()
	if a.inFlight != nil {
		a.inFlight.cancel()
		a.inFlight = nil
	}
	a.replyMu.Unlock()

	return message.New(a.Name(), interruptedReplyText, message.RoleAssistant)
}

// conclude finishes a reply: optionally store and print the final message,
// optionally record it to long-term memory, run post-reply hooks.
func (a *ReActAgent) conclude(ctx context.Context, final *message.Msg, store, record bool) (*message.Msg, error) {
	if store {
		a.memory.Add(final)
		a.Print(final, true)
	}
	if record && a.longTerm != nil && a.longTermMode.staticControlled() {
		if err := a.longTerm.Record(ctx, []*message.Msg{final}); err != nil {
			a.Logger().Warn("react.longterm_record_failed", "agent", a.Name(), "error", err.Error())
		}
	}

	s := a.runHooks(hook.PostReply, final, true)
	if s.Msg != nil {
		final = s.Msg
	}
	return final, nil
}

// findFinish returns the finish-function call in the turn, if any.
func (a *ReActAgent) findFinish(uses []message.ToolUseBlock) *message.ToolUseBlock {
	for i := range uses {
		if uses[i].Name == a.finishName {
			return &uses[i]
		}
	}
	return nil
}

// interruptedReply ends a cancelled reply with the interruption notice.
func (a *ReActAgent) interruptedReply(ctx context.Context) (*message.Msg, error) {
	final := message.MustNew(a.Name(), interruptedReplyText, message.RoleAssistant)
	return a.conclude(ctx, final, true, false)
}

// promptMessages assembles the model input: system prompt first, then the
// full conversation history.
func (a *ReActAgent) promptMessages() []*message.Msg {
	history := a.memory.All()
	if a.sysPrompt == "" {
		return history
	}
	msgs := make([]*message.Msg, 0, len(history)+1)
	msgs = append(msgs, message.MustNew("system", a.sysPrompt, message.RoleSystem))
	return append(msgs, history...)
}

// retrieveLongTerm pulls relevant long-term memory for msg into the
// conversation, static control modes only.
func (a *ReActAgent) retrieveLongTerm(ctx context.Context, msg *message.Msg) {
	if a.longTerm == nil || !a.longTermMode.staticControlled() {
		return
	}

	retrieved, err := a.longTerm.Retrieve(ctx, msg)
	if err != nil {
		a.Logger().Warn("react.longterm_retrieve_failed", "agent", a.Name(), "error", err.Error())
		return
	}
	if retrieved == "" {
		return
	}
	note := message.MustNew("long_term_memory", "Relevant memory:\n"+retrieved, message.RoleUser)
	a.memory.Add(note)
}

// registerFinishFunction installs the finish tool. Its response text is the
// agent's final reply for the conversation turn.
func (a *ReActAgent) registerFinishFunction() {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"response": map[string]any{
				"type":        "string",
				"description": "The final response to deliver to the user",
			},
		},
		"required": []string{"response"},
	}
	a.toolkit.Register(
		a.finishName,
		"Deliver the final response and finish the current turn. Call this once the task is complete.",
		params,
		func(_ context.Context, input map[string]any) (*tool.ToolResponse, error) {
			response, _ := input["response"].(string)
			return tool.NewResponse(response), nil
		},
	)
}

// registerMemoryTools installs the agent-controlled long-term memory tools.
func (a *ReActAgent) registerMemoryTools() {
	retrieveParams := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to look up in long-term memory",
			},
		},
		"required": []string{"query"},
	}
	a.toolkit.Register(
		"retrieve_memory",
		"Retrieve relevant entries from long-term memory.",
		retrieveParams,
		func(ctx context.Context, input map[string]any) (*tool.ToolResponse, error) {
			query, _ := input["query"].(string)
			results, err := a.longTerm.Search(ctx, query, 5)
			if err != nil {
				return nil, err
			}
			if len(results) == 0 {
				return tool.NewResponse("No relevant memory found."), nil
			}
			contents := make([]string, len(results))
			for i, r := range results {
				contents[i] = r.Content
			}
			return tool.NewResponse(strings.Join(contents, "\n")), nil
		},
	)

	recordParams := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The information to remember",
			},
		},
		"required": []string{"content"},
	}
	a.toolkit.Register(
		"record_memory",
		"Store information in long-term memory for later conversations.",
		recordParams,
		func(ctx context.Context, input map[string]any) (*tool.ToolResponse, error) {
			content, _ := input["content"].(string)
			entry := message.MustNew(a.Name(), content, message.RoleAssistant)
			if err := a.longTerm.Record(ctx, []*message.Msg{entry}); err != nil {
				return nil, err
			}
			return tool.NewResponse("Memory recorded."), nil
		},
	)
}
