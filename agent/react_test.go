package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reagent/hook"
	"github.com/hupe1980/reagent/memory"
	"github.com/hupe1980/reagent/message"
	"github.com/hupe1980/reagent/model"
)

func newTestAgent(t *testing.T, mdl model.Model, optFns ...func(o *ReActOptions)) *ReActAgent {
	t.Helper()
	fns := append([]func(o *ReActOptions){func(o *ReActOptions) {
		o.DisableConsoleOutput = true
	}}, optFns...)
	a, err := NewReActAgent("TestAgent", mdl, fns...)
	require.NoError(t, err)
	return a
}

// -------------------- Constructor Tests --------------------

func TestNewReActAgent_Validation(t *testing.T) {
	mdl := model.NewMockModel()

	_, err := NewReActAgent("", mdl)
	assert.Error(t, err)

	_, err = NewReActAgent("a", nil)
	assert.Error(t, err)

	_, err = NewReActAgent("a", mdl, func(o *ReActOptions) { o.MaxIters = 0 })
	assert.Error(t, err)

	_, err = NewReActAgent("a", mdl, func(o *ReActOptions) {
		o.LongTermMemory = memory.NewInMemoryLongTermMemory()
		o.LongTermMode = LongTermMode("psychic")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported long-term memory mode")
}

func TestNewReActAgent_RegistersFinishFunction(t *testing.T) {
	a := newTestAgent(t, model.NewMockModel())
	assert.True(t, a.Toolkit().Has(DefaultFinishFunctionName))
	assert.NotEmpty(t, a.ID())
	assert.Equal(t, "TestAgent", a.Name())
}

func TestNewReActAgent_AgentControlRegistersMemoryTools(t *testing.T) {
	a := newTestAgent(t, model.NewMockModel(), func(o *ReActOptions) {
		o.LongTermMemory = memory.NewInMemoryLongTermMemory()
		o.LongTermMode = LongTermAgentControl
	})
	assert.True(t, a.Toolkit().Has("retrieve_memory"))
	assert.True(t, a.Toolkit().Has("record_memory"))

	static := newTestAgent(t, model.NewMockModel(), func(o *ReActOptions) {
		o.LongTermMemory = memory.NewInMemoryLongTermMemory()
		o.LongTermMode = LongTermStaticControl
	})
	assert.False(t, static.Toolkit().Has("retrieve_memory"))
}

// -------------------- Loop Tests --------------------

func TestReply_MaxItersExhaustion(t *testing.T) {
	mdl := model.NewMockModel().
		QueueToolUse("c1", "echo", map[string]any{"message": "x"})

	a := newTestAgent(t, mdl, func(o *ReActOptions) { o.MaxIters = 3 })

	reply, err := a.Reply(context.Background(), message.MustNew("user", "go", message.RoleUser))
	require.NoError(t, err)

	assert.Equal(t, "Maximum iterations reached without completion.", reply.TextContent())
	assert.Equal(t, message.RoleAssistant, reply.Role())
	assert.Len(t, mdl.Calls, 3)

	// 1 user + 3 x (assistant tool-use + tool-result)
	all := a.Memory().All()
	require.Len(t, all, 7)
	assert.Equal(t, message.RoleUser, all[0].Role())
	assert.True(t, all[1].HasContentBlocks(message.BlockTypeToolUse))
	assert.True(t, all[2].HasContentBlocks(message.BlockTypeToolResult))
	assert.True(t, all[6].HasContentBlocks(message.BlockTypeToolResult))
}

func TestReply_FinishFunctionSecondTurn(t *testing.T) {
	mdl := model.NewMockModel().
		QueueToolUse("f1", DefaultFinishFunctionName, map[string]any{"response": "done"})

	a := newTestAgent(t, mdl)

	require.NoError(t, a.Observe(context.Background(), message.MustNew("user", "first question", message.RoleUser)))
	require.NoError(t, a.Observe(context.Background(), message.MustNew("TestAgent", "first answer", message.RoleAssistant)))

	reply, err := a.Reply(context.Background(), message.MustNew("user", "second question", message.RoleUser))
	require.NoError(t, err)

	assert.Equal(t, "done", reply.TextContent())
	assert.Equal(t, message.RoleAssistant, reply.Role())
	assert.Len(t, mdl.Calls, 1)
}

func TestReply_ImplicitFinishOnPlainText(t *testing.T) {
	mdl := model.NewMockModel().QueueText("just an answer")
	a := newTestAgent(t, mdl)

	reply, err := a.Reply(context.Background(), message.MustNew("user", "hi", message.RoleUser))
	require.NoError(t, err)

	assert.Equal(t, "just an answer", reply.TextContent())
	assert.Len(t, a.Memory().All(), 2)
}

func TestReply_ToolResultsFeedBack(t *testing.T) {
	mdl := model.NewMockModel().
		QueueToolUse("c1", "echo", map[string]any{"message": "ping"}).
		QueueText("echoed fine")

	a := newTestAgent(t, mdl)

	reply, err := a.Reply(context.Background(), message.MustNew("user", "echo ping", message.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, "echoed fine", reply.TextContent())
	require.Len(t, mdl.Calls, 2)

	// second call saw the tool result in the history
	secondHistory := mdl.Calls[1]
	last := secondHistory[len(secondHistory)-1]
	results := last.ContentBlocks(message.BlockTypeToolResult)
	require.Len(t, results, 1)
	tr := results[0].(message.ToolResultBlock)
	assert.Equal(t, "c1", tr.ID)
	assert.Equal(t, "ping", tr.Output)
}

func TestReply_SysPromptPrepended(t *testing.T) {
	mdl := model.NewMockModel().QueueText("ok")
	a := newTestAgent(t, mdl, func(o *ReActOptions) {
		o.SysPrompt = "You are terse."
	})

	_, err := a.Reply(context.Background(), message.MustNew("user", "hi", message.RoleUser))
	require.NoError(t, err)

	require.Len(t, mdl.Calls, 1)
	history := mdl.Calls[0]
	require.NotEmpty(t, history)
	assert.Equal(t, message.RoleSystem, history[0].Role())
	assert.Equal(t, "You are terse.", history[0].TextContent())
}

func TestReply_ModelFailureYieldsErrorMessage(t *testing.T) {
	mdl := model.NewMockModel().FailWith(errors.New("provider down"))
	a := newTestAgent(t, mdl)

	reply, err := a.Reply(context.Background(), message.MustNew("user", "hi", message.RoleUser))
	require.NoError(t, err)

	assert.Equal(t, message.RoleAssistant, reply.Role())
	assert.Contains(t, reply.TextContent(), "Error during reasoning: provider down")
	// the error message is part of the conversation
	assert.Len(t, a.Memory().All(), 2)
}

// -------------------- Interrupt Tests --------------------

func TestInterrupt_CancelsInFlightReply(t *testing.T) {
	mdl := model.NewMockModel().WithDelay(5 * time.Second).QueueText("too late")
	a := newTestAgent(t, mdl)

	replies := make(chan *message.Msg, 1)
	go func() {
		reply, err := a.Reply(context.Background(), message.MustNew("user", "long task", message.RoleUser))
		assert.NoError(t, err)
		replies <- reply
	}()

	time.Sleep(50 * time.Millisecond)

	note := message.MustNew("user", "stop it", message.RoleUser)
	interruptReply, err := a.Interrupt(context.Background(), note)
	require.NoError(t, err)
	assert.Equal(t, "Agent interrupted and ready for new input.", interruptReply.TextContent())

	select {
	case reply := <-replies:
		assert.Equal(t, "Agent interrupted and ready for new input.", reply.TextContent())
		assert.False(t, reply.Equal(interruptReply))
	case <-time.After(2 * time.Second):
		t.Fatal("reply did not return after interrupt")
	}

	// interrupt note lands in memory before the cancellation message
	all := a.Memory().All()
	require.Len(t, all, 3)
	assert.Equal(t, "long task", all[0].TextContent())
	assert.Equal(t, "stop it", all[1].TextContent())
	assert.Equal(t, "Agent interrupted and ready for new input.", all[2].TextContent())
}

// blockUntilCancelledModel blocks its first call until the context is
// cancelled; every later call answers immediately.
type blockUntilCancelledModel struct {
	mu    sync.Mutex
	calls int
}

func (m *blockUntilCancelledModel) Call(
	ctx context.Context,
	_ []*message.Msg,
	_ []map[string]any,
	_ model.ToolChoice,
	_ map[string]any,
) (*model.ChatResponse, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()

	if n == 1 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return model.NewChatResponse([]message.ContentBlock{message.TextBlock{Text: "fast answer"}}), nil
}

func (m *blockUntilCancelledModel) Info() model.Info {
	return model.Info{Name: "blocking", Provider: "test", SupportsTools: true}
}

func TestReply_NewReplySupersedesInFlight(t *testing.T) {
	a := newTestAgent(t, &blockUntilCancelledModel{})

	first := make(chan *message.Msg, 1)
	go func() {
		reply, err := a.Reply(context.Background(), message.MustNew("user", "one", message.RoleUser))
		assert.NoError(t, err)
		first <- reply
	}()

	time.Sleep(50 * time.Millisecond)

	reply, err := a.Reply(context.Background(), message.MustNew("user", "two", message.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, "fast answer", reply.TextContent())

	select {
	case cancelled := <-first:
		assert.Equal(t, "Agent interrupted and ready for new input.", cancelled.TextContent())
	case <-time.After(2 * time.Second):
		t.Fatal("superseded reply did not return")
	}
}

// -------------------- Observe & Hook Tests --------------------

func TestObserve_AddsToMemoryWithHooks(t *testing.T) {
	a := newTestAgent(t, model.NewMockModel())

	var phases []hook.Type
	for _, phase := range []hook.Type{hook.PreObserve, hook.PostObserve} {
		p := phase
		require.NoError(t, a.Hooks().Register(p, "trace", func(s *hook.State) (map[string]any, error) {
			phases = append(phases, s.Phase)
			return nil, nil
		}))
	}

	require.NoError(t, a.Observe(context.Background(), message.MustNew("user", "note", message.RoleUser)))
	assert.Equal(t, []hook.Type{hook.PreObserve, hook.PostObserve}, phases)
	assert.Equal(t, 1, a.Memory().Size())

	assert.NoError(t, a.Observe(context.Background(), nil))
	assert.Equal(t, 1, a.Memory().Size())
}

func TestReply_PreReplyHookPatchesInput(t *testing.T) {
	mdl := model.NewMockModel().QueueText("ok")
	a := newTestAgent(t, mdl)

	patched := message.MustNew("user", "patched question", message.RoleUser)
	require.NoError(t, a.Hooks().Register(hook.PreReply, "patcher", func(s *hook.State) (map[string]any, error) {
		return map[string]any{"msg": patched}, nil
	}))

	_, err := a.Reply(context.Background(), message.MustNew("user", "original question", message.RoleUser))
	require.NoError(t, err)

	all := a.Memory().All()
	require.NotEmpty(t, all)
	assert.Equal(t, "patched question", all[0].TextContent())
}

func TestReply_PostReplyHookObservesFinal(t *testing.T) {
	mdl := model.NewMockModel().QueueText("final answer")
	a := newTestAgent(t, mdl)

	var seen string
	require.NoError(t, a.Hooks().Register(hook.PostReply, "witness", func(s *hook.State) (map[string]any, error) {
		if s.Msg != nil {
			seen = s.Msg.TextContent()
		}
		return nil, nil
	}))

	_, err := a.Reply(context.Background(), message.MustNew("user", "hi", message.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, "final answer", seen)
}

func TestGlobalHooksRunBeforeInstanceHooks(t *testing.T) {
	a := newTestAgent(t, model.NewMockModel().QueueText("ok"))

	var order []string
	global := hook.Global(ReActAgentKind)
	require.NoError(t, global.Register(hook.PreObserve, "global_trace", func(*hook.State) (map[string]any, error) {
		order = append(order, "global")
		return nil, nil
	}))
	defer global.Remove(hook.PreObserve, "global_trace")

	require.NoError(t, a.Hooks().Register(hook.PreObserve, "instance_trace", func(*hook.State) (map[string]any, error) {
		order = append(order, "instance")
		return nil, nil
	}))

	require.NoError(t, a.Observe(context.Background(), message.MustNew("user", "x", message.RoleUser)))
	assert.Equal(t, []string{"global", "instance"}, order)
}

// -------------------- Long-Term Memory Tests --------------------

func TestReply_StaticLongTermMemory(t *testing.T) {
	ctx := context.Background()
	ltm := memory.NewInMemoryLongTermMemory()
	require.NoError(t, ltm.Record(ctx, []*message.Msg{
		message.MustNew("agent", "the user prefers coffee", message.RoleAssistant),
	}))

	mdl := model.NewMockModel().QueueText("noted, coffee it is")
	a := newTestAgent(t, mdl, func(o *ReActOptions) {
		o.LongTermMemory = ltm
		o.LongTermMode = LongTermStaticControl
	})

	reply, err := a.Reply(ctx, message.MustNew("user", "coffee", message.RoleUser))
	require.NoError(t, err)

	// retrieved context was injected before reasoning
	require.Len(t, mdl.Calls, 1)
	found := false
	for _, m := range mdl.Calls[0] {
		if m.Name() == "long_term_memory" {
			assert.Contains(t, m.TextContent(), "the user prefers coffee")
			found = true
		}
	}
	assert.True(t, found)

	// final reply was recorded
	results, err := ltm.Search(ctx, "coffee it is", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, reply.TextContent(), results[0].Content)
}

func TestMemoryTools_AgentControl(t *testing.T) {
	ctx := context.Background()
	a := newTestAgent(t, model.NewMockModel(), func(o *ReActOptions) {
		o.LongTermMemory = memory.NewInMemoryLongTermMemory()
		o.LongTermMode = LongTermAgentControl
	})

	resp := a.Toolkit().Execute(ctx, "record_memory", map[string]any{"content": "likes jazz"})
	require.False(t, resp.IsError())
	assert.Equal(t, "Memory recorded.", resp.ContentString())

	resp = a.Toolkit().Execute(ctx, "retrieve_memory", map[string]any{"query": "jazz"})
	require.False(t, resp.IsError())
	assert.Equal(t, "likes jazz", resp.ContentString())

	resp = a.Toolkit().Execute(ctx, "retrieve_memory", map[string]any{"query": "opera"})
	require.False(t, resp.IsError())
	assert.Equal(t, "No relevant memory found.", resp.ContentString())
}
