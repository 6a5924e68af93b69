package tool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/reagent/internal/util"
	"github.com/hupe1980/reagent/logging"
)

// Func is the executable capability behind a registered tool. Implementations
// should honor ctx cancellation for long-running work; the dispatcher
// abandons (never joins) callables that outlive their deadline.
type Func func(ctx context.Context, input map[string]any) (*ToolResponse, error)

// Registration describes one installed tool.
type Registration struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-schema-like argument description
	Fn          Func
}

// Call is a single tool invocation request, typically lifted from a model's
// tool_use block.
type Call struct {
	ID    string         // Correlates the call with its result
	Name  string         // Registered tool name
	Input map[string]any // Structured arguments
}

// CallResult pairs a call with its response. The dispatcher guarantees
// exactly one result per call, in the original call order.
type CallResult struct {
	Call     Call
	Response *ToolResponse
}

// Options configure a Toolkit.
type Options struct {
	// ExecutionTimeout bounds each tool invocation. Zero disables the bound.
	ExecutionTimeout time.Duration

	// Parallel executes batched calls concurrently instead of sequentially.
	Parallel bool

	// MaxParallel caps concurrent units in parallel mode (0 = one per call).
	MaxParallel int

	// Builtins controls registration of the echo / get_current_time tools.
	Builtins bool

	// Logger receives dispatch diagnostics (defaults to NoOpLogger).
	Logger logging.Logger
}

// Toolkit is the combined tool registry and dispatcher. Names are unique;
// re-registration under an existing name replaces the prior entry in place.
// All methods are safe for concurrent use.
type Toolkit struct {
	mu     sync.RWMutex
	tools  map[string]*Registration
	order  []string // registration order, for deterministic schema listings
	opts   Options
	logger logging.Logger
}

// NewToolkit creates a toolkit with the built-in tools registered.
// Defaults: 30s execution timeout, sequential dispatch.
func NewToolkit(optFns ...func(o *Options)) *Toolkit {
	opts := Options{
		ExecutionTimeout: 30 * time.Second,
		Builtins:         true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	t := &Toolkit{
		tools:  make(map[string]*Registration),
		opts:   opts,
		logger: logging.OrNoOp(opts.Logger),
	}
	if opts.Builtins {
		t.registerBuiltins()
	}
	return t
}

// Register installs or replaces a tool. A replaced entry keeps its original
// position in the schema listing; the old callable is never invoked again.
func (t *Toolkit) Register(name, description string, parameters map[string]any, fn Func) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.tools[name]; !exists {
		t.order = append(t.order, name)
	}
	t.tools[name] = &Registration{
		Name:        name,
		Description: description,
		Parameters:  parameters,
		Fn:          fn,
	}
	t.logger.Info("toolkit.register", "tool", name)
}

// Has reports whether a tool is registered under name.
func (t *Toolkit) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.tools[name]
	return ok
}

// Unregister removes a tool, reporting whether it existed.
func (t *Toolkit) Unregister(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tools[name]; !ok {
		return false
	}
	delete(t.tools, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.logger.Info("toolkit.unregister", "tool", name)
	return true
}

// Names returns the registered tool names in registration order.
func (t *Toolkit) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Schema returns the model-facing schema for one tool, or nil if unknown.
func (t *Toolkit) Schema(name string) map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	reg, ok := t.tools[name]
	if !ok {
		return nil
	}
	return schemaFor(reg)
}

// Schemas returns the model-facing schemas for every registered tool in
// registration order.
func (t *Toolkit) Schemas() []map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	schemas := make([]map[string]any, 0, len(t.order))
	for _, name := range t.order {
		schemas = append(schemas, schemaFor(t.tools[name]))
	}
	return schemas
}

// Clear removes every registered tool, built-ins included.
func (t *Toolkit) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tools = make(map[string]*Registration)
	t.order = nil
}

func schemaFor(reg *Registration) map[string]any {
	params := reg.Parameters
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        reg.Name,
			"description": reg.Description,
			"parameters":  params,
		},
	}
}

// Execute runs the named tool. Every failure mode - unknown name, argument
// mismatch, callable error, panic, timeout, cancellation - is converted into
// an error-kind ToolResponse; Execute itself never returns an error for a
// registered tool's internal failure.
func (t *Toolkit) Execute(ctx context.Context, name string, input map[string]any) *ToolResponse {
	t.mu.RLock()
	reg, ok := t.tools[name]
	t.mu.RUnlock()

	if !ok {
		t.logger.Warn("toolkit.execute.unknown", "tool", name)
		return NewErrorResponse("Tool not found: " + name)
	}

	if input == nil {
		input = map[string]any{}
	}
	if reg.Parameters != nil {
		if err := util.ValidateParameters(input, reg.Parameters); err != nil {
			t.logger.Warn("toolkit.execute.validation_failed", "tool", name, "error", err.Error())
			return NewErrorResponse(fmt.Sprintf("parameter validation failed: %v", err))
		}
	}

	start := time.Now()
	resp := t.invoke(ctx, reg, input)
	t.logger.Info(
		"toolkit.execute",
		"tool", name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", resp.IsError(),
	)
	return resp
}

// invoke runs the callable as a cancellable unit of work bounded by the
// configured timeout. On expiry the still-running unit is abandoned, not
// joined; its context is cancelled so cooperative callables stop promptly.
func (t *Toolkit) invoke(ctx context.Context, reg *Registration, input map[string]any) *ToolResponse {
	if t.opts.ExecutionTimeout <= 0 {
		return runSafely(ctx, reg, input)
	}

	execCtx, cancel := context.WithTimeout(ctx, t.opts.ExecutionTimeout)
	defer cancel()

	done := make(chan *ToolResponse, 1)
	go func() {
		done <- runSafely(execCtx, reg, input)
	}()

	select {
	case resp := <-done:
		return resp
	case <-execCtx.Done():
		if ctx.Err() != nil {
			t.logger.Warn("toolkit.execute.cancelled", "tool", reg.Name)
			return NewErrorResponse("tool execution cancelled: " + reg.Name)
		}
		t.logger.Error("toolkit.execute.timeout", "tool", reg.Name, "timeout", t.opts.ExecutionTimeout.String())
		return NewErrorResponse(fmt.Sprintf("tool execution timed out after %s: %s", t.opts.ExecutionTimeout, reg.Name))
	}
}

// runSafely invokes the callable with panic isolation.
func runSafely(ctx context.Context, reg *Registration, input map[string]any) (resp *ToolResponse) {
	defer func() {
		if r := recover(); r != nil {
			resp = NewErrorResponse(fmt.Sprintf("tool panicked: %v", r))
		}
	}()

	result, err := reg.Fn(ctx, input)
	if err != nil {
		return NewErrorResponse("Tool execution failed: " + err.Error())
	}
	if result == nil {
		return NewResponse(nil)
	}
	return result
}

// ExecuteCalls dispatches a batch of calls from one model turn. In parallel
// mode each call runs as an independently timeout-bounded, failure isolated
// unit; results are gathered into the original call order regardless of
// completion order, matched by call id. Sequential mode preserves order
// trivially. Exactly one result is returned per call.
func (t *Toolkit) ExecuteCalls(ctx context.Context, calls []Call) []CallResult {
	n := len(calls)
	if n == 0 {
		return nil
	}

	results := make([]CallResult, n)

	if !t.opts.Parallel || n == 1 {
		for i, c := range calls {
			results[i] = CallResult{Call: c, Response: t.Execute(ctx, c.Name, c.Input)}
		}
		return results
	}

	maxPar := t.opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}
	sem := make(chan struct{}, maxPar)

	var wg sync.WaitGroup
	batchStart := time.Now()
	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, c Call) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = CallResult{Call: c, Response: t.Execute(ctx, c.Name, c.Input)}
		}(i, calls[i])
	}
	wg.Wait()

	t.logger.Debug(
		"toolkit.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
	return results
}
