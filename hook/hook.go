// Package hook implements the two-tier extension pipeline agents run around
// their lifecycle phases. Hooks are named callables registered per phase at
// either the process-wide kind scope or the per-instance scope; within a
// phase they execute in registration order, kind-scoped hooks before
// instance-scoped ones. A failing hook is isolated: it is reported and the
// remaining hooks still run.
package hook

import (
	"fmt"
	"sync"

	"github.com/hupe1980/reagent/logging"
	"github.com/hupe1980/reagent/message"
)

// Type identifies one of the six lifecycle phases hooks can attach to.
type Type string

// The closed set of supported phases.
const (
	PreReply    Type = "pre_reply"
	PostReply   Type = "post_reply"
	PrePrint    Type = "pre_print"
	PostPrint   Type = "post_print"
	PreObserve  Type = "pre_observe"
	PostObserve Type = "post_observe"
)

// Validate reports whether t is a supported phase.
func (t Type) Validate() error {
	switch t {
	case PreReply, PostReply, PrePrint, PostPrint, PreObserve, PostObserve:
		return nil
	default:
		return fmt.Errorf("unsupported hook type: %q", string(t))
	}
}

// State is the orchestrator's working state handed to each hook. Pre-phase
// hooks may return a patch; the orchestrator merges it back before
// proceeding. The well-known patch key "msg" (a *message.Msg) replaces
// State.Msg, everything else is merged into State.Metadata.
type State struct {
	AgentName string
	AgentID   string
	Phase     Type
	Msg       *message.Msg // Message in flight for this phase (may be nil)
	Last      bool         // For print phases: final chunk of the message
	Metadata  map[string]any
}

// Fn is a hook callable. Pre-phase hooks return a patch map (nil for no
// change); post-phase hooks observe only and return nil.
type Fn func(s *State) (map[string]any, error)

type entry struct {
	name string
	fn   Fn
}

// Registry is an ordered, concurrency-safe set of hooks for one scope
// (kind-wide or per-instance). Names are unique within a phase; registering
// an existing name replaces the callable while keeping its original position.
type Registry struct {
	mu    sync.RWMutex
	hooks map[Type][]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[Type][]entry)}
}

// Register installs fn under (phase, name). The phase must be one of the six
// supported types; anything else fails immediately.
func (r *Registry) Register(phase Type, name string, fn Fn) error {
	if err := phase.Validate(); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("hook %q: fn must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.hooks[phase]
	for i, e := range entries {
		if e.name == name {
			entries[i].fn = fn
			return nil
		}
	}
	r.hooks[phase] = append(entries, entry{name: name, fn: fn})
	return nil
}

// Remove deletes the hook registered under (phase, name), reporting whether
// it existed.
func (r *Registry) Remove(phase Type, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.hooks[phase]
	for i, e := range entries {
		if e.name == name {
			r.hooks[phase] = append(entries[:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns the hook names for a phase in execution order.
func (r *Registry) Names(phase Type) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.hooks[phase]
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// snapshot returns a stable copy of the phase's entries so invocation is not
// affected by concurrent registration.
func (r *Registry) snapshot(phase Type) []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.hooks[phase]
	out := make([]entry, len(entries))
	copy(out, entries)
	return out
}

// kind-scoped registries shared by all agents of the same kind.
var (
	globalMu   sync.Mutex
	globalRegs = make(map[string]*Registry)
)

// Global returns the process-wide registry for an agent kind, creating it on
// first use. All agents of that kind run these hooks before their instance
// hooks.
func Global(kind string) *Registry {
	globalMu.Lock()
	defer globalMu.Unlock()

	reg, ok := globalRegs[kind]
	if !ok {
		reg = NewRegistry()
		globalRegs[kind] = reg
	}
	return reg
}

// Run executes all hooks for s.Phase across the given registries in order
// (callers pass the kind-scoped registry first, then the instance registry).
// Patches from pre-phase hooks are applied to s as they are produced, so
// later hooks observe earlier patches. A hook error or panic is logged and
// skipped; it never aborts the remaining hooks.
func Run(logger logging.Logger, s *State, registries ...*Registry) {
	logger = logging.OrNoOp(logger)

	for _, reg := range registries {
		if reg == nil {
			continue
		}
		for _, e := range reg.snapshot(s.Phase) {
			patch, err := invoke(e, s)
			if err != nil {
				logger.Error("hook.failed", "phase", string(s.Phase), "hook", e.name, "error", err.Error())
				continue
			}
			s.apply(patch)
		}
	}
}

func invoke(e entry, s *State) (patch map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return e.fn(s)
}

// apply merges a pre-hook patch into the working state.
func (s *State) apply(patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	for k, v := range patch {
		if k == "msg" {
			if msg, ok := v.(*message.Msg); ok {
				s.Msg = msg
			}
			continue
		}
		if s.Metadata == nil {
			s.Metadata = make(map[string]any)
		}
		s.Metadata[k] = v
	}
}
