// Package loopctx tracks the ordered nesting of currently-open loop
// iterations. The stack is an explicit value, not the call stack, so a
// mid-loop run can be snapshotted and resumed.
package loopctx

import (
	"github.com/flowdeck/flowdeck/pkg/flow/iteration"
	"github.com/flowdeck/flowdeck/pkg/flow/scope"
	"github.com/flowdeck/flowdeck/pkg/idwrap"
)

// Stack is ordered outermost-to-innermost. All operations are
// copy-on-write; the receiver is never mutated.
type Stack []iteration.Context

func (s Stack) Push(c iteration.Context) Stack {
	next := make(Stack, len(s), len(s)+1)
	copy(next, s)
	return append(next, c)
}

// Pop removes the innermost entry. Popping an empty stack is a no-op so
// cleanup paths can call it speculatively.
func (s Stack) Pop() Stack {
	if len(s) == 0 {
		return s
	}
	next := make(Stack, len(s)-1)
	copy(next, s[:len(s)-1])
	return next
}

func (s Stack) Current() (iteration.Context, bool) {
	if len(s) == 0 {
		return iteration.Context{}, false
	}
	return s[len(s)-1], true
}

func (s Stack) Depth() int {
	return len(s)
}

func (s Stack) Clone() Stack {
	if s == nil {
		return nil
	}
	next := make(Stack, len(s))
	copy(next, s)
	return next
}

// ContextsFor returns every open iteration whose loop scope contains the
// node, outermost first. A node nested in two loops gets both contexts,
// which is what composite iteration addressing resolves against.
func (s Stack) ContextsFor(nodeID idwrap.IDWrap, scopes map[idwrap.IDWrap]*scope.LoopScope) []iteration.Context {
	var out []iteration.Context
	for _, c := range s {
		sc, ok := scopes[c.LoopNodeID]
		if !ok {
			continue
		}
		if sc.Contains(nodeID) {
			out = append(out, c)
		}
	}
	return out
}

// Remove drops every entry belonging to the given loop. Used by forced
// completion in case normal popping was skipped on an abnormal exit.
func (s Stack) Remove(loopNodeID idwrap.IDWrap) Stack {
	next := make(Stack, 0, len(s))
	for _, c := range s {
		if c.LoopNodeID == loopNodeID {
			continue
		}
		next = append(next, c)
	}
	return next
}
