package loopctx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/flow/iteration"
	"github.com/flowdeck/flowdeck/pkg/flow/loopctx"
	"github.com/flowdeck/flowdeck/pkg/flow/scope"
	"github.com/flowdeck/flowdeck/pkg/idwrap"
)

func ctxFor(loopID idwrap.IDWrap, runIndex int) iteration.Context {
	return iteration.Context{LoopNodeID: loopID, RunIndex: runIndex}
}

func scopeWith(loopID idwrap.IDWrap, members ...idwrap.IDWrap) *scope.LoopScope {
	sc := &scope.LoopScope{
		LoopNodeID:      loopID,
		NodeIDs:         make(map[idwrap.IDWrap]struct{}),
		FeedbackNodeIDs: make(map[idwrap.IDWrap]struct{}),
		ExitNodeIDs:     make(map[idwrap.IDWrap]struct{}),
	}
	for _, m := range members {
		sc.NodeIDs[m] = struct{}{}
	}
	return sc
}

func TestPushPopLIFO(t *testing.T) {
	outer := idwrap.NewNow()
	inner := idwrap.NewNow()

	var s loopctx.Stack
	s = s.Push(ctxFor(outer, 0))
	s = s.Push(ctxFor(inner, 0))
	require.Equal(t, 2, s.Depth())

	top, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, inner, top.LoopNodeID)

	s = s.Pop()
	top, ok = s.Current()
	require.True(t, ok)
	assert.Equal(t, outer, top.LoopNodeID)
}

func TestPopEmptyIsNoOp(t *testing.T) {
	var s loopctx.Stack
	assert.Zero(t, s.Pop().Depth())

	_, ok := s.Current()
	assert.False(t, ok)
}

func TestPushIsCopyOnWrite(t *testing.T) {
	loopID := idwrap.NewNow()

	var base loopctx.Stack
	base = base.Push(ctxFor(loopID, 0))

	grown := base.Push(ctxFor(loopID, 1))
	popped := base.Pop()

	assert.Equal(t, 1, base.Depth())
	assert.Equal(t, 2, grown.Depth())
	assert.Equal(t, 0, popped.Depth())
}

func TestContextsForNestedOrdering(t *testing.T) {
	outer := idwrap.NewNow()
	inner := idwrap.NewNow()
	nodeInBoth := idwrap.NewNow()
	nodeInOuterOnly := idwrap.NewNow()

	scopes := map[idwrap.IDWrap]*scope.LoopScope{
		outer: scopeWith(outer, nodeInBoth, nodeInOuterOnly, inner),
		inner: scopeWith(inner, nodeInBoth),
	}

	var s loopctx.Stack
	s = s.Push(ctxFor(outer, 2))
	s = s.Push(ctxFor(inner, 5))

	both := s.ContextsFor(nodeInBoth, scopes)
	require.Len(t, both, 2)
	assert.Equal(t, outer, both[0].LoopNodeID)
	assert.Equal(t, inner, both[1].LoopNodeID)

	outerOnly := s.ContextsFor(nodeInOuterOnly, scopes)
	require.Len(t, outerOnly, 1)
	assert.Equal(t, outer, outerOnly[0].LoopNodeID)

	// popping removes only the innermost entry
	s = s.Pop()
	both = s.ContextsFor(nodeInBoth, scopes)
	require.Len(t, both, 1)
	assert.Equal(t, outer, both[0].LoopNodeID)
}

func TestRemoveDropsAllEntriesForLoop(t *testing.T) {
	a := idwrap.NewNow()
	b := idwrap.NewNow()

	var s loopctx.Stack
	s = s.Push(ctxFor(a, 0))
	s = s.Push(ctxFor(b, 0))
	s = s.Push(ctxFor(a, 1))

	s = s.Remove(a)
	require.Equal(t, 1, s.Depth())
	top, _ := s.Current()
	assert.Equal(t, b, top.LoopNodeID)
}
