// Package loopengine is the facade the owning workflow executor drives:
// initialize a loop, fetch and commit batches, push and pop iteration
// contexts, reset the body between iterations, and finalize.
//
// The engine holds only derived graph data (scopes, edge map) for one
// run's lifetime. All mutable run state lives in the execution.State
// value passed into every call; operations return updated copies and
// perform no I/O and no locking.
package loopengine

import (
	"context"
	"io"
	"log/slog"

	"github.com/flowdeck/flowdeck/pkg/expression"
	"github.com/flowdeck/flowdeck/pkg/flow/execution"
	"github.com/flowdeck/flowdeck/pkg/flow/iteration"
	"github.com/flowdeck/flowdeck/pkg/flow/reset"
	"github.com/flowdeck/flowdeck/pkg/flow/scope"
	"github.com/flowdeck/flowdeck/pkg/idwrap"
	"github.com/flowdeck/flowdeck/pkg/model/mcondition"
	"github.com/flowdeck/flowdeck/pkg/model/mflow"
)

type Engine struct {
	nodes    []mflow.Node
	edges    []mflow.Edge
	edgesMap mflow.EdgesMap
	scopes   map[idwrap.IDWrap]*scope.LoopScope
	logger   *slog.Logger
}

// New derives nothing up front; scopes are computed lazily per loop node
// and cached for the engine's lifetime. A nil logger disables logging.
func New(nodes []mflow.Node, edges []mflow.Edge, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		nodes:    nodes,
		edges:    edges,
		edgesMap: mflow.NewEdgesMap(edges),
		scopes:   make(map[idwrap.IDWrap]*scope.LoopScope),
		logger:   logger,
	}
}

// ScopeOf analyzes the loop node's scope, caching the result. Fails with
// scope.ErrNodeNotFound when the loop node is not in the graph.
func (e *Engine) ScopeOf(loopNodeID idwrap.IDWrap) (*scope.LoopScope, error) {
	if sc, ok := e.scopes[loopNodeID]; ok {
		return sc, nil
	}
	sc, err := scope.Analyze(loopNodeID, e.nodes, e.edges)
	if err != nil {
		return nil, err
	}
	e.scopes[loopNodeID] = sc
	return sc, nil
}

// LoopTargets returns the entry nodes of the loop body.
func (e *Engine) LoopTargets(loopNodeID idwrap.IDWrap) []idwrap.IDWrap {
	return mflow.GetNextNodeID(e.edgesMap, loopNodeID, mflow.HandleLoop)
}

// ExitTargets returns the nodes the run continues with once the loop is
// done. Untagged edges follow the done branch as well.
func (e *Engine) ExitTargets(loopNodeID idwrap.IDWrap) []idwrap.IDWrap {
	out := mflow.GetNextNodeID(e.edgesMap, loopNodeID, mflow.HandleThen)
	return append(out, mflow.GetNextNodeID(e.edgesMap, loopNodeID, mflow.HandleUnspecified)...)
}

// InitializeLoop creates the iteration cursor for a loop entry. The loop
// node must exist in the graph; batchSize must be at least 1.
func (e *Engine) InitializeLoop(st *execution.State, loopNodeID idwrap.IDWrap, items []any, batchSize int) (*execution.State, error) {
	if _, err := e.ScopeOf(loopNodeID); err != nil {
		return nil, err
	}

	loopState, err := iteration.Initialize(items, batchSize)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("loop initialized",
		slog.String("loop_node_id", loopNodeID.String()),
		slog.Int("total_items", loopState.TotalItems),
		slog.Int("batch_size", batchSize))

	next := st.Clone()
	next.LoopStates[loopNodeID] = loopState
	return next, nil
}

// NextBatch returns the current batch without moving the cursor. A
// missing, uninitialized, or completed loop yields no batch rather than
// an error; the caller follows the exit edge.
func (e *Engine) NextBatch(st *execution.State, loopNodeID idwrap.IDWrap) (iteration.Batch, bool) {
	loopState, ok := st.LoopStates[loopNodeID]
	if !ok {
		return iteration.Batch{}, false
	}
	return iteration.NextBatch(loopState, loopNodeID)
}

// ShouldBreak evaluates the loop's break condition against the run
// variables. An empty condition never breaks.
func (e *Engine) ShouldBreak(ctx context.Context, st *execution.State, cond mcondition.Condition) (bool, error) {
	if cond.IsEmpty() {
		return false, nil
	}
	return expression.NewEnv(st.Vars).EvalBool(ctx, cond.Comparisons.Expression)
}

// Advance commits one iteration's results and moves the cursor. Unknown
// loop ids leave the state unchanged — the loop is treated as finished.
func (e *Engine) Advance(st *execution.State, loopNodeID idwrap.IDWrap, results []any) *execution.State {
	loopState, ok := st.LoopStates[loopNodeID]
	if !ok {
		return st
	}

	advanced := iteration.Advance(loopState, results)
	e.logger.Debug("loop advanced",
		slog.String("loop_node_id", loopNodeID.String()),
		slog.Int("run_index", advanced.RunIndex),
		slog.Int("next_item_index", advanced.NextItemIndex),
		slog.Bool("complete", advanced.IsComplete))

	next := st.Clone()
	next.LoopStates[loopNodeID] = advanced
	return next
}

// BeginIteration pushes the iteration's context onto the nesting stack.
// Call it when the iteration body starts executing.
func (e *Engine) BeginIteration(st *execution.State, c iteration.Context) *execution.State {
	next := st.Clone()
	next.Stack = next.Stack.Push(c)
	return next
}

// EndIteration pops the innermost open iteration.
func (e *Engine) EndIteration(st *execution.State) *execution.State {
	next := st.Clone()
	next.Stack = next.Stack.Pop()
	return next
}

// CompleteLoop force-finalizes a loop and returns the aggregated results
// collected so far. Stack entries for the loop are removed defensively
// in case an abnormal exit skipped the normal popping.
func (e *Engine) CompleteLoop(st *execution.State, loopNodeID idwrap.IDWrap) (*execution.State, []any) {
	loopState, ok := st.LoopStates[loopNodeID]
	if !ok {
		return st, nil
	}

	completed, results := iteration.Complete(loopState)
	e.logger.Debug("loop completed",
		slog.String("loop_node_id", loopNodeID.String()),
		slog.Int("iterations", completed.RunIndex),
		slog.Int("results", len(results)))

	next := st.Clone()
	next.LoopStates[loopNodeID] = completed
	next.Stack = next.Stack.Remove(loopNodeID)
	return next, results
}

// ResetScope clears the execution records of every node in the loop's
// body so the next iteration starts from pending state.
func (e *Engine) ResetScope(st *execution.State, loopNodeID idwrap.IDWrap) (*execution.State, error) {
	sc, err := e.ScopeOf(loopNodeID)
	if err != nil {
		return nil, err
	}
	return reset.Scope(st, sc), nil
}

// ContextsFor resolves every open iteration the node is nested inside,
// outermost first, using the scopes cached so far.
func (e *Engine) ContextsFor(st *execution.State, nodeID idwrap.IDWrap) []iteration.Context {
	return st.Stack.ContextsFor(nodeID, e.scopes)
}
