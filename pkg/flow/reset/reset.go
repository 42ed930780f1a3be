// Package reset clears per-node execution records so a loop body can
// re-execute without stale outputs leaking into the next iteration.
package reset

import (
	"github.com/flowdeck/flowdeck/pkg/flow/execution"
	"github.com/flowdeck/flowdeck/pkg/flow/scope"
	"github.com/flowdeck/flowdeck/pkg/idwrap"
	"github.com/flowdeck/flowdeck/pkg/model/mflow"
)

// Nodes returns a new execution state in which each listed node's record
// is back to pending with no output and no error. Records outside the
// set, loop states, the context stack, and run variables are carried
// over untouched; the input state is never mutated.
func Nodes(st *execution.State, nodeIDs map[idwrap.IDWrap]struct{}) *execution.State {
	next := st.Clone()
	for id := range nodeIDs {
		rec, ok := next.NodeRecords[id]
		if !ok {
			continue
		}
		rec.State = mflow.NODE_STATE_PENDING
		rec.OutputData = nil
		rec.OutputDataCompressType = 0
		rec.Error = nil
		rec.CompletedAt = nil
		next.NodeRecords[id] = rec
	}
	return next
}

// Scope resets every node inside a loop's body.
func Scope(st *execution.State, sc *scope.LoopScope) *execution.State {
	return Nodes(st, sc.NodeIDs)
}
