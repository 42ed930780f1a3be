package execution_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/flow/execution"
	"github.com/flowdeck/flowdeck/pkg/flow/iteration"
	"github.com/flowdeck/flowdeck/pkg/idwrap"
	"github.com/flowdeck/flowdeck/pkg/model/mflow"
)

func TestCloneIsolation(t *testing.T) {
	nodeID := idwrap.NewNow()
	loopID := idwrap.NewNow()

	st := execution.NewState()
	st.Vars["a"] = 1

	clone := st.Clone()
	clone.Vars["a"] = 2
	clone.NodeRecords[nodeID] = mflow.NodeExecution{NodeID: nodeID, Name: "n"}
	loopState, err := iteration.Initialize([]any{"x"}, 1)
	require.NoError(t, err)
	clone.LoopStates[loopID] = loopState
	clone.Stack = clone.Stack.Push(iteration.Context{LoopNodeID: loopID})

	assert.Equal(t, 1, st.Vars["a"])
	assert.Empty(t, st.NodeRecords)
	assert.Empty(t, st.LoopStates)
	assert.Zero(t, st.Stack.Depth())
}

func TestWithNodeOutputRecordsSuccess(t *testing.T) {
	nodeID := idwrap.NewNow()

	st := execution.NewState()
	next, err := st.WithNodeOutput(nodeID, "agent1", map[string]any{"answer": 42})
	require.NoError(t, err)

	rec := next.NodeRecords[nodeID]
	assert.Equal(t, "agent1", rec.Name)
	assert.Equal(t, mflow.NODE_STATE_SUCCESS, rec.State)
	require.NotNil(t, rec.CompletedAt)

	out, err := rec.GetOutputJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":42}`, string(out))

	// the original state was not written to
	assert.Empty(t, st.NodeRecords)
}

func TestLargeOutputIsCompressed(t *testing.T) {
	nodeID := idwrap.NewNow()
	big := strings.Repeat("flowdeck ", 1024)

	st := execution.NewState()
	next, err := st.WithNodeOutput(nodeID, "code1", big)
	require.NoError(t, err)

	rec := next.NodeRecords[nodeID]
	assert.NotZero(t, rec.OutputDataCompressType)

	out, err := rec.GetOutputJSON()
	require.NoError(t, err)
	assert.Contains(t, string(out), "flowdeck")
}

func TestSnapshotRestoreMidLoop(t *testing.T) {
	nodeID := idwrap.NewNow()
	loopID := idwrap.NewNow()

	st := execution.NewState()
	st.Vars["env"] = "prod"

	var err error
	st, err = st.WithNodeOutput(nodeID, "process1", map[string]any{"done": true})
	require.NoError(t, err)

	loopState, err := iteration.Initialize([]any{"a", "b", "c"}, 2)
	require.NoError(t, err)
	loopState = iteration.Advance(loopState, []any{"rA", "rB"})
	st.LoopStates[loopID] = loopState
	st.Stack = st.Stack.Push(iteration.Context{LoopNodeID: loopID, RunIndex: 1, ItemIndex: 2})

	data, err := st.Snapshot()
	require.NoError(t, err)

	restored, err := execution.Restore(data)
	require.NoError(t, err)

	assert.Equal(t, st.RunID, restored.RunID)
	assert.Equal(t, "prod", restored.Vars["env"])

	restoredLoop := restored.LoopStates[loopID]
	assert.Equal(t, 2, restoredLoop.NextItemIndex)
	assert.Equal(t, 1, restoredLoop.RunIndex)
	assert.Len(t, restoredLoop.AggregatedResults, 2)
	assert.False(t, restoredLoop.IsComplete)

	top, ok := restored.Stack.Current()
	require.True(t, ok)
	assert.Equal(t, loopID, top.LoopNodeID)

	rec := restored.NodeRecords[nodeID]
	out, err := rec.GetOutputJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"done":true}`, string(out))
}

func TestRestoreRejectsGarbage(t *testing.T) {
	_, err := execution.Restore(nil)
	require.Error(t, err)

	_, err = execution.Restore([]byte{0, '{'})
	require.Error(t, err)
}
