package flowbuilder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/flow/flowbuilder"
	"github.com/flowdeck/flowdeck/pkg/flow/scope"
	"github.com/flowdeck/flowdeck/pkg/model/mflow"
)

const batchFlowYAML = `
name: batch-enrichment
vars:
  records: [a, b, c]
nodes:
  - name: start
    kind: start
  - name: split1
    kind: loop
    x: 300
  - name: process1
    kind: agent
    x: 600
  - name: end1
    kind: noop
    x: 600
    y: 200
edges:
  - source: start
    target: split1
  - source: split1
    target: process1
    handle: loop
  - source: process1
    target: split1
    handle: then
  - source: split1
    target: end1
    handle: then
loops:
  - node: split1
    items: records
    batchSize: 2
    condition: failures >= 3
`

func TestParseAndBuild(t *testing.T) {
	def, err := flowbuilder.Parse([]byte(batchFlowYAML))
	require.NoError(t, err)
	assert.Equal(t, "batch-enrichment", def.Name)

	flow, err := def.Build(nil)
	require.NoError(t, err)

	require.Len(t, flow.Nodes, 4)
	require.Len(t, flow.Edges, 4)
	assert.Equal(t, flow.NodeIDsByName["start"], flow.StartNodeID)
	assert.Equal(t, []any{"a", "b", "c"}, flow.Vars["records"])

	splitID := flow.NodeIDsByName["split1"]
	spec, ok := flow.Loops[splitID]
	require.True(t, ok)
	assert.Equal(t, "records", spec.ItemsExpression)
	assert.Equal(t, 2, spec.BatchSize)
	assert.Equal(t, "failures >= 3", spec.Condition.Comparisons.Expression)

	// the built graph analyzes into the expected loop scope
	sc, err := scope.Analyze(splitID, flow.Nodes, flow.Edges)
	require.NoError(t, err)
	assert.Contains(t, sc.NodeIDs, flow.NodeIDsByName["process1"])
	assert.Contains(t, sc.ExitNodeIDs, flow.NodeIDsByName["end1"])
}

func TestBuildEdgeHandles(t *testing.T) {
	def, err := flowbuilder.Parse([]byte(batchFlowYAML))
	require.NoError(t, err)
	flow, err := def.Build(nil)
	require.NoError(t, err)

	edgesMap := mflow.NewEdgesMap(flow.Edges)
	splitID := flow.NodeIDsByName["split1"]

	loopTargets := mflow.GetNextNodeID(edgesMap, splitID, mflow.HandleLoop)
	require.Len(t, loopTargets, 1)
	assert.Equal(t, flow.NodeIDsByName["process1"], loopTargets[0])

	thenTargets := mflow.GetNextNodeID(edgesMap, splitID, mflow.HandleThen)
	require.Len(t, thenTargets, 1)
	assert.Equal(t, flow.NodeIDsByName["end1"], thenTargets[0])
}

func TestParseRejectsEmptyFlow(t *testing.T) {
	_, err := flowbuilder.Parse([]byte("name: empty\n"))
	require.Error(t, err)
}

func TestBuildRejectsUnknownReferences(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			name: "edge source",
			yaml: "name: f\nnodes:\n  - {name: a, kind: noop}\nedges:\n  - {source: ghost, target: a}\n",
		},
		{
			name: "edge target",
			yaml: "name: f\nnodes:\n  - {name: a, kind: noop}\nedges:\n  - {source: a, target: ghost}\n",
		},
		{
			name: "loop node",
			yaml: "name: f\nnodes:\n  - {name: a, kind: noop}\nloops:\n  - {node: ghost, items: xs}\n",
		},
		{
			name: "node kind",
			yaml: "name: f\nnodes:\n  - {name: a, kind: quantum}\n",
		},
		{
			name: "edge handle",
			yaml: "name: f\nnodes:\n  - {name: a, kind: noop}\n  - {name: b, kind: noop}\nedges:\n  - {source: a, target: b, handle: sideways}\n",
		},
		{
			name: "duplicate node name",
			yaml: "name: f\nnodes:\n  - {name: a, kind: noop}\n  - {name: a, kind: noop}\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def, err := flowbuilder.Parse([]byte(tc.yaml))
			require.NoError(t, err)
			_, err = def.Build(nil)
			require.Error(t, err)
		})
	}
}

func TestBuildDefaultsBatchSize(t *testing.T) {
	yamlDoc := "name: f\nnodes:\n  - {name: l, kind: loop}\nloops:\n  - {node: l, items: xs}\n"

	def, err := flowbuilder.Parse([]byte(yamlDoc))
	require.NoError(t, err)
	flow, err := def.Build(nil)
	require.NoError(t, err)

	spec := flow.Loops[flow.NodeIDsByName["l"]]
	assert.Equal(t, 1, spec.BatchSize)
}
