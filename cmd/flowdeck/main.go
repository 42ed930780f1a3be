// Command flowdeck loads a workflow definition and drives its loops
// end to end with a no-op executor, printing each step. Useful for
// checking how a flow's loop scopes and batching behave before wiring
// real node executors.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/flowdeck/flowdeck/pkg/expression"
	"github.com/flowdeck/flowdeck/pkg/flow/execution"
	"github.com/flowdeck/flowdeck/pkg/flow/flowbuilder"
	"github.com/flowdeck/flowdeck/pkg/flow/loopengine"
	"github.com/flowdeck/flowdeck/pkg/idwrap"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "flowdeck:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: flowdeck <flow.yaml>")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	def, err := flowbuilder.Parse(data)
	if err != nil {
		return err
	}
	flow, err := def.Build(logger)
	if err != nil {
		return err
	}

	engine := loopengine.New(flow.Nodes, flow.Edges, logger)
	st := execution.NewState()
	for k, v := range flow.Vars {
		st.Vars[k] = v
	}

	ctx := context.Background()
	for loopNodeID, spec := range flow.Loops {
		if err := runLoop(ctx, engine, &st, flow, loopNodeID, spec); err != nil {
			return err
		}
	}
	return nil
}

// runLoop drives one loop's full lifecycle: initialize, then fetch and
// commit batches until the cursor reports no batch.
func runLoop(ctx context.Context, engine *loopengine.Engine, st **execution.State, flow *flowbuilder.Flow, loopNodeID idwrap.IDWrap, spec flowbuilder.LoopSpec) error {
	sc, err := engine.ScopeOf(loopNodeID)
	if err != nil {
		return err
	}

	items, err := expression.NewEnv((*st).Vars).EvalItems(ctx, spec.ItemsExpression)
	if err != nil {
		return err
	}

	next, err := engine.InitializeLoop(*st, loopNodeID, items, spec.BatchSize)
	if err != nil {
		return err
	}
	*st = next

	names := make(map[idwrap.IDWrap]string, len(flow.Nodes))
	for _, n := range flow.Nodes {
		names[n.ID] = n.Name
	}

	for {
		brk, err := engine.ShouldBreak(ctx, *st, spec.Condition)
		if err != nil {
			return err
		}
		if brk {
			completed, results := engine.CompleteLoop(*st, loopNodeID)
			*st = completed
			fmt.Printf("loop %s broke early with %d results\n", names[loopNodeID], len(results))
			return nil
		}

		batch, ok := engine.NextBatch(*st, loopNodeID)
		if !ok {
			break
		}

		*st = engine.BeginIteration(*st, batch.Context)

		// Stub executor: every scope node echoes the batch it saw.
		results := make([]any, 0, len(batch.Items))
		for nodeID := range sc.NodeIDs {
			updated, err := (*st).WithNodeOutput(nodeID, names[nodeID], map[string]any{
				"itemIndex": batch.Context.ItemIndex,
				"items":     batch.Items,
			})
			if err != nil {
				return err
			}
			*st = updated
		}
		results = append(results, batch.Items...)

		*st = engine.EndIteration(*st)
		*st = engine.Advance(*st, loopNodeID, results)

		if next, err := engine.ResetScope(*st, loopNodeID); err == nil {
			*st = next
		}
	}

	loopState := (*st).LoopStates[loopNodeID]
	fmt.Printf("loop %s finished: %d iterations, %d results\n",
		names[loopNodeID], loopState.RunIndex, len(loopState.AggregatedResults))
	return nil
}
