// Package iteration owns the batch cursor a loop node steps through and
// the per-iteration context handed to nodes inside the loop body.
//
// Every operation is a pure function over State values: NextBatch never
// mutates, Advance and Complete return updated copies. Serializing calls
// is the owning execution engine's responsibility.
package iteration

import (
	"errors"
	"time"

	"github.com/flowdeck/flowdeck/pkg/idwrap"
)

var ErrInvalidBatchSize = errors.New("batch size must be at least 1")

// State is one loop's cursor over its item collection. TotalItems is
// frozen at Initialize; NextItemIndex only ever grows in BatchSize steps.
type State struct {
	RunIndex          int        `json:"run_index"`
	NextItemIndex     int        `json:"next_item_index"`
	TotalItems        int        `json:"total_items"`
	BatchSize         int        `json:"batch_size"`
	Items             []any      `json:"items"`
	AggregatedResults []any      `json:"aggregated_results"`
	IsComplete        bool       `json:"is_complete"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// Context describes a single iteration while its body executes. Entries
// live on the run's context stack between iteration enter and exit.
type Context struct {
	LoopNodeID  idwrap.IDWrap `json:"loop_node_id"`
	RunIndex    int           `json:"run_index"`
	ItemIndex   int           `json:"item_index"`
	TotalItems  int           `json:"total_items"`
	BatchSize   int           `json:"batch_size"`
	IsLastBatch bool          `json:"is_last_batch"`
}

// Batch is one iteration's slice of the collection plus its context.
type Batch struct {
	Items   []any
	Context Context
}

// Initialize creates the cursor for a fresh loop entry. An empty item
// collection is valid and yields an immediately complete loop.
func Initialize(items []any, batchSize int) (State, error) {
	if batchSize < 1 {
		return State{}, ErrInvalidBatchSize
	}

	st := State{
		Items:      append([]any(nil), items...),
		TotalItems: len(items),
		BatchSize:  batchSize,
		StartedAt:  time.Now(),
	}
	if st.TotalItems == 0 {
		now := st.StartedAt
		st.IsComplete = true
		st.CompletedAt = &now
	}
	return st, nil
}

// NextBatch returns the batch the cursor currently points at. It is
// read-only: calling it repeatedly without an Advance in between returns
// the identical batch. The second return is false when the loop is
// complete or the cursor is past the collection, which callers interpret
// as "follow the exit edge".
func NextBatch(st State, loopNodeID idwrap.IDWrap) (Batch, bool) {
	if st.IsComplete || st.NextItemIndex >= st.TotalItems {
		return Batch{}, false
	}

	end := st.NextItemIndex + st.BatchSize
	if end > st.TotalItems {
		end = st.TotalItems
	}

	return Batch{
		Items: st.Items[st.NextItemIndex:end],
		Context: Context{
			LoopNodeID:  loopNodeID,
			RunIndex:    st.RunIndex,
			ItemIndex:   st.NextItemIndex,
			TotalItems:  st.TotalItems,
			BatchSize:   st.BatchSize,
			IsLastBatch: st.NextItemIndex+st.BatchSize >= st.TotalItems,
		},
	}, true
}

// Advance commits one iteration: results are appended in order, the
// cursor moves one batch forward, and the state flips to complete once
// the cursor passes the collection end. The input state is not mutated.
func Advance(st State, results []any) State {
	if st.IsComplete {
		return st
	}

	next := st
	next.AggregatedResults = append(append([]any(nil), st.AggregatedResults...), results...)
	next.NextItemIndex += st.BatchSize
	next.RunIndex++
	if next.NextItemIndex >= next.TotalItems {
		now := time.Now()
		next.IsComplete = true
		next.CompletedAt = &now
	}
	return next
}

// Complete force-finalizes the loop, e.g. on an early break decided by
// the owning engine, and returns the aggregated results collected so far.
func Complete(st State) (State, []any) {
	next := st
	if !next.IsComplete {
		now := time.Now()
		next.IsComplete = true
		next.CompletedAt = &now
	}
	return next, append([]any(nil), next.AggregatedResults...)
}
