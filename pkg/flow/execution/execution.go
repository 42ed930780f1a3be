// Package execution holds the run-scoped state the loop engine operates
// on: per-node execution records, per-loop iteration cursors, the loop
// context stack, and free-form run variables.
//
// The state is owned by the external execution engine and passed
// explicitly into every operation. Mutating operations go through Clone
// and return a new value, so the owner can snapshot, persist, or replay
// a run without aliasing bugs.
package execution

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/flowdeck/flowdeck/pkg/compress"
	"github.com/flowdeck/flowdeck/pkg/flow/iteration"
	"github.com/flowdeck/flowdeck/pkg/flow/loopctx"
	"github.com/flowdeck/flowdeck/pkg/idwrap"
	"github.com/flowdeck/flowdeck/pkg/model/mflow"
)

type State struct {
	RunID       uuid.UUID                             `json:"run_id"`
	NodeRecords map[idwrap.IDWrap]mflow.NodeExecution `json:"node_records"`
	LoopStates  map[idwrap.IDWrap]iteration.State     `json:"loop_states"`
	Stack       loopctx.Stack                         `json:"stack"`
	Vars        map[string]any                        `json:"vars"`
}

func NewState() *State {
	return &State{
		RunID:       uuid.New(),
		NodeRecords: make(map[idwrap.IDWrap]mflow.NodeExecution),
		LoopStates:  make(map[idwrap.IDWrap]iteration.State),
		Vars:        make(map[string]any),
	}
}

// Clone is the copy-on-write primitive. Containers are copied; record
// and loop-state values are themselves values, so entries can be
// replaced on the clone without touching the original.
func (s *State) Clone() *State {
	next := &State{
		RunID:       s.RunID,
		NodeRecords: make(map[idwrap.IDWrap]mflow.NodeExecution, len(s.NodeRecords)),
		LoopStates:  make(map[idwrap.IDWrap]iteration.State, len(s.LoopStates)),
		Stack:       s.Stack.Clone(),
		Vars:        make(map[string]any, len(s.Vars)),
	}
	for k, v := range s.NodeRecords {
		next.NodeRecords[k] = v
	}
	for k, v := range s.LoopStates {
		next.LoopStates[k] = v
	}
	for k, v := range s.Vars {
		next.Vars[k] = v
	}
	return next
}

// WithNodeOutput records a successful node execution.
func (s *State) WithNodeOutput(nodeID idwrap.IDWrap, name string, output any) (*State, error) {
	rec := mflow.NodeExecution{
		NodeID: nodeID,
		Name:   name,
		State:  mflow.NODE_STATE_SUCCESS,
	}
	if err := rec.SetOutput(output); err != nil {
		return nil, fmt.Errorf("marshal output for node %s: %w", name, err)
	}
	completed := time.Now().UnixMilli()
	rec.CompletedAt = &completed

	next := s.Clone()
	next.NodeRecords[nodeID] = rec
	return next, nil
}

// WithNodeError records a failed node execution.
func (s *State) WithNodeError(nodeID idwrap.IDWrap, name string, nodeErr error) *State {
	msg := nodeErr.Error()
	completed := time.Now().UnixMilli()

	next := s.Clone()
	next.NodeRecords[nodeID] = mflow.NodeExecution{
		NodeID:      nodeID,
		Name:        name,
		State:       mflow.NODE_STATE_FAILURE,
		Error:       &msg,
		CompletedAt: &completed,
	}
	return next
}

// WithVar sets one run variable on a copy of the state.
func (s *State) WithVar(key string, value any) *State {
	next := s.Clone()
	next.Vars[key] = value
	return next
}

// Snapshot serializes the state for durable storage. The first byte is
// the compress type of the JSON payload that follows; payloads under 1KB
// stay uncompressed.
func (s *State) Snapshot() ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal execution state: %w", err)
	}

	compressType := compress.CompressTypeNone
	if len(payload) >= 1024 {
		compressed, err := compress.Compress(payload, compress.CompressTypeZstd)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(payload) {
			payload = compressed
			compressType = compress.CompressTypeZstd
		}
	}

	out := make([]byte, 0, len(payload)+1)
	out = append(out, byte(compressType))
	return append(out, payload...), nil
}

// Restore rebuilds a state from a Snapshot payload.
func Restore(data []byte) (*State, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("snapshot too short: %d bytes", len(data))
	}

	payload, err := compress.Decompress(data[1:], compress.CompressType(data[0]))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	st := &State{}
	if err := json.Unmarshal(payload, st); err != nil {
		return nil, fmt.Errorf("unmarshal execution state: %w", err)
	}
	if st.NodeRecords == nil {
		st.NodeRecords = make(map[idwrap.IDWrap]mflow.NodeExecution)
	}
	if st.LoopStates == nil {
		st.LoopStates = make(map[idwrap.IDWrap]iteration.State)
	}
	if st.Vars == nil {
		st.Vars = make(map[string]any)
	}
	return st, nil
}
