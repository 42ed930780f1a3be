// Package scope statically splits a workflow graph around a loop node:
// which nodes iterate inside the loop body, which node closes an
// iteration, and which nodes sit on the exit path.
package scope

import (
	"errors"
	"fmt"

	"github.com/flowdeck/flowdeck/pkg/idwrap"
	"github.com/flowdeck/flowdeck/pkg/model/mflow"
)

var ErrNodeNotFound = errors.New("node not found")

// LoopScope is the analysis result for one loop node. Invariants:
// the loop node is never part of NodeIDs, FeedbackNodeIDs is a subset of
// NodeIDs, and ExitNodeIDs is disjoint from NodeIDs.
type LoopScope struct {
	LoopNodeID      idwrap.IDWrap
	NodeIDs         map[idwrap.IDWrap]struct{}
	FeedbackNodeIDs map[idwrap.IDWrap]struct{}
	ExitNodeIDs     map[idwrap.IDWrap]struct{}
}

// Contains reports whether the node iterates inside this loop's body.
func (s *LoopScope) Contains(nodeID idwrap.IDWrap) bool {
	_, ok := s.NodeIDs[nodeID]
	return ok
}

// Analyze classifies every node reachable from the loop node's loop-body
// edges. Edges tagged HandleLoop continue the iteration; every other
// outgoing handle of the loop node (HandleThen, HandleElse, or untagged)
// is treated as the done branch.
//
// The traversal is a visited-set worklist: the loop node itself is never
// expanded, which bounds the walk on the deliberate body-to-loop cycle,
// and exit nodes are boundaries the walk never crosses.
func Analyze(loopNodeID idwrap.IDWrap, nodes []mflow.Node, edges []mflow.Edge) (*LoopScope, error) {
	found := false
	for _, n := range nodes {
		if n.ID == loopNodeID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: loop node %s", ErrNodeNotFound, loopNodeID.String())
	}

	outgoing := make(map[idwrap.IDWrap][]mflow.Edge)
	for _, e := range edges {
		outgoing[e.SourceID] = append(outgoing[e.SourceID], e)
	}

	sc := &LoopScope{
		LoopNodeID:      loopNodeID,
		NodeIDs:         make(map[idwrap.IDWrap]struct{}),
		FeedbackNodeIDs: make(map[idwrap.IDWrap]struct{}),
		ExitNodeIDs:     make(map[idwrap.IDWrap]struct{}),
	}

	var queue []idwrap.IDWrap
	for _, e := range outgoing[loopNodeID] {
		if e.SourceHandler == mflow.HandleLoop {
			queue = append(queue, e.TargetID)
		} else {
			sc.ExitNodeIDs[e.TargetID] = struct{}{}
		}
	}

	visited := make(map[idwrap.IDWrap]struct{})
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == loopNodeID {
			// Cycle boundary: the loop node is never re-expanded.
			continue
		}
		if _, ok := visited[current]; ok {
			continue
		}
		visited[current] = struct{}{}

		if _, ok := sc.ExitNodeIDs[current]; ok {
			// Exit boundary: reachable through the body but not part of it.
			continue
		}

		for _, e := range outgoing[current] {
			switch {
			case e.TargetID == loopNodeID:
				sc.FeedbackNodeIDs[current] = struct{}{}
			case hasKey(sc.ExitNodeIDs, e.TargetID):
			default:
				if _, ok := visited[e.TargetID]; !ok {
					queue = append(queue, e.TargetID)
				}
			}
		}
	}

	for id := range visited {
		if _, ok := sc.ExitNodeIDs[id]; ok {
			continue
		}
		sc.NodeIDs[id] = struct{}{}
	}

	return sc, nil
}

func hasKey(set map[idwrap.IDWrap]struct{}, id idwrap.IDWrap) bool {
	_, ok := set[id]
	return ok
}
