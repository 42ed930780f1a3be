//nolint:revive // exported
package mflow

import (
	"errors"

	"github.com/flowdeck/flowdeck/pkg/idwrap"
)

type EdgeHandle = int32

const (
	HandleUnspecified EdgeHandle = iota
	HandleThen
	HandleElse
	HandleLoop
	HandleLength
)

var ErrEdgeNotFound = errors.New("edge not found")

type Edge struct {
	ID            idwrap.IDWrap
	FlowID        idwrap.IDWrap
	SourceID      idwrap.IDWrap
	TargetID      idwrap.IDWrap
	SourceHandler EdgeHandle
}

type (
	EdgesMap map[idwrap.IDWrap]map[EdgeHandle][]idwrap.IDWrap
)

func GetNextNodeID(edgesMap EdgesMap, sourceID idwrap.IDWrap, handle EdgeHandle) []idwrap.IDWrap {
	edges, ok := edgesMap[sourceID]
	if !ok {
		return nil
	}
	edge, ok := edges[handle]
	if !ok {
		return nil
	}

	return edge
}

func NewEdge(id, sourceID, targetID idwrap.IDWrap, sourceHandlerID EdgeHandle) Edge {
	return Edge{
		ID:            id,
		SourceID:      sourceID,
		TargetID:      targetID,
		SourceHandler: sourceHandlerID,
	}
}

func NewEdges(edges ...Edge) []Edge {
	return edges
}

func NewEdgesMap(edges []Edge) EdgesMap {
	edgesMap := make(EdgesMap)
	for _, edge := range edges {
		if _, ok := edgesMap[edge.SourceID]; !ok {
			edgesMap[edge.SourceID] = make(map[EdgeHandle][]idwrap.IDWrap)
		}
		a := edgesMap[edge.SourceID][edge.SourceHandler]
		a = append(a, edge.TargetID)
		edgesMap[edge.SourceID][edge.SourceHandler] = a
	}
	return edgesMap
}

// OutgoingEdges returns every edge whose source is the given node, in input order.
func OutgoingEdges(edges []Edge, sourceID idwrap.IDWrap) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.SourceID == sourceID {
			out = append(out, e)
		}
	}
	return out
}
