//nolint:revive // exported
package mflow

import (
	"github.com/flowdeck/flowdeck/pkg/idwrap"
)

type NodeKind = int32

const (
	NODE_KIND_UNSPECIFIED  NodeKind = 0
	NODE_KIND_MANUAL_START NodeKind = 1
	NODE_KIND_LOOP         NodeKind = 2
	NODE_KIND_AGENT        NodeKind = 3
	NODE_KIND_TOOL         NodeKind = 4
	NODE_KIND_CODE         NodeKind = 5
	NODE_KIND_NO_OP        NodeKind = 6
)

type NodeState = int8

const (
	NODE_STATE_UNSPECIFIED NodeState = 0
	NODE_STATE_PENDING     NodeState = 1
	NODE_STATE_RUNNING     NodeState = 2
	NODE_STATE_SUCCESS     NodeState = 3
	NODE_STATE_FAILURE     NodeState = 4
	NODE_STATE_CANCELED    NodeState = 5
)

func StringNodeState(a NodeState) string {
	return [...]string{"Unspecified", "Pending", "Running", "Success", "Failure", "Canceled"}[a]
}

type Node struct {
	ID        idwrap.IDWrap
	FlowID    idwrap.IDWrap
	Name      string
	NodeKind  NodeKind
	PositionX float64
	PositionY float64
	State     NodeState
}
