// Package flowbuilder turns a YAML workflow definition into the graph
// model and per-loop configuration the loop engine consumes. Node
// references inside the document are by name; ULIDs are assigned here.
package flowbuilder

import (
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/flowdeck/flowdeck/pkg/idwrap"
	"github.com/flowdeck/flowdeck/pkg/model/mcondition"
	"github.com/flowdeck/flowdeck/pkg/model/mflow"
)

type Definition struct {
	Name  string         `yaml:"name"`
	Vars  map[string]any `yaml:"vars"`
	Nodes []NodeDef      `yaml:"nodes"`
	Edges []EdgeDef      `yaml:"edges"`
	Loops []LoopDef      `yaml:"loops"`
}

type NodeDef struct {
	Name string  `yaml:"name"`
	Kind string  `yaml:"kind"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
}

type EdgeDef struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Handle string `yaml:"handle"`
}

type LoopDef struct {
	Node      string `yaml:"node"`
	Items     string `yaml:"items"`
	BatchSize int    `yaml:"batchSize"`
	Condition string `yaml:"condition"`
}

// LoopSpec is the built per-loop configuration.
type LoopSpec struct {
	ItemsExpression string
	BatchSize       int
	Condition       mcondition.Condition
}

// Flow is the built graph plus loop configs, ready for the loop engine.
type Flow struct {
	Name          string
	Vars          map[string]any
	Nodes         []mflow.Node
	Edges         []mflow.Edge
	Loops         map[idwrap.IDWrap]LoopSpec
	NodeIDsByName map[string]idwrap.IDWrap
	StartNodeID   idwrap.IDWrap
}

var nodeKindLookup = map[string]mflow.NodeKind{
	"start": mflow.NODE_KIND_MANUAL_START,
	"loop":  mflow.NODE_KIND_LOOP,
	"agent": mflow.NODE_KIND_AGENT,
	"tool":  mflow.NODE_KIND_TOOL,
	"code":  mflow.NODE_KIND_CODE,
	"noop":  mflow.NODE_KIND_NO_OP,
}

var edgeHandleLookup = map[string]mflow.EdgeHandle{
	"":     mflow.HandleUnspecified,
	"then": mflow.HandleThen,
	"else": mflow.HandleElse,
	"loop": mflow.HandleLoop,
}

func Parse(data []byte) (*Definition, error) {
	def := &Definition{}
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, fmt.Errorf("parse flow definition: %w", err)
	}
	if len(def.Nodes) == 0 {
		return nil, fmt.Errorf("flow %q has no nodes", def.Name)
	}
	return def, nil
}

// Build assigns IDs and resolves every by-name reference. A nil logger
// disables logging.
func (d *Definition) Build(logger *slog.Logger) (*Flow, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	flowID := idwrap.NewNow()
	flow := &Flow{
		Name:          d.Name,
		Vars:          d.Vars,
		Loops:         make(map[idwrap.IDWrap]LoopSpec),
		NodeIDsByName: make(map[string]idwrap.IDWrap, len(d.Nodes)),
	}

	for _, nd := range d.Nodes {
		if nd.Name == "" {
			return nil, fmt.Errorf("flow %q: node without a name", d.Name)
		}
		if _, exists := flow.NodeIDsByName[nd.Name]; exists {
			return nil, fmt.Errorf("flow %q: duplicate node name %q", d.Name, nd.Name)
		}
		kind, ok := nodeKindLookup[nd.Kind]
		if !ok {
			return nil, fmt.Errorf("flow %q: node %q has unknown kind %q", d.Name, nd.Name, nd.Kind)
		}

		id := idwrap.NewNow()
		flow.NodeIDsByName[nd.Name] = id
		flow.Nodes = append(flow.Nodes, mflow.Node{
			ID:        id,
			FlowID:    flowID,
			Name:      nd.Name,
			NodeKind:  kind,
			PositionX: nd.X,
			PositionY: nd.Y,
		})
		if kind == mflow.NODE_KIND_MANUAL_START {
			flow.StartNodeID = id
		}
	}

	for _, ed := range d.Edges {
		sourceID, ok := flow.NodeIDsByName[ed.Source]
		if !ok {
			return nil, fmt.Errorf("flow %q: edge source %q is not a node", d.Name, ed.Source)
		}
		targetID, ok := flow.NodeIDsByName[ed.Target]
		if !ok {
			return nil, fmt.Errorf("flow %q: edge target %q is not a node", d.Name, ed.Target)
		}
		handle, ok := edgeHandleLookup[ed.Handle]
		if !ok {
			return nil, fmt.Errorf("flow %q: edge %s -> %s has unknown handle %q", d.Name, ed.Source, ed.Target, ed.Handle)
		}
		flow.Edges = append(flow.Edges, mflow.NewEdge(idwrap.NewNow(), sourceID, targetID, handle))
	}

	for _, ld := range d.Loops {
		nodeID, ok := flow.NodeIDsByName[ld.Node]
		if !ok {
			return nil, fmt.Errorf("flow %q: loop config references unknown node %q", d.Name, ld.Node)
		}
		batchSize := ld.BatchSize
		if batchSize == 0 {
			batchSize = 1
		}
		flow.Loops[nodeID] = LoopSpec{
			ItemsExpression: ld.Items,
			BatchSize:       batchSize,
			Condition:       mcondition.New(ld.Condition),
		}
	}

	logger.Debug("flow built",
		slog.String("flow", d.Name),
		slog.Int("nodes", len(flow.Nodes)),
		slog.Int("edges", len(flow.Edges)),
		slog.Int("loops", len(flow.Loops)))

	return flow, nil
}
