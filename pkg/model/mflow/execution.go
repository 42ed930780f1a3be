//nolint:revive // exported
package mflow

import (
	json "github.com/goccy/go-json"

	"github.com/flowdeck/flowdeck/pkg/compress"
	"github.com/flowdeck/flowdeck/pkg/idwrap"
)

// NodeExecution is the per-node record kept inside a run's execution state.
type NodeExecution struct {
	NodeID                 idwrap.IDWrap `json:"node_id"`
	Name                   string        `json:"name"`
	State                  NodeState     `json:"state"`
	Error                  *string       `json:"error,omitempty"`
	OutputData             []byte        `json:"output_data,omitempty"`
	OutputDataCompressType int8          `json:"output_data_compress_type"`
	CompletedAt            *int64        `json:"completed_at,omitempty"`
}

func (ne *NodeExecution) GetOutputJSON() (json.RawMessage, error) {
	if ne.OutputData == nil {
		return nil, nil
	}
	if ne.OutputDataCompressType == compress.CompressTypeNone {
		return ne.OutputData, nil
	}
	return compress.Decompress(ne.OutputData, ne.OutputDataCompressType)
}

func (ne *NodeExecution) SetOutputJSON(data json.RawMessage) error {
	// For small data (< 1KB), don't compress
	if len(data) < 1024 {
		ne.OutputData = data
		ne.OutputDataCompressType = compress.CompressTypeNone
		return nil
	}

	compressed, err := compress.Compress(data, compress.CompressTypeZstd)
	if err != nil {
		return err
	}

	// Only use compressed if it's actually smaller
	if len(compressed) < len(data) {
		ne.OutputData = compressed
		ne.OutputDataCompressType = compress.CompressTypeZstd
	} else {
		ne.OutputData = data
		ne.OutputDataCompressType = compress.CompressTypeNone
	}
	return nil
}

func (ne *NodeExecution) SetOutput(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ne.SetOutputJSON(data)
}
