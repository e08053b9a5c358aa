package json

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/taskchat"
)

// toolCallDTO is the persisted form of a ToolInvocationRecord.
type toolCallDTO struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Result     string         `json:"result"`
}

// MarshalToolCalls encodes invocation records for storage. No records encode
// as nil so callers can store NULL.
func MarshalToolCalls(records []taskchat.ToolInvocationRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, nil
	}
	dtos := make([]toolCallDTO, len(records))
	for i, r := range records {
		params := r.Parameters
		if params == nil {
			params = map[string]any{}
		}
		dtos[i] = toolCallDTO{Tool: r.ToolName, Parameters: params, Result: r.Result}
	}
	data, err := json.Marshal(dtos)
	if err != nil {
		return nil, fmt.Errorf("marshal tool calls: %w", err)
	}
	return data, nil
}

// UnmarshalToolCalls decodes records produced by MarshalToolCalls. Empty input
// decodes as nil.
func UnmarshalToolCalls(data []byte) ([]taskchat.ToolInvocationRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var dtos []toolCallDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("unmarshal tool calls: %w", err)
	}
	records := make([]taskchat.ToolInvocationRecord, len(dtos))
	for i, d := range dtos {
		records[i] = taskchat.ToolInvocationRecord{ToolName: d.Tool, Parameters: d.Parameters, Result: d.Result}
	}
	return records, nil
}

// ToolCallsValue renders records the way the chat endpoint returns them.
func ToolCallsValue(records []taskchat.ToolInvocationRecord) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		params := r.Parameters
		if params == nil {
			params = map[string]any{}
		}
		out[i] = map[string]any{"tool": r.ToolName, "parameters": params, "result": r.Result}
	}
	return out
}
