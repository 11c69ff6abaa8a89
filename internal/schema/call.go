package schema

import (
	"encoding/json"
	"fmt"
)

// Status is the terminal state of one tool call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// CallRequest is one function call delivered by a runtime (the live session
// or the twin backend). ID is an opaque correlation token echoed back in the
// result; twin-path calls that arrive without one get a synthesized ID.
type CallRequest struct {
	ID   string
	Name string
	Args map[string]any
}

// CallResult is the canonical result envelope for both call paths. Exactly
// one of Output/Error carries data, matching Status. The wire adapters in
// gateway and twin map this onto their respective field names; nothing else
// in the codebase deals in wire shapes.
type CallResult struct {
	ID     string
	Name   string
	Status Status
	Output any
	Error  string
}

// Success builds a success-status result.
func Success(id, name string, output any) CallResult {
	return CallResult{ID: id, Name: name, Status: StatusSuccess, Output: output}
}

// Failure builds an error-status result.
func Failure(id, name, message string) CallResult {
	return CallResult{ID: id, Name: name, Status: StatusError, Error: message}
}

// DecodeArgs normalizes tool-call arguments that arrive either as an
// already-parsed object or as a JSON-encoded string. nil decodes to an empty
// map so tools never see nil args.
func DecodeArgs(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		if v == "" {
			return map[string]any{}, nil
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(v), &args); err != nil {
			return nil, fmt.Errorf("decode arguments string: %w", err)
		}
		if args == nil {
			args = map[string]any{}
		}
		return args, nil
	case json.RawMessage:
		return DecodeArgs(string(v))
	default:
		return nil, fmt.Errorf("unsupported arguments type %T", raw)
	}
}
