package stream

import (
	"encoding/json"
	"fmt"
)

// jsonlLine is the shape of a legacy-path JSONL line: a discriminated union
// carrying either a voice chunk or a completed tool call, pre-decomposed
// into the same Item shape the live block-streaming path produces. This
// exists so callers that still emit newline-delimited records (rather than
// the provider's native content-block stream) can be decomposed with the
// same rules (§4.5 "recognised JSONL lines in legacy paths").
type jsonlLine struct {
	Type string          `json:"type"` // "voice" or "tool_call"
	Text string          `json:"text,omitempty"`
	Tool string          `json:"tool,omitempty"`
	Args json.RawMessage `json:"args,omitempty"`
}

// DecodeJSONLLine parses a single legacy JSONL line into an Item, applying
// the same tool decomposition decomposeTool uses for live block streams.
func DecodeJSONLLine(line string) (Item, error) {
	var l jsonlLine
	if err := json.Unmarshal([]byte(line), &l); err != nil {
		return Item{}, fmt.Errorf("stream: malformed jsonl line: %w", err)
	}

	switch l.Type {
	case "voice":
		return Item{Kind: ItemVoice, Text: l.Text}, nil
	case "tool_call":
		event, err := decomposeTool(l.Tool, string(l.Args))
		if err != nil {
			return Item{Kind: ItemParseErr, Err: err}, nil
		}
		return Item{Kind: ItemPrimitive, Event: event}, nil
	default:
		return Item{}, fmt.Errorf("stream: unrecognised jsonl line type %q", l.Type)
	}
}
