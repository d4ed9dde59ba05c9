package stream

import (
	"strings"

	"github.com/aidekernel/aide/internal/types"
)

// state names the machine's two live per-block modes (§4.5: "IDLE → TEXT →
// IDLE and IDLE → TOOL_JSON → IDLE").
type state int

const (
	idle state = iota
	text
	toolJSON
)

// ItemKind discriminates what a completed block produced.
type ItemKind string

const (
	ItemVoice     ItemKind = "voice"
	ItemPrimitive ItemKind = "primitive"
	ItemParseErr  ItemKind = "parse_error"
)

// Item is one unit of output the decomposer hands to the orchestrator: a
// voice signal, a primitive event ready for the reducer, or a parse error
// for a malformed tool block (§4.5, §7 "Parse errors").
type Item struct {
	Kind  ItemKind
	Text  string      // ItemVoice
	Event types.Event // ItemPrimitive
	Err   error       // ItemParseErr
}

type blockBuffer struct {
	blockType BlockType
	toolName  string
	text      strings.Builder
	json      strings.Builder
}

// Machine is the per-turn streaming parser (§4.5). It is not safe for
// concurrent use; one Machine serves exactly one in-flight turn.
type Machine struct {
	state   state
	buffers map[int]*blockBuffer
}

// NewMachine returns a fresh parser ready to consume a turn's block events.
func NewMachine() *Machine {
	return &Machine{state: idle, buffers: make(map[int]*blockBuffer)}
}

// Feed advances the machine by one block event, returning zero or more
// completed Items. Malformed tool JSON yields an ItemParseErr and does not
// stop the machine from continuing to consume the rest of the stream (§4.5,
// §7 "the malformed primitive is skipped").
func (m *Machine) Feed(ev BlockEvent) []Item {
	switch ev.Kind {
	case BlockStart:
		m.buffers[ev.Index] = &blockBuffer{blockType: ev.BlockType, toolName: ev.ToolName}
		if ev.BlockType == BlockText {
			m.state = text
		} else {
			m.state = toolJSON
		}
		return nil

	case BlockDelta:
		buf, ok := m.buffers[ev.Index]
		if !ok {
			return nil
		}
		switch buf.blockType {
		case BlockText:
			buf.text.WriteString(ev.TextDelta)
		case BlockToolUse:
			buf.json.WriteString(ev.PartialJSON)
		}
		return nil

	case BlockStop:
		buf, ok := m.buffers[ev.Index]
		if !ok {
			return nil
		}
		delete(m.buffers, ev.Index)
		m.state = idle

		switch buf.blockType {
		case BlockText:
			if buf.text.Len() == 0 {
				return nil
			}
			return []Item{{Kind: ItemVoice, Text: buf.text.String()}}
		case BlockToolUse:
			raw := buf.json.String()
			if strings.TrimSpace(raw) == "" {
				raw = "{}"
			}
			event, err := decomposeTool(buf.toolName, raw)
			if err != nil {
				return []Item{{Kind: ItemParseErr, Err: err}}
			}
			return []Item{{Kind: ItemPrimitive, Event: event}}
		}
	}
	return nil
}

// Reset discards any in-progress block buffers, used when a turn's stream
// terminates early and the remaining partial block must not be decomposed
// (§7 "Stream errors").
func (m *Machine) Reset() {
	m.state = idle
	m.buffers = make(map[int]*blockBuffer)
}
