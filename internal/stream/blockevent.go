// Package stream implements the streaming parser and decomposer of §4.5: a
// small per-block state machine that turns a tier's incremental content
// blocks into voice signals, recognised control signals, and primitive
// events, tolerating malformed tool JSON without ending the stream.
package stream

// BlockEventKind names the block-lifecycle events the parser consumes,
// matching the provider transport's own content-block framing so that
// internal/tier's adapter can forward SDK stream events with no
// reinterpretation beyond unwrapping them into this shape.
type BlockEventKind string

const (
	BlockStart BlockEventKind = "content_block_start"
	BlockDelta BlockEventKind = "content_block_delta"
	BlockStop  BlockEventKind = "content_block_stop"
)

// BlockType names the two content-block shapes a tier emits (§4.5).
type BlockType string

const (
	BlockText    BlockType = "text"
	BlockToolUse BlockType = "tool_use"
)

// BlockEvent is one incremental unit of the tier's content-block stream.
// Index identifies which concurrently-open block the event belongs to (the
// transport may interleave blocks by index, though tiers here emit them
// sequentially).
type BlockEvent struct {
	Kind  BlockEventKind
	Index int

	// Populated on BlockStart.
	BlockType BlockType
	ToolName  string // set when BlockType == BlockToolUse

	// Populated on BlockDelta.
	TextDelta   string // BlockType == BlockText
	PartialJSON string // BlockType == BlockToolUse, accumulated as partial JSON fragments
}
