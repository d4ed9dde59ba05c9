// Package tier implements the three named model tiers the orchestrator
// invokes (§4.6, §6.4): L2, L3, L4, each with its own system prompt and
// model identifier, reached over a streaming transport that emits
// stream.BlockEvent values the orchestrator feeds to a stream.Machine.
package tier

import (
	"context"
	"time"

	"github.com/aidekernel/aide/internal/stream"
	"github.com/aidekernel/aide/internal/types"
)

// Name is the closed set of tier names (§4.6: "L4 for first message or when
// no entities yet exist; otherwise L3; demotion to L2 is not used by
// default").
type Name string

const (
	L2 Name = "L2"
	L3 Name = "L3"
	L4 Name = "L4"
)

// Request carries what a tier needs to produce its next block of output:
// the conversation prompt, the page's current snapshot (so the model can
// reason over existing entities), and, on an escalation, the extracted
// context. The tool schemas the model may call are supplied by the tier
// implementation itself (AnthropicTier's toolDefinitions, §6.4).
type Request struct {
	Prompt   string
	Snapshot types.PageState
	Extract  string // set only on an escalation call (§4.6)
}

// Tier is the interface the orchestrator drives; Call returns a channel of
// block events (closed when the stream ends) and a channel that carries at
// most one terminal error.
type Tier interface {
	Name() Name
	Call(ctx context.Context, req Request) (<-chan stream.BlockEvent, <-chan error)
}

// Config configures a single tier's model identifier and system prompt,
// read at startup (§6.5 "provider model identifiers for L2/L3/L4").
type Config struct {
	Model        string
	SystemPrompt string
	Timeout      time.Duration // per-call wall-clock timeout (§5 "Timeouts", default 60s)
}

// DefaultTimeout is applied when a Config leaves Timeout unset.
const DefaultTimeout = 60 * time.Second

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Select implements the tier-selection rule of §4.6: L4 for the first
// message on a page or when it has no entities yet; otherwise L3.
func Select(hasPriorTurn bool, snapshot types.PageState) Name {
	if !hasPriorTurn || countNonRoot(snapshot) == 0 {
		return L4
	}
	return L3
}

func countNonRoot(state types.PageState) int {
	n := 0
	for id := range state.Entities {
		if id != types.RootID {
			n++
		}
	}
	return n
}
