package tier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aidekernel/aide/internal/stream"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

// ErrAPIKeyRequired is returned when a tier is constructed without an API key
// available, either explicitly or via ANTHROPIC_API_KEY.
var ErrAPIKeyRequired = errors.New("tier: API key required")

// AnthropicTier calls a single named tier against the Anthropic Messages
// streaming API, translating the SDK's native content-block stream into
// stream.BlockEvent values. Only the initial connection and retryable
// transport failures are retried (§4.6); once a stream has started emitting
// blocks a failure surfaces as a terminal error rather than restarting the
// turn, since partial primitives already handed to the caller must not be
// replayed.
type AnthropicTier struct {
	name   Name
	client anthropic.Client
	cfg    Config
}

// NewAnthropicTier builds a tier client. Env var ANTHROPIC_API_KEY takes
// precedence over an explicit apiKey, mirroring the teacher's client
// construction.
func NewAnthropicTier(name Name, apiKey string, cfg Config) (*AnthropicTier, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or configure tier.%s.api_key", ErrAPIKeyRequired, name)
	}
	return &AnthropicTier{
		name:   name,
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		cfg:    cfg,
	}, nil
}

func (t *AnthropicTier) Name() Name { return t.name }

// Call opens a streaming Messages request and pumps content-block events
// onto the returned channel as they arrive, applying the tier's configured
// wall-clock timeout to the whole call (§5 "Timeouts"). The block channel is
// closed when the stream ends, successfully or not; at most one value is
// ever sent on the error channel.
func (t *AnthropicTier) Call(ctx context.Context, req Request) (<-chan stream.BlockEvent, <-chan error) {
	blocks := make(chan stream.BlockEvent, 32)
	errc := make(chan error, 1)

	ctx, cancel := context.WithTimeout(ctx, t.cfg.timeout())

	go func() {
		defer cancel()
		defer close(blocks)
		err := t.run(ctx, req, blocks)
		if err != nil {
			errc <- err
		}
		close(errc)
	}()

	return blocks, errc
}

func (t *AnthropicTier) run(ctx context.Context, req Request, blocks chan<- stream.BlockEvent) error {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(t.cfg.Model),
		MaxTokens: 4096,
		System:    []anthropic.TextBlockParam{{Text: t.cfg.SystemPrompt}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(t.promptText(req)))},
		Tools:     toolDefinitions(),
	}

	s, err := t.openStreamWithRetry(ctx, params)
	if err != nil {
		return err
	}
	defer s.Close()

	for s.Next() {
		event := s.Current()
		if ev, ok := toBlockEvent(event); ok {
			select {
			case blocks <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if err := s.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("tier %s: stream: %w", t.name, err)
	}
	return nil
}

// promptText builds the user turn: the prompt, the page's current snapshot
// as JSON, and an escalation's extracted context, if present (§4.6
// "escalate... forwards the extracted context to the higher tier").
func (t *AnthropicTier) promptText(req Request) string {
	text := req.Prompt
	if snap, err := json.Marshal(req.Snapshot); err == nil {
		text = fmt.Sprintf("%s\n\n[page snapshot]\n%s", text, snap)
	}
	if req.Extract == "" {
		return text
	}
	return fmt.Sprintf("%s\n\n[escalation context]\n%s", text, req.Extract)
}

// openStreamWithRetry retries only the initial connection attempt, using the
// same exponential backoff and retryable-error classification as the
// teacher's non-streaming callWithRetry.
func (t *AnthropicTier) openStreamWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.MessageStream, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		s := t.client.Messages.NewStreaming(ctx, params)
		if s.Err() == nil {
			return s, nil
		}

		lastErr = s.Err()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(lastErr) {
			return nil, fmt.Errorf("tier %s: non-retryable error: %w", t.name, lastErr)
		}
	}
	return nil, fmt.Errorf("tier %s: failed after %d attempts: %w", t.name, maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// toolDefinitions advertises the two tool shapes of §4.5 plus the four
// signal tool names stream.decomposeTool also recognises.
func toolDefinitions() []anthropic.ToolUnionParam {
	mk := func(name, description string) anthropic.ToolUnionParam {
		return anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        name,
				Description: anthropic.String(description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type: "object",
				},
			},
		}
	}
	return []anthropic.ToolUnionParam{
		mk(stream.ToolMutateEntity, "Create, update, remove, move, or reorder an entity in the page tree."),
		mk(stream.ToolSetRelationship, "Set, remove, or constrain a relationship between two entities."),
		mk(stream.ToolEscalate, "Hand off the turn to a higher-capability tier with extracted context."),
		mk(stream.ToolClarify, "Ask the user a clarifying question before proceeding."),
		mk(stream.ToolBatchStart, "Mark the start of a batch of related primitives."),
		mk(stream.ToolBatchEnd, "Mark the end of a batch of related primitives."),
	}
}

// toBlockEvent translates one Anthropic streaming event into a
// stream.BlockEvent, reporting whether the event carried content this
// package cares about (message-level events such as message_start are
// dropped).
func toBlockEvent(event anthropic.MessageStreamEventUnion) (stream.BlockEvent, bool) {
	switch event.Type {
	case "content_block_start":
		start := event.AsContentBlockStart()
		switch start.ContentBlock.Type {
		case "text":
			return stream.BlockEvent{Kind: stream.BlockStart, Index: int(start.Index), BlockType: stream.BlockText}, true
		case "tool_use":
			tu := start.ContentBlock.AsToolUse()
			return stream.BlockEvent{Kind: stream.BlockStart, Index: int(start.Index), BlockType: stream.BlockToolUse, ToolName: tu.Name}, true
		}
		return stream.BlockEvent{}, false

	case "content_block_delta":
		delta := event.AsContentBlockDelta()
		switch delta.Delta.Type {
		case "text_delta":
			return stream.BlockEvent{Kind: stream.BlockDelta, Index: int(delta.Index), BlockType: stream.BlockText, TextDelta: delta.Delta.Text}, true
		case "input_json_delta":
			return stream.BlockEvent{Kind: stream.BlockDelta, Index: int(delta.Index), BlockType: stream.BlockToolUse, PartialJSON: delta.Delta.PartialJSON}, true
		}
		return stream.BlockEvent{}, false

	case "content_block_stop":
		stop := event.AsContentBlockStop()
		return stream.BlockEvent{Kind: stream.BlockStop, Index: int(stop.Index)}, true
	}
	return stream.BlockEvent{}, false
}
