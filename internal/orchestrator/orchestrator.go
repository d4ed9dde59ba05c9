// Package orchestrator drives the per-turn state machine of §5: IDLE → LOAD
// → TIER_CALL → STREAM → APPLY → BROADCAST → (STREAM|FINALIZE) → SAVE →
// RECORD → IDLE, with (any) → ERROR → ABORT on an unrecoverable failure.
// Turns for a single page are serialized FIFO through a per-page mailbox
// actor rather than a global lock map (§9 REDESIGN FLAGS: "a channel/mailbox
// per page that serializes arriving turns without a global map").
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aidekernel/aide/internal/assembly"
	"github.com/aidekernel/aide/internal/reducer"
	"github.com/aidekernel/aide/internal/tier"
	"github.com/aidekernel/aide/internal/types"
)

// Broadcaster fans deltas out to a page's connected subscribers. A vanished
// subscriber is the broadcaster's concern to drop, not the orchestrator's
// (§5 "Cancellation": the orchestrator keeps finalizing regardless).
type Broadcaster interface {
	Broadcast(pageID string, events []types.Event)
	BroadcastVoice(pageID string, text string)
	BroadcastClarify(pageID string, payload types.ClarifyPayload)
	StreamStart(pageID string)
	StreamEnd(pageID string)
}

// FlightRecorder is the write side of the flight recorder (§4.8). Record
// MUST NOT block the caller; a slow or full recorder drops records rather
// than stalling a turn.
type FlightRecorder interface {
	Record(rec Record)
}

// TierSource resolves a tier by name. *tier.Registry satisfies this; tests
// substitute a fake that never constructs a real Anthropic client.
type TierSource interface {
	Get(name tier.Name) (tier.Tier, error)
}

// Record is one flight-recorder entry: everything about a single turn (or a
// shadow call riding alongside one) worth auditing.
type Record struct {
	PageID   string
	TurnID   string
	Tiers    []tier.Name
	Prompt   string
	Applied  []types.Event
	Rejected []reducer.Rejection
	Err      error
	Shadow   bool
	Started  time.Time
	Duration time.Duration
}

var (
	// ErrDraining is returned by Submit once Shutdown has begun (§5
	// "A shutdown request triggers a drain: accept no new turns").
	ErrDraining = errors.New("orchestrator: draining, not accepting new turns")
)

// TurnRequest is one inbound message destined for a page's turn (§4.7). A
// normal turn sets Prompt; a direct edit sets DirectEdit instead and skips
// straight to APPLY (§4.7 "a direct-edit is a synthetic single-primitive
// turn with source web; it follows the same orchestrator path as any
// model-emitted mutation" — same page lock, save, and flight record, no
// tier call).
type TurnRequest struct {
	PageID       string
	TurnID       string
	Prompt       string
	HasPriorTurn bool
	ActorTier    string // subscription tier of the human actor ("free", etc.), §4.4/§6.2
	DirectEdit   *DirectEdit
}

// DirectEdit names the single entity.update primitive a direct-edit turn
// applies.
type DirectEdit struct {
	EntityID string
	Field    string
	Value    types.PropValue
}

// TurnResult is what Submit's caller receives once a turn has finalized.
type TurnResult struct {
	File      *assembly.AideFile
	Applied   []types.Event
	Rejected  []reducer.Rejection
	TiersUsed []tier.Name
	Err       error
}

// Orchestrator owns the page-actor registry, the tier registry, and the
// collaborators a turn reports to.
type Orchestrator struct {
	store       *assembly.Store
	tiers       TierSource
	shadow      TierSource // optional; nil disables shadow calls
	broadcaster Broadcaster
	recorder    FlightRecorder
	blueprint   types.Blueprint
	nowFn       func() time.Time

	actors *actorTable
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithShadowRegistry enables shadow calls (§4.6) using tiers from shadow,
// invoked immediately after the production tier returns.
func WithShadowRegistry(shadow TierSource) Option {
	return func(o *Orchestrator) { o.shadow = shadow }
}

// WithBlueprint overrides the default blueprint new pages are created with
// (§6.5 "default page visibility and blueprint").
func WithBlueprint(bp types.Blueprint) Option {
	return func(o *Orchestrator) { o.blueprint = bp }
}

// WithClock overrides the orchestrator's time source; tests use this to get
// deterministic Seq/Timestamp stamping.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.nowFn = now }
}

// New builds an Orchestrator. broadcaster and recorder may be nil in
// contexts (such as tests) that don't need fan-out or auditing.
func New(store *assembly.Store, tiers TierSource, broadcaster Broadcaster, recorder FlightRecorder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		tiers:       tiers,
		broadcaster: broadcaster,
		recorder:    recorder,
		blueprint:   assembly.DefaultBlueprint,
		nowFn:       time.Now,
		actors:      newActorTable(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit enqueues req onto its page's mailbox and blocks until the turn
// finalizes. Turns for distinct pages run concurrently; turns for the same
// page run strictly FIFO (§5 "Per-page serialization").
func (o *Orchestrator) Submit(ctx context.Context, req TurnRequest) (TurnResult, error) {
	actor, err := o.actors.getOrCreate(req.PageID, o)
	if err != nil {
		return TurnResult{}, err
	}

	reply := make(chan TurnResult, 1)
	job := turnJob{req: req, reply: reply}

	select {
	case actor.mailbox <- job:
	case <-ctx.Done():
		return TurnResult{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res, res.Err
	case <-ctx.Done():
		// The caller gave up waiting, but the turn keeps finalizing on the
		// actor's own background context (§5 "Cancellation").
		return TurnResult{}, ctx.Err()
	}
}

// Shutdown stops accepting new turns, waits for every page actor's mailbox
// to drain its in-flight and already-queued turns, then returns (§5 "allow
// in-flight turns to finalize, flush the recorder queue").
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.actors.drain()
	done := make(chan struct{})
	go func() {
		o.actors.wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("orchestrator: shutdown: %w", ctx.Err())
	}
}
