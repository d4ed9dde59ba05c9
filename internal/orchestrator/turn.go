package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aidekernel/aide/internal/assembly"
	"github.com/aidekernel/aide/internal/reducer"
	"github.com/aidekernel/aide/internal/stream"
	"github.com/aidekernel/aide/internal/tier"
	"github.com/aidekernel/aide/internal/types"
)

// runTurn executes one full IDLE → LOAD → TIER_CALL → STREAM → APPLY →
// BROADCAST → (STREAM|FINALIZE) → SAVE → RECORD → IDLE cycle for req. It
// runs on its page's actor goroutine, so it never runs concurrently with
// another turn for the same page.
//
// It deliberately does not take the caller's context: once a turn starts it
// must finalize (apply + save + record) even if the client that submitted
// it has since disconnected (§5 "Cancellation"). Each tier call is bounded
// by the tier's own per-call timeout instead.
func (o *Orchestrator) runTurn(req TurnRequest) TurnResult {
	started := o.nowFn()
	ctx := context.Background()

	file, err := o.loadOrCreate(ctx, req.PageID)
	if err != nil {
		return o.finalizeError(req, started, nil, err)
	}

	if req.DirectEdit != nil {
		return o.runDirectEdit(ctx, req, started, file)
	}

	var tiersUsed []tier.Name
	var allApplied []types.Event
	var allRejected []reducer.Rejection
	var turnErr error

	name := tier.Select(req.HasPriorTurn, file.State)
	t, err := o.tiers.Get(name)
	if err != nil {
		return o.finalizeError(req, started, file, err)
	}
	tiersUsed = append(tiersUsed, name)

	tierReq := tier.Request{Prompt: req.Prompt, Snapshot: file.State}

	for {
		applied, rejected, escalation, callErr := o.runOneTierCall(ctx, t, tierReq, req, &file)
		allApplied = append(allApplied, applied...)
		allRejected = append(allRejected, rejected...)
		if callErr != nil {
			turnErr = callErr
		}

		if escalation == nil {
			break
		}
		// §5 / §4.6: escalation keeps partial work and continues the same
		// turn under the same page lock with the higher tier.
		next, err := o.tiers.Get(escalationTarget(escalation.Tier))
		if err != nil {
			turnErr = err
			break
		}
		t = next
		tiersUsed = append(tiersUsed, t.Name())
		tierReq = tier.Request{Prompt: req.Prompt, Snapshot: file.State, Extract: escalation.Extract}
	}

	if err := assembly.Save(ctx, o.store, file); err != nil {
		if turnErr == nil {
			turnErr = err
		}
	}

	o.runShadow(ctx, req, file.State, tiersUsed)

	if o.recorder != nil {
		o.recorder.Record(Record{
			PageID:   req.PageID,
			TurnID:   req.TurnID,
			Tiers:    tiersUsed,
			Prompt:   req.Prompt,
			Applied:  allApplied,
			Rejected: allRejected,
			Err:      turnErr,
			Started:  started,
			Duration: o.nowFn().Sub(started),
		})
	}

	return TurnResult{
		File:      file,
		Applied:   allApplied,
		Rejected:  allRejected,
		TiersUsed: tiersUsed,
		Err:       turnErr,
	}
}

// runDirectEdit applies req.DirectEdit as a single entity.update primitive
// with source web, bypassing TIER_CALL/STREAM entirely but otherwise
// finalizing exactly like a model-driven turn: broadcast, save, record
// (§4.7).
func (o *Orchestrator) runDirectEdit(ctx context.Context, req TurnRequest, started time.Time, file *assembly.AideFile) TurnResult {
	payload := types.EntityUpdatePayload{
		Ref:   req.DirectEdit.EntityID,
		Props: map[string]types.PropValue{req.DirectEdit.Field: req.DirectEdit.Value},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return o.finalizeError(req, started, file, err)
	}
	event := types.Event{Type: types.PrimEntityUpdate, Source: types.SourceWeb, Payload: data, TurnID: req.TurnID}

	next, outcome := assembly.Apply(file, []types.Event{event}, o.nowFn())
	if o.broadcaster != nil && len(outcome.Deltas) > 0 {
		o.broadcaster.Broadcast(req.PageID, outcome.Deltas)
	}

	var turnErr error
	if len(outcome.Rejected) > 0 {
		turnErr = outcome.Rejected[0].Reason
	}
	if err := assembly.Save(ctx, o.store, next); err != nil && turnErr == nil {
		turnErr = err
	}

	if o.recorder != nil {
		o.recorder.Record(Record{
			PageID:   req.PageID,
			TurnID:   req.TurnID,
			Applied:  outcome.Applied,
			Rejected: outcome.Rejected,
			Err:      turnErr,
			Started:  started,
			Duration: o.nowFn().Sub(started),
		})
	}

	return TurnResult{File: next, Applied: outcome.Applied, Rejected: outcome.Rejected, Err: turnErr}
}

func (o *Orchestrator) loadOrCreate(ctx context.Context, pageID string) (*assembly.AideFile, error) {
	file, err := assembly.Load(ctx, o.store, pageID)
	if err == nil {
		return file, nil
	}
	if !errors.Is(err, assembly.ErrNotFound) {
		return nil, err
	}
	return assembly.Create(pageID, o.blueprint)
}

// runOneTierCall drives one tier.Call from open to close, applying
// primitives as they arrive (so a mid-stream timeout still leaves
// already-validated primitives applied, per §5 "Timeouts": "records the
// partial primitives that were validly parsed"), routing voice/clarify
// signals to the broadcaster, and returning an escalation request if the
// tier asked for one.
func (o *Orchestrator) runOneTierCall(ctx context.Context, t tier.Tier, req tier.Request, turnReq TurnRequest, file **assembly.AideFile) ([]types.Event, []reducer.Rejection, *types.EscalatePayload, error) {
	blocks, errc := t.Call(ctx, req)
	m := stream.NewMachine()

	var applied []types.Event
	var rejected []reducer.Rejection
	var escalation *types.EscalatePayload

	if o.broadcaster != nil {
		o.broadcaster.StreamStart(turnReq.PageID)
		defer o.broadcaster.StreamEnd(turnReq.PageID)
	}

	for ev := range blocks {
		for _, item := range m.Feed(ev) {
			switch item.Kind {
			case stream.ItemVoice:
				if o.broadcaster != nil {
					o.broadcaster.BroadcastVoice(turnReq.PageID, item.Text)
				}

			case stream.ItemParseErr:
				// §7 "Parse errors": skip the malformed primitive, keep
				// consuming the stream.
				continue

			case stream.ItemPrimitive:
				switch item.Event.Type {
				case types.PrimEscalate:
					var payload types.EscalatePayload
					if err := json.Unmarshal(item.Event.Payload, &payload); err == nil {
						escalation = &payload
					}
				case types.PrimClarify:
					var payload types.ClarifyPayload
					if err := json.Unmarshal(item.Event.Payload, &payload); err == nil && o.broadcaster != nil {
						o.broadcaster.BroadcastClarify(turnReq.PageID, payload)
					}
				case types.PrimBatchStart, types.PrimBatchEnd:
					item.Event.TurnID = turnReq.TurnID
					if o.broadcaster != nil {
						o.broadcaster.Broadcast(turnReq.PageID, []types.Event{item.Event})
					}
				default:
					item.Event.TurnID = turnReq.TurnID
					next, outcome := assembly.Apply(*file, []types.Event{item.Event}, o.nowFn())
					*file = next
					rejected = append(rejected, outcome.Rejected...)
					applied = append(applied, outcome.Applied...)
					if o.broadcaster != nil && len(outcome.Deltas) > 0 {
						o.broadcaster.Broadcast(turnReq.PageID, outcome.Deltas)
					}
				}
			}
		}
	}

	var callErr error
	select {
	case callErr = <-errc:
	default:
	}
	return applied, rejected, escalation, callErr
}

// escalationTarget resolves an escalation's requested tier name, defaulting
// to L4 when the signal left it unspecified (the only tier a turn normally
// escalates to, per §5's worked example).
func escalationTarget(requested string) tier.Name {
	switch tier.Name(requested) {
	case tier.L2, tier.L3, tier.L4:
		return tier.Name(requested)
	default:
		return tier.L4
	}
}

func (o *Orchestrator) finalizeError(req TurnRequest, started time.Time, file *assembly.AideFile, err error) TurnResult {
	if o.recorder != nil {
		o.recorder.Record(Record{
			PageID:   req.PageID,
			TurnID:   req.TurnID,
			Prompt:   req.Prompt,
			Err:      err,
			Started:  started,
			Duration: o.nowFn().Sub(started),
		})
	}
	return TurnResult{File: file, Err: err}
}

// runShadow issues a non-blocking call to the shadow tier registry, if
// configured, sharing the finalized snapshot but never feeding its output
// back into file or the broadcaster (§4.6 "Shadow calls", §5 "Shadow
// isolation").
func (o *Orchestrator) runShadow(ctx context.Context, req TurnRequest, snapshot types.PageState, tiersUsed []tier.Name) {
	if o.shadow == nil || len(tiersUsed) == 0 {
		return
	}
	shadowTier, err := o.shadow.Get(tiersUsed[len(tiersUsed)-1])
	if err != nil {
		return
	}
	tier.Shadow(ctx, shadowTier, tier.Request{Prompt: req.Prompt, Snapshot: snapshot}, func(item stream.Item) {
		if o.recorder == nil {
			return
		}
		var rec Record
		rec.PageID = req.PageID
		rec.TurnID = req.TurnID
		rec.Shadow = true
		rec.Tiers = []tier.Name{shadowTier.Name()}
		if item.Kind == stream.ItemPrimitive {
			rec.Applied = []types.Event{item.Event}
		}
		o.recorder.Record(rec)
	})
}
