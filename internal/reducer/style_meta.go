package reducer

import (
	"time"

	"github.com/aidekernel/aide/internal/types"
)

func reduceStyleSet(state *types.PageState, p *types.StyleSetPayload) {
	if state.Styles == nil {
		state.Styles = make(map[string]types.PropValue, len(p.Props))
	}
	for k, v := range p.Props {
		state.Styles[k] = v
	}
}

func reduceStyleEntity(state *types.PageState, p *types.StyleEntityPayload) error {
	e, ok := state.Entities[p.Ref]
	if !ok {
		return types.NewCodedError(types.CodeIDNotFound, p.Ref, "ref not found")
	}
	if e.Styles == nil {
		e.Styles = make(map[string]types.PropValue, len(p.Props))
	}
	for k, v := range p.Props {
		e.Styles[k] = v
	}
	state.Entities[p.Ref] = e
	return nil
}

func reduceMetaSet(state *types.PageState, p *types.MetaSetPayload) error {
	if p.Title != nil {
		state.Meta.Title = *p.Title
	}
	if p.Identity != nil {
		state.Meta.Identity = *p.Identity
	}
	if p.Timezone != nil {
		state.Meta.Timezone = *p.Timezone
	}
	if p.Visibility != nil {
		state.Meta.Visibility = *p.Visibility
	}
	return nil
}

func reduceMetaAnnotate(state *types.PageState, event types.Event, p *types.MetaAnnotatePayload) {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Unix(0, 0).UTC()
	}
	state.Annotations = append(state.Annotations, types.Annotation{
		Note:      p.Note,
		Pinned:    p.Pinned,
		Timestamp: ts.Unix(),
	})
}

func reduceMetaConstrain(state *types.PageState, p *types.MetaConstrainPayload) {
	c := types.Constraint{
		ID:       p.ID,
		Rule:     p.Rule,
		Value:    p.Value,
		Message:  p.Message,
		EntityID: p.EntityID,
		Field:    p.Field,
	}
	for i, existing := range state.Constraints {
		if existing.ID == p.ID {
			state.Constraints[i] = c
			return
		}
	}
	state.Constraints = append(state.Constraints, c)
}
