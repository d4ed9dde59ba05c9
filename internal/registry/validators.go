package registry

import (
	"regexp"

	"github.com/aidekernel/aide/internal/types"
)

// idPattern enforces "lowercase, underscore-separated, ≤64 chars" (§3.1).
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidID reports whether id meets the entity id format rule. It does not
// check uniqueness, which depends on page state.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

func invalid(subject, detail string) error {
	return types.NewCodedError(types.CodeInvalidPayload, subject, detail)
}

func validateEntityCreate(p any) error {
	payload := p.(*types.EntityCreatePayload)
	if !ValidID(payload.ID) {
		return invalid(payload.ID, "id must be lowercase, underscore-separated, and at most 64 characters")
	}
	if payload.Parent == "" {
		return invalid(payload.ID, "parent is required")
	}
	if payload.Display != "" && !types.ValidDisplay(payload.Display) {
		detail := "display is not in the closed set"
		if suggestion, ok := SuggestDisplay(string(payload.Display)); ok {
			detail += "; did you mean '" + suggestion + "'?"
		}
		return types.NewCodedError(types.CodeUnknownDisplay, string(payload.Display), detail)
	}
	if err := validatePropKeys(payload.Props); err != nil {
		return err
	}
	return nil
}

func validateEntityUpdate(p any) error {
	payload := p.(*types.EntityUpdatePayload)
	if payload.Ref == "" {
		return invalid("", "ref is required")
	}
	return validatePropKeys(payload.Props)
}

func validateEntityRemove(p any) error {
	payload := p.(*types.EntityRemovePayload)
	if payload.Ref == "" {
		return invalid("", "ref is required")
	}
	return nil
}

func validateEntityMove(p any) error {
	payload := p.(*types.EntityMovePayload)
	if payload.Ref == "" {
		return invalid("", "ref is required")
	}
	if payload.Parent == "" {
		return invalid(payload.Ref, "parent is required")
	}
	if payload.Position != nil && *payload.Position < 0 {
		return invalid(payload.Ref, "position must not be negative")
	}
	return nil
}

func validateEntityReorder(p any) error {
	payload := p.(*types.EntityReorderPayload)
	if payload.Ref == "" {
		return invalid("", "ref is required")
	}
	seen := make(map[string]bool, len(payload.Children))
	for _, c := range payload.Children {
		if seen[c] {
			return invalid(payload.Ref, "children must not repeat an id")
		}
		seen[c] = true
	}
	return nil
}

func validateRelSet(p any) error {
	payload := p.(*types.RelSetPayload)
	if payload.From == "" || payload.To == "" {
		return invalid(payload.Type, "from and to are required")
	}
	if payload.Type == "" {
		return invalid(payload.From, "type is required")
	}
	if !types.ValidCardinality(payload.Cardinality) {
		return types.NewCodedError(types.CodeInvalidPayload, payload.Type, "cardinality must be one of many_to_one, one_to_one, many_to_many")
	}
	return nil
}

func validateRelRemove(p any) error {
	payload := p.(*types.RelRemovePayload)
	if payload.From == "" || payload.To == "" || payload.Type == "" {
		return invalid(payload.Type, "from, to, and type are required")
	}
	return nil
}

func validateStyleSet(p any) error {
	// No rejection conditions declared for style.set (§4.1 table: "—").
	return nil
}

func validateStyleEntity(p any) error {
	payload := p.(*types.StyleEntityPayload)
	if payload.Ref == "" {
		return invalid("", "ref is required")
	}
	return nil
}

func validateMetaSet(p any) error {
	payload := p.(*types.MetaSetPayload)
	if payload.Timezone != nil && *payload.Timezone != "" && !ValidTimezone(*payload.Timezone) {
		return invalid(*payload.Timezone, "timezone is not a recognised IANA name")
	}
	if payload.Visibility != nil {
		switch *payload.Visibility {
		case types.VisibilityPrivate, types.VisibilityUnlisted, types.VisibilityPublished:
		default:
			return invalid(string(*payload.Visibility), "visibility is not recognised")
		}
	}
	return nil
}

func validateMetaAnnotate(p any) error {
	payload := p.(*types.MetaAnnotatePayload)
	if payload.Note == "" {
		return invalid("", "note is required")
	}
	return nil
}

func validateMetaConstrain(p any) error {
	payload := p.(*types.MetaConstrainPayload)
	if payload.ID == "" {
		return invalid("", "id is required")
	}
	if !types.ValidConstraintRule(payload.Rule) {
		return invalid(payload.Rule, "rule name is unknown")
	}
	return nil
}

// validatePropKeys rejects prop maps that use a reserved `_`-prefixed key
// (§3.1: "Keys beginning with `_` are reserved for internal metadata").
func validatePropKeys(props map[string]types.PropValue) error {
	for k := range props {
		if len(k) > 0 && k[0] == '_' {
			return invalid(k, "prop keys beginning with _ are reserved for internal metadata")
		}
	}
	return nil
}
