package types

// Display names the closed set of rendering hints an entity can carry.
// The renderer's display-inference table (§4.3) assigns one of these when
// an entity has no explicit display: image if `src` is present, metric if
// `value` is present and the entity has ≤3 props, checklist if any child
// carries `done`, table if children share ≥3 fields, otherwise card/list.
type Display string

const (
	DisplayPage      Display = "page"
	DisplaySection   Display = "section"
	DisplayCard      Display = "card"
	DisplayList      Display = "list"
	DisplayTable     Display = "table"
	DisplayChecklist Display = "checklist"
	DisplayMetric    Display = "metric"
	DisplayText      Display = "text"
	DisplayImage     Display = "image"
	DisplayRow       Display = "row"
)

// displaySet is the closed set the registry validates entity.create/update
// display hints against.
var displaySet = map[Display]bool{
	DisplayPage:      true,
	DisplaySection:   true,
	DisplayCard:      true,
	DisplayList:      true,
	DisplayTable:     true,
	DisplayChecklist: true,
	DisplayMetric:    true,
	DisplayText:      true,
	DisplayImage:     true,
	DisplayRow:       true,
}

// ValidDisplay reports whether d is a member of the closed display set.
func ValidDisplay(d Display) bool {
	return displaySet[d]
}

// RootID is the sentinel parent id for top-level entities (§3.1).
const RootID = "root"

// LifecycleState is the closed set of states an entity occupies across its
// lifetime. An entity's id is permanent once assigned (§3 invariant: ids are
// never reused and never deleted outright) — removal transitions Live to
// Removed rather than erasing the entity from state.
type LifecycleState string

const (
	Live    LifecycleState = "live"
	Removed LifecycleState = "removed"
)

// Entity is a single node in a page's entity tree.
type Entity struct {
	ID       string               `json:"id"`
	ParentID string               `json:"parent,omitempty"`
	Display  Display              `json:"display"`
	Props    map[string]PropValue `json:"props,omitempty"`
	State    LifecycleState       `json:"state"`

	// CreatedSeq is the event sequence number at which this entity was
	// created. It fixes a stable, replay-derivable ordering among siblings
	// independent of any externally supplied sort key (§3: "children render
	// in creation order unless explicitly reordered").
	CreatedSeq uint64 `json:"created_seq"`

	// UpdatedSeq is the event sequence number of the most recent mutation
	// applied to this entity (entity.update, entity.move, style.entity, or
	// the entity's own creation).
	UpdatedSeq uint64 `json:"updated_seq"`

	// OrderKey is an optional explicit ordering override set by
	// entity.reorder. When zero-valued (unset), CreatedSeq governs order.
	OrderKey int64 `json:"order_key,omitempty"`

	// Styles holds per-entity style overrides set via style.entity,
	// layered on top of the page's global Styles map at render time.
	Styles map[string]PropValue `json:"styles,omitempty"`
}

// IsLive reports whether the entity currently participates in the live
// tree. Removed entities remain addressable by id (for relationship target
// resolution and history) but are excluded from rendering and from
// capacity-limit counts.
func (e Entity) IsLive() bool {
	return e.State == Live
}

// Clone returns a deep copy of the entity, used by the reducer so that
// applying an event never mutates the PageState a caller still holds a
// reference to.
func (e Entity) Clone() Entity {
	out := e
	if e.Props != nil {
		out.Props = make(map[string]PropValue, len(e.Props))
		for k, v := range e.Props {
			out.Props[k] = v
		}
	}
	if e.Styles != nil {
		out.Styles = make(map[string]PropValue, len(e.Styles))
		for k, v := range e.Styles {
			out.Styles[k] = v
		}
	}
	return out
}
