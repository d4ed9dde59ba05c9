package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// PropKind discriminates the variants a PropValue can hold. The set is
// closed: entity props carry exactly one of these shapes, never a raw
// interface{} grab-bag.
type PropKind string

const (
	PropString   PropKind = "string"
	PropNumber   PropKind = "number"
	PropBool     PropKind = "bool"
	PropDate     PropKind = "date"
	PropDateTime PropKind = "datetime"
	PropArray    PropKind = "array"
	PropMap      PropKind = "map"
)

// PropValue is a tagged variant over the value shapes a model may assign to
// an entity field. Only one of the typed fields is populated, selected by
// Kind. Array and Map nest PropValue recursively, matching the list-prop and
// nested-field cases the registry's capacity checks (§7) walk.
type PropValue struct {
	Kind PropKind

	Str  string
	Num  float64
	Bool bool

	// Date holds a calendar date with no time-of-day component.
	Date time.Time
	// DateTime holds a full timestamp.
	DateTime time.Time

	Array []PropValue
	Map   map[string]PropValue
}

func NewString(s string) PropValue { return PropValue{Kind: PropString, Str: s} }
func NewNumber(n float64) PropValue { return PropValue{Kind: PropNumber, Num: n} }
func NewBool(b bool) PropValue      { return PropValue{Kind: PropBool, Bool: b} }
func NewDate(t time.Time) PropValue { return PropValue{Kind: PropDate, Date: t} }
func NewDateTime(t time.Time) PropValue {
	return PropValue{Kind: PropDateTime, DateTime: t}
}
func NewArray(vs []PropValue) PropValue { return PropValue{Kind: PropArray, Array: vs} }
func NewMap(m map[string]PropValue) PropValue {
	return PropValue{Kind: PropMap, Map: m}
}

// Depth returns the nesting depth of the value, counting the value itself as
// depth 1. Scalars are depth 1; an array/map of scalars is depth 2. Used by
// the registry against the nesting-depth capacity limit (§7: soft 2, hard 3).
func (v PropValue) Depth() int {
	switch v.Kind {
	case PropArray:
		max := 0
		for _, e := range v.Array {
			if d := e.Depth(); d > max {
				max = d
			}
		}
		return max + 1
	case PropMap:
		max := 0
		for _, e := range v.Map {
			if d := e.Depth(); d > max {
				max = d
			}
		}
		return max + 1
	default:
		return 1
	}
}

// Len returns the element count for Array-kind values, and 0 otherwise. Used
// against the list-prop-length capacity limit (§7: soft 20, hard 50).
func (v PropValue) Len() int {
	if v.Kind == PropArray {
		return len(v.Array)
	}
	return 0
}

type jsonPropValue struct {
	Kind  PropKind                  `json:"kind"`
	Str   string                    `json:"str,omitempty"`
	Num   *float64                  `json:"num,omitempty"`
	Bool  *bool                     `json:"bool,omitempty"`
	Date  *string                   `json:"date,omitempty"`
	Time  *string                   `json:"datetime,omitempty"`
	Array []PropValue               `json:"array,omitempty"`
	Map   map[string]PropValue      `json:"map,omitempty"`
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = time.RFC3339
)

func (v PropValue) MarshalJSON() ([]byte, error) {
	out := jsonPropValue{Kind: v.Kind}
	switch v.Kind {
	case PropString:
		out.Str = v.Str
	case PropNumber:
		n := v.Num
		out.Num = &n
	case PropBool:
		b := v.Bool
		out.Bool = &b
	case PropDate:
		s := v.Date.Format(dateLayout)
		out.Date = &s
	case PropDateTime:
		s := v.DateTime.Format(dateTimeLayout)
		out.Time = &s
	case PropArray:
		out.Array = v.Array
	case PropMap:
		out.Map = v.Map
	default:
		return nil, fmt.Errorf("types: prop value has unknown kind %q", v.Kind)
	}
	return json.Marshal(out)
}

func (v *PropValue) UnmarshalJSON(data []byte) error {
	var in jsonPropValue
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case PropString:
		*v = NewString(in.Str)
	case PropNumber:
		if in.Num == nil {
			return fmt.Errorf("types: prop value kind %q missing num", in.Kind)
		}
		*v = NewNumber(*in.Num)
	case PropBool:
		if in.Bool == nil {
			return fmt.Errorf("types: prop value kind %q missing bool", in.Kind)
		}
		*v = NewBool(*in.Bool)
	case PropDate:
		if in.Date == nil {
			return fmt.Errorf("types: prop value kind %q missing date", in.Kind)
		}
		t, err := time.Parse(dateLayout, *in.Date)
		if err != nil {
			return fmt.Errorf("types: invalid date %q: %w", *in.Date, err)
		}
		*v = NewDate(t)
	case PropDateTime:
		if in.Time == nil {
			return fmt.Errorf("types: prop value kind %q missing datetime", in.Kind)
		}
		t, err := time.Parse(dateTimeLayout, *in.Time)
		if err != nil {
			return fmt.Errorf("types: invalid datetime %q: %w", *in.Time, err)
		}
		*v = NewDateTime(t)
	case PropArray:
		*v = NewArray(in.Array)
	case PropMap:
		*v = NewMap(in.Map)
	default:
		return fmt.Errorf("types: unknown prop value kind %q", in.Kind)
	}
	return nil
}
