package registry

import (
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/aidekernel/aide/internal/types"
)

// naturalDateParser recognises phrases like "next friday" or "in three
// days" for NormalizeDateProp. Decode and the reducer do not call
// NormalizeDateProp: payload props still decode through PropValue's strict
// ISO-8601 date/datetime parsing.
var naturalDateParser = newNaturalDateParser()

func newNaturalDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// NormalizeDateProp attempts to interpret raw as a natural-language date or
// datetime phrase relative to base, returning a PropValue of the requested
// kind. ok is false when raw does not parse as a recognisable date phrase,
// in which case the caller should fall back to strict ISO-8601 parsing.
func NormalizeDateProp(raw string, base time.Time, kind types.PropKind) (types.PropValue, bool) {
	res, err := naturalDateParser.Parse(raw, base)
	if err != nil || res == nil {
		return types.PropValue{}, false
	}
	switch kind {
	case types.PropDate:
		return types.NewDate(res.Time), true
	case types.PropDateTime:
		return types.NewDateTime(res.Time), true
	default:
		return types.PropValue{}, false
	}
}
