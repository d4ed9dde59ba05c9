package render

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/aidekernel/aide/internal/types"
)

// Render maps state (plus the page's blueprint and, optionally, its event
// log) to a single self-describing HTML document (§4.3, §6.1). It is pure
// and deterministic: the same inputs always produce byte-identical output.
func Render(state types.PageState, blueprint types.Blueprint, events []types.Event) (string, error) {
	var body strings.Builder
	body.WriteString(`<div class="aide-page">`)
	renderEntity(&body, state, types.RootID)
	body.WriteString(`</div>`)

	blueprintJSON, err := json.Marshal(blueprint)
	if err != nil {
		return "", fmt.Errorf("render: marshal blueprint: %w", err)
	}
	snapshotJSON, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("render: marshal snapshot: %w", err)
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("render: marshal events: %w", err)
	}

	var doc strings.Builder
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	doc.WriteString("<title>")
	doc.WriteString(html.EscapeString(state.Meta.Title))
	doc.WriteString("</title>\n")
	doc.WriteString("<style>")
	doc.WriteString(renderGlobalStyles(state))
	doc.WriteString("</style>\n</head>\n<body id=\"")
	doc.WriteString(blockElementID)
	doc.WriteString("\">\n")
	doc.WriteString(body.String())
	doc.WriteString("\n")
	writeBlock(&doc, blueprintBlockType, blueprintJSON)
	writeBlock(&doc, snapshotBlockType, snapshotJSON)
	writeBlock(&doc, eventsBlockType, eventsJSON)
	doc.WriteString("</body>\n</html>\n")

	return doc.String(), nil
}

func writeBlock(w *strings.Builder, blockType string, payload []byte) {
	w.WriteString(`<script type="`)
	w.WriteString(blockType)
	w.WriteString(`">`)
	// JSON never contains "</script" as produced by encoding/json, but we
	// guard anyway since payload strings are free-form model-authored text.
	w.WriteString(strings.ReplaceAll(string(payload), "</script", "<\\/script"))
	w.WriteString(`</script>` + "\n")
}

// renderEntity writes entityID and its live children, in parent-before-
// children / creation order, skipping removed entities (§4.3).
func renderEntity(w *strings.Builder, state types.PageState, entityID string) {
	e, ok := state.Entities[entityID]
	if !ok || !e.IsLive() {
		return
	}
	display := inferDisplay(state, e)

	if entityID != types.RootID {
		w.WriteString(`<div class="aide-entity aide-` + string(display) + `" data-id="` + html.EscapeString(entityID) + `"`)
		w.WriteString(renderEntityStyleAttr(e))
		w.WriteString(`>`)
		writePropsBody(w, e.Props)
	}

	for _, childID := range state.LiveChildren(entityID) {
		renderEntity(w, state, childID)
	}

	if entityID != types.RootID {
		w.WriteString(`</div>`)
	}
}

func writePropsBody(w *strings.Builder, props map[string]types.PropValue) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.WriteString(`<span class="aide-field" data-field="` + html.EscapeString(k) + `">`)
		w.WriteString(html.EscapeString(formatPropValue(props[k])))
		w.WriteString(`</span>`)
	}
}

func formatPropValue(v types.PropValue) string {
	switch v.Kind {
	case types.PropString:
		return v.Str
	case types.PropNumber:
		return fmt.Sprintf("%g", v.Num)
	case types.PropBool:
		return fmt.Sprintf("%t", v.Bool)
	case types.PropDate:
		return v.Date.Format("2006-01-02")
	case types.PropDateTime:
		return v.DateTime.Format("2006-01-02T15:04:05Z07:00")
	case types.PropArray:
		parts := make([]string, len(v.Array))
		for i, e := range v.Array {
			parts[i] = formatPropValue(e)
		}
		return strings.Join(parts, ", ")
	case types.PropMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + formatPropValue(v.Map[k])
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func renderEntityStyleAttr(e types.Entity) string {
	if len(e.Styles) == 0 {
		return ""
	}
	return ` style="` + html.EscapeString(stylesToCSS(e.Styles)) + `"`
}

func renderGlobalStyles(state types.PageState) string {
	if len(state.Styles) == 0 {
		return ""
	}
	return `.aide-page { ` + stylesToCSS(state.Styles) + ` }`
}

func stylesToCSS(styles map[string]types.PropValue) string {
	keys := make([]string, 0, len(styles))
	for k := range styles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(formatPropValue(styles[k]))
		b.WriteString("; ")
	}
	return b.String()
}

// RenderPlainText produces the plain-text variant of state (§2 "Renderer
// ... also produces a plain-text variant"), used by cmd/aide's terminal
// preview (page show).
func RenderPlainText(state types.PageState) string {
	var b strings.Builder
	writePlainEntity(&b, state, types.RootID, 0)
	return b.String()
}

func writePlainEntity(b *strings.Builder, state types.PageState, entityID string, depth int) {
	e, ok := state.Entities[entityID]
	if !ok || !e.IsLive() {
		return
	}
	if entityID != types.RootID {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString("- ")
		b.WriteString(entityID)
		if len(e.Props) > 0 {
			b.WriteString(": ")
			keys := make([]string, 0, len(e.Props))
			for k := range e.Props {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, len(keys))
			for i, k := range keys {
				parts[i] = k + "=" + formatPropValue(e.Props[k])
			}
			b.WriteString(strings.Join(parts, ", "))
		}
		b.WriteString("\n")
	}
	childDepth := depth
	if entityID != types.RootID {
		childDepth = depth + 1
	}
	for _, childID := range state.LiveChildren(entityID) {
		writePlainEntity(b, state, childID, childDepth)
	}
}
