package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/aidekernel/aide/internal/types"
)

// Parse recovers the blueprint, snapshot, and event log embedded in a
// rendered document (§4.3, §6.1), locating each by its declared
// `type` attribute via a real HTML tokenizer rather than regex, tolerating
// an absent blueprint or event log. snapshot is non-nil iff the document
// contained a (possibly empty) snapshot block; events is nil when no
// events block is present at all, and empty (non-nil) when the block is
// present but contains `[]`.
func Parse(document string) (blueprint *types.Blueprint, snapshot *types.PageState, events []types.Event, err error) {
	root, parseErr := html.Parse(strings.NewReader(document))
	if parseErr != nil {
		return nil, nil, nil, fmt.Errorf("render: parse html: %w", parseErr)
	}

	var walk func(*html.Node) error
	walk = func(n *html.Node) error {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			blockType := attr(n, "type")
			text := scriptText(n)
			switch blockType {
			case blueprintBlockType:
				var bp types.Blueprint
				if err := json.Unmarshal([]byte(text), &bp); err != nil {
					return fmt.Errorf("render: decode blueprint block: %w", err)
				}
				blueprint = &bp
			case snapshotBlockType:
				var snap types.PageState
				if err := json.Unmarshal([]byte(text), &snap); err != nil {
					return fmt.Errorf("render: decode snapshot block: %w", err)
				}
				snapshot = &snap
			case eventsBlockType:
				var evs []types.Event
				if err := json.Unmarshal([]byte(text), &evs); err != nil {
					return fmt.Errorf("render: decode events block: %w", err)
				}
				if evs == nil {
					evs = []types.Event{}
				}
				events = evs
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, nil, nil, err
	}
	return blueprint, snapshot, events, nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func scriptText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.ReplaceAll(b.String(), "<\\/script", "</script")
}
