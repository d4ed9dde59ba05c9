// Package render implements the pure state → HTML document mapping (§4.3)
// and its inverse, html → (blueprint, snapshot, events) (§4.3, §6.1). Render
// is deterministic for a given state: the same PageState, Blueprint, and
// event log always produce byte-identical output.
package render

// The three recoverable data blocks are embedded as script elements tagged
// by MIME-like type attributes, per §6.1's "parser MUST find each block by
// its declared content-type attribute (not by regex)". Using real type
// attributes (rather than a comment convention or id-based lookup) is what
// makes an html/token parser the correct tool instead of one.
const (
	blueprintBlockType = "application/aide-blueprint+json"
	snapshotBlockType  = "application/aide-snapshot+json"
	eventsBlockType    = "application/aide-events+json"
)

const blockElementID = "aide-data"
