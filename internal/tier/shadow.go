package tier

import (
	"context"

	"github.com/aidekernel/aide/internal/stream"
)

// Shadow runs a tier call alongside the primary turn without ever mutating
// state or broadcasting to subscribers (§4.6 "Shadow calls: share the
// snapshot, never mutate state or broadcast"). Shadow returns at once; each
// decomposed item is handed to onItem from the call's own goroutine, purely
// for comparison/telemetry purposes; any
// error, including a timeout, is swallowed rather than surfaced, since a
// shadow call must never affect the outcome of the turn it rides alongside.
func Shadow(ctx context.Context, t Tier, req Request, onItem func(stream.Item)) {
	go func() {
		blocks, errc := t.Call(ctx, req)
		m := stream.NewMachine()
		for ev := range blocks {
			for _, item := range m.Feed(ev) {
				if onItem != nil {
					onItem(item)
				}
			}
		}
		<-errc // drain; shadow errors are not reported
	}()
}
