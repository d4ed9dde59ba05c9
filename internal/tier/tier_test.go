package tier

import (
	"context"
	"testing"
	"time"

	"github.com/aidekernel/aide/internal/stream"
	"github.com/aidekernel/aide/internal/types"
)

func TestSelectPicksL4WithNoPriorTurnOrNoEntities(t *testing.T) {
	empty := types.NewPageState("p1")
	if got := Select(false, empty); got != L4 {
		t.Fatalf("expected L4 for first turn, got %s", got)
	}
	if got := Select(true, empty); got != L4 {
		t.Fatalf("expected L4 for an empty page, got %s", got)
	}
}

func TestSelectPicksL3WhenPageHasEntities(t *testing.T) {
	state := types.NewPageState("p1")
	state.Entities["child1"] = types.Entity{ID: "child1", ParentID: types.RootID}
	if got := Select(true, state); got != L3 {
		t.Fatalf("expected L3, got %s", got)
	}
}

func TestConfigTimeoutDefaultsWhenUnset(t *testing.T) {
	var c Config
	if c.timeout() != DefaultTimeout {
		t.Fatalf("expected default timeout, got %s", c.timeout())
	}
	c.Timeout = 5 * time.Second
	if c.timeout() != 5*time.Second {
		t.Fatalf("expected configured timeout to take precedence")
	}
}

// fakeTier is a stand-in Tier used to exercise Shadow without a network call.
type fakeTier struct {
	name  Name
	items []stream.BlockEvent
	err   error
}

func (f *fakeTier) Name() Name { return f.name }

func (f *fakeTier) Call(ctx context.Context, req Request) (<-chan stream.BlockEvent, <-chan error) {
	blocks := make(chan stream.BlockEvent, len(f.items))
	errc := make(chan error, 1)
	for _, ev := range f.items {
		blocks <- ev
	}
	close(blocks)
	if f.err != nil {
		errc <- f.err
	}
	close(errc)
	return blocks, errc
}

func TestShadowDeliversItemsWithoutMutatingCaller(t *testing.T) {
	ft := &fakeTier{
		name: L2,
		items: []stream.BlockEvent{
			{Kind: stream.BlockStart, Index: 0, BlockType: stream.BlockText},
			{Kind: stream.BlockDelta, Index: 0, TextDelta: "hi"},
			{Kind: stream.BlockStop, Index: 0},
		},
	}

	received := make(chan stream.Item, 1)
	Shadow(context.Background(), ft, Request{Prompt: "x"}, func(item stream.Item) {
		received <- item
	})

	select {
	case item := <-received:
		if item.Kind != stream.ItemVoice || item.Text != "hi" {
			t.Fatalf("unexpected shadow item: %+v", item)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for shadow item")
	}
}

func TestRegistryGetMissingTierErrors(t *testing.T) {
	r := &Registry{tiers: map[Name]Tier{}}
	if _, err := r.Get(L3); err == nil {
		t.Fatal("expected error for unconfigured tier")
	}
}
