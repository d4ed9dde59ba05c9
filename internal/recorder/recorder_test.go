package recorder

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aidekernel/aide/internal/orchestrator"
	"github.com/aidekernel/aide/internal/tier"
	"github.com/aidekernel/aide/internal/types"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]entry
	err     error
}

func (s *fakeSink) AppendBatch(entries []entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := append([]entry(nil), entries...)
	s.batches = append(s.batches, cp)
	return nil
}

func (s *fakeSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestRecordFlushesOnBatchSize(t *testing.T) {
	sink := &fakeSink{}
	r := New(sink, nil, 100, 3, time.Hour)
	defer r.Close()

	for i := 0; i < 3; i++ {
		r.Record(orchestrator.Record{PageID: "p1", TurnID: "t1", Tiers: []tier.Name{tier.L3}})
	}

	deadline := time.Now().Add(time.Second)
	for sink.total() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := sink.total(); got != 3 {
		t.Fatalf("expected 3 flushed records, got %d", got)
	}
}

func TestCloseFlushesPartialBatch(t *testing.T) {
	sink := &fakeSink{}
	r := New(sink, nil, 100, 100, time.Hour)

	r.Record(orchestrator.Record{PageID: "p1", TurnID: "t1"})
	r.Record(orchestrator.Record{PageID: "p1", TurnID: "t2", Err: errors.New("boom")})
	r.Close()

	if got := sink.total(); got != 2 {
		t.Fatalf("expected 2 records flushed on close, got %d", got)
	}
}

func TestRecordNeverBlocksOnFullQueue(t *testing.T) {
	sink := &fakeSink{}
	r := New(sink, nil, 2, 1000, time.Hour) // batch larger than capacity: nothing auto-flushes
	defer r.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			r.Record(orchestrator.Record{PageID: "p1", TurnID: "overflow"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked under sustained overflow")
	}
}

func TestToEntryCapturesTierNamesAndEventCounts(t *testing.T) {
	applied := []types.Event{{ID: "e1"}, {ID: "e2"}}
	rec := orchestrator.Record{
		PageID:  "p1",
		TurnID:  "t1",
		Tiers:   []tier.Name{tier.L3, tier.L4},
		Applied: applied,
		Started: time.Unix(0, 0),
		Duration: 2 * time.Second,
	}
	e := toEntry(rec)
	if len(e.Tiers) != 2 || e.Tiers[0] != string(tier.L3) || e.Tiers[1] != string(tier.L4) {
		t.Fatalf("unexpected tiers: %+v", e.Tiers)
	}
	if e.Applied != 2 {
		t.Fatalf("expected applied count 2, got %d", e.Applied)
	}
	if e.DurationMS != 2000 {
		t.Fatalf("expected duration 2000ms, got %d", e.DurationMS)
	}
}
