// Package recorder implements the flight recorder of §4.8: a bounded async
// queue in front of an append-only JSONL sink, batched to bound I/O without
// ever blocking the turn that produced a record.
package recorder

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aidekernel/aide/internal/orchestrator"
)

const (
	// DefaultCapacity is the bounded queue size (§4.8 "default 10,000").
	DefaultCapacity = 10_000
	// DefaultBatchSize flushes once this many records have queued.
	DefaultBatchSize = 100
	// DefaultFlushInterval flushes on this cadence even if the batch is
	// short (§4.8 "up to 100 records or every 60s, whichever comes first").
	DefaultFlushInterval = 60 * time.Second
)

// entry is the on-disk shape of one flight-recorder record, grounded on
// audit.Entry's flat append-only JSONL layout.
type entry struct {
	TurnID    string          `json:"turn_id"`
	PageID    string          `json:"page_id"`
	CreatedAt time.Time       `json:"created_at"`
	Tiers     []string        `json:"tiers,omitempty"`
	Shadow    bool            `json:"shadow,omitempty"`
	Prompt    string          `json:"prompt,omitempty"`
	Applied   int             `json:"applied"`
	Rejected  int             `json:"rejected"`
	Error     string          `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	Deltas    json.RawMessage `json:"deltas,omitempty"`
}

// Sink is the append-only destination a Recorder flushes batches to; *Writer
// satisfies it, tests substitute an in-memory fake.
type Sink interface {
	AppendBatch(entries []entry) error
}

// Recorder implements orchestrator.FlightRecorder. Record is non-blocking:
// a full queue drops the oldest entry and logs a warning rather than
// stalling the caller (§4.8).
type Recorder struct {
	sink   Sink
	log    *slog.Logger
	queue  chan entry
	batch  int
	period time.Duration

	dropped atomicCounter

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// New starts a Recorder's background flush loop. Call Close to drain and
// stop it.
func New(sink Sink, log *slog.Logger, capacity, batch int, period time.Duration) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	if period <= 0 {
		period = DefaultFlushInterval
	}
	r := &Recorder{
		sink:   sink,
		log:    log,
		queue:  make(chan entry, capacity),
		batch:  batch,
		period: period,
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues rec for eventual flush. It never blocks: an overflowing
// queue drops the oldest queued record and logs a warning (§4.8 "Overflow
// drops oldest with a warning").
func (r *Recorder) Record(rec orchestrator.Record) {
	e := toEntry(rec)

	select {
	case r.queue <- e:
		return
	default:
	}

	// Queue is full: drop the oldest to make room, per §4.8.
	select {
	case <-r.queue:
		r.dropped.add(1)
		r.log.Warn("recorder: queue full, dropped oldest record", "dropped_total", r.dropped.load())
	default:
	}
	select {
	case r.queue <- e:
	default:
		// Lost a race with another Record; give up silently rather than
		// block — correctness here is best-effort by design.
	}
}

// Close stops accepting flush ticks, drains whatever is queued, and returns
// once the final batch has been written.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	var pending []entry
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := r.sink.AppendBatch(pending); err != nil {
			r.log.Warn("recorder: flush failed", "error", err, "count", len(pending))
		}
		pending = pending[:0]
	}

	for {
		select {
		case e := <-r.queue:
			pending = append(pending, e)
			if len(pending) >= r.batch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.closed:
			for {
				select {
				case e := <-r.queue:
					pending = append(pending, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

func toEntry(rec orchestrator.Record) entry {
	e := entry{
		TurnID:   rec.TurnID,
		PageID:   rec.PageID,
		Shadow:   rec.Shadow,
		Prompt:   rec.Prompt,
		Applied:  len(rec.Applied),
		Rejected: len(rec.Rejected),
	}
	if !rec.Started.IsZero() {
		e.CreatedAt = rec.Started
	} else {
		e.CreatedAt = time.Now().UTC()
	}
	e.DurationMS = rec.Duration.Milliseconds()
	if rec.Err != nil {
		e.Error = rec.Err.Error()
	}
	for _, t := range rec.Tiers {
		e.Tiers = append(e.Tiers, string(t))
	}
	// Serialization errors skip only the offending record (§4.8); the
	// deltas field is best-effort context, never load-bearing.
	if len(rec.Applied) > 0 {
		if data, err := json.Marshal(rec.Applied); err == nil {
			e.Deltas = data
		}
	}
	return e
}

type atomicCounter struct {
	mu sync.Mutex
	n  int64
}

func (c *atomicCounter) add(n int64) {
	c.mu.Lock()
	c.n += n
	c.mu.Unlock()
}

func (c *atomicCounter) load() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
