package orchestrator

import (
	"sync"
)

// turnJob is one mailbox entry: a request plus the channel its result is
// delivered on.
type turnJob struct {
	req   TurnRequest
	reply chan TurnResult
}

// pageActor serializes every turn for a single page through one goroutine
// reading a buffered mailbox, giving FIFO ordering without a lock (§5, §9
// REDESIGN FLAGS "a channel/mailbox per page").
type pageActor struct {
	pageID  string
	mailbox chan turnJob
	done    chan struct{}
}

func newPageActor(o *Orchestrator, pageID string) *pageActor {
	a := &pageActor{
		pageID:  pageID,
		mailbox: make(chan turnJob, 32),
		done:    make(chan struct{}),
	}
	go a.run(o)
	return a
}

func (a *pageActor) run(o *Orchestrator) {
	defer close(a.done)
	for job := range a.mailbox {
		res := o.runTurn(job.req)
		job.reply <- res
	}
}

// close stops accepting new jobs once the mailbox drains what's already
// queued; run's range loop exits when the channel closes.
func (a *pageActor) close() {
	close(a.mailbox)
}

// actorTable is the per-node registry of live page actors, one per page
// currently being turned, created lazily and never explicitly removed
// (§9: "a concurrent map of lock handles" — idle actors are cheap, a single
// parked goroutine blocked on an empty channel read).
type actorTable struct {
	mu       sync.Mutex
	actors   map[string]*pageActor
	draining bool
}

func newActorTable() *actorTable {
	return &actorTable{actors: make(map[string]*pageActor)}
}

func (t *actorTable) getOrCreate(pageID string, o *Orchestrator) (*pageActor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draining {
		return nil, ErrDraining
	}
	if a, ok := t.actors[pageID]; ok {
		return a, nil
	}
	a := newPageActor(o, pageID)
	t.actors[pageID] = a
	return a, nil
}

// drain marks the table closed to new pages and closes every existing
// actor's mailbox, letting each finish whatever is already queued.
func (t *actorTable) drain() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.draining = true
	for _, a := range t.actors {
		a.close()
	}
}

// wait blocks until every actor's mailbox has fully drained.
func (t *actorTable) wait() {
	t.mu.Lock()
	actors := make([]*pageActor, 0, len(t.actors))
	for _, a := range t.actors {
		actors = append(actors, a)
	}
	t.mu.Unlock()

	for _, a := range actors {
		<-a.done
	}
}
