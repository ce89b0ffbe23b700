package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/logger"
	"github.com/pkg/errors"
)

// subscription serialises listener calls and makes cancellation idempotent.
type subscription struct {
	mu     sync.Mutex
	query  Query
	fn     Listener
	once   sync.Once
	cancel context.CancelFunc
	done   atomic.Bool
}

// refresh takes the snapshot and delivers it inside the subscription's
// critical section, so the newest state is always delivered last. A failed
// snapshot is only delivered when deliverErr is set.
func (s *subscription) refresh(snapshot func() Snapshot, deliverErr bool) (Snapshot, bool) {
	if s.done.Load() {
		return Snapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done.Load() {
		return Snapshot{}, false
	}
	snap := snapshot()
	if snap.Err == nil || deliverErr {
		s.fn(snap)
	}
	return snap, true
}

func (s *subscription) stop(cleanup func()) {
	s.once.Do(func() {
		s.done.Store(true)
		if s.cancel != nil {
			s.cancel()
		}
		if cleanup != nil {
			cleanup()
		}
	})
}

// feedFunc listens to a backend change feed. It calls ready once listening,
// then notify with the collection name of every change, until ctx ends or the
// feed fails.
type feedFunc func(ctx context.Context, ready func(), notify func(collection string)) error

type feedState struct {
	ready chan struct{}
	err   error
}

// hub fans one backend change feed out to every in-process subscription. A
// store holds a single hub, so subscribers never cost a backend connection each.
type hub struct {
	ctx    context.Context
	cancel context.CancelFunc
	list   func(ctx context.Context, collection string, q Query) ([]Record, error)
	run    feedFunc

	mu   sync.Mutex
	subs map[string]map[int]*subscription
	next int
	feed *feedState
}

// newHub creates a hub. A nil run means changes are announced by calling
// notify directly.
func newHub(list func(ctx context.Context, collection string, q Query) ([]Record, error), run feedFunc) *hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &hub{
		ctx:    ctx,
		cancel: cancel,
		list:   list,
		run:    run,
		subs:   make(map[string]map[int]*subscription),
	}
}

// ensureFeed starts the backend feed on first use and waits until it listens.
func (h *hub) ensureFeed(ctx context.Context) error {
	if h.run == nil {
		return h.ctx.Err()
	}
	h.mu.Lock()
	st := h.feed
	if st == nil {
		if err := h.ctx.Err(); err != nil {
			h.mu.Unlock()
			return err
		}
		st = &feedState{ready: make(chan struct{})}
		h.feed = st
		go h.runFeed(st)
	}
	h.mu.Unlock()

	select {
	case <-st.ready:
		return st.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *hub) runFeed(st *feedState) {
	var once sync.Once
	ready := func() { once.Do(func() { close(st.ready) }) }

	err := h.run(h.ctx, ready, h.notify)
	if err == nil {
		err = errors.New("change feed closed")
	}

	h.mu.Lock()
	if h.feed == st {
		h.feed = nil
	}
	var dropped []*subscription
	for coll, subs := range h.subs {
		for _, s := range subs {
			dropped = append(dropped, s)
		}
		delete(h.subs, coll)
	}
	h.mu.Unlock()

	started := true
	once.Do(func() {
		started = false
		st.err = err
		close(st.ready)
	})
	if !started {
		return
	}
	if h.ctx.Err() == nil {
		logger.Warningf("store: change feed stopped: %v", err)
	}
	for _, s := range dropped {
		if h.ctx.Err() == nil {
			s.refresh(func() Snapshot { return Snapshot{Err: err} }, true)
		}
		s.stop(nil)
	}
}

func (h *hub) subscribe(ctx context.Context, collection string, q Query, fn Listener) (Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := h.ensureFeed(ctx); err != nil {
		return nil, errors.Wrapf(err, "subscribe %s", collection)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{query: q, fn: fn, cancel: cancel}

	h.mu.Lock()
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[int]*subscription)
	}
	h.next++
	key := h.next
	h.subs[collection][key] = sub
	h.mu.Unlock()

	unsubscribe := func() {
		sub.stop(func() {
			h.mu.Lock()
			delete(h.subs[collection], key)
			h.mu.Unlock()
		})
	}
	go func() {
		<-subCtx.Done()
		unsubscribe()
	}()

	snap, _ := sub.refresh(func() Snapshot { return h.snapshot(subCtx, collection, q) }, false)
	if snap.Err != nil {
		unsubscribe()
		return nil, snap.Err
	}
	return unsubscribe, nil
}

func (h *hub) snapshot(ctx context.Context, collection string, q Query) Snapshot {
	records, err := h.list(ctx, collection, q)
	if err != nil {
		return Snapshot{Err: err}
	}
	return Snapshot{Records: records}
}

// notify re-runs every subscription on collection. A subscription whose query
// fails receives the error and ends.
func (h *hub) notify(collection string) {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs[collection]))
	keys := make([]int, 0, len(h.subs[collection]))
	for k, s := range h.subs[collection] {
		subs = append(subs, s)
		keys = append(keys, k)
	}
	h.mu.Unlock()

	for i, s := range subs {
		snap, ok := s.refresh(func() Snapshot { return h.snapshot(h.ctx, collection, s.query) }, true)
		if ok && snap.Err != nil {
			key := keys[i]
			s.stop(func() {
				h.mu.Lock()
				delete(h.subs[collection], key)
				h.mu.Unlock()
			})
		}
	}
}

// count returns the number of live subscriptions.
func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, subs := range h.subs {
		n += len(subs)
	}
	return n
}

// close ends the feed and every subscription.
func (h *hub) close() {
	h.cancel()
	h.mu.Lock()
	var all []*subscription
	for _, subs := range h.subs {
		for _, s := range subs {
			all = append(all, s)
		}
	}
	h.mu.Unlock()
	for _, s := range all {
		s.cancel()
	}
}
