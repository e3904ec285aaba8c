// Package memory is an in-process replica engine. It backs tests and the
// command-line tool; a production deployment plugs a CRDT engine in behind
// the same replica interfaces.
//
// Merges are a record-level union: records unknown locally are adopted,
// records known on both sides keep the later write, and id lists keep the
// union of both sides. Deletions are not tracked, so a record deleted on one
// replica reappears when merged with a replica that still holds it.
package memory

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"xdao.co/commons/codec"
	"xdao.co/commons/replica"
	"xdao.co/commons/workspace"
)

const subscriberBuffer = 64

type Option func(*Engine)

// WithIDs sets the generator for document ids.
func WithIDs(ids func() string) Option {
	return func(e *Engine) { e.ids = ids }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine holds documents in memory. Safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	docs    map[string]*Handle
	ids     func() string
	log     *slog.Logger
	metrics *Metrics
}

var _ replica.Engine = (*Engine)(nil)

func New(opts ...Option) *Engine {
	e := &Engine{
		docs: map[string]*Handle{},
		ids:  workspace.NewUUID,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e
}

func (e *Engine) Create(ctx context.Context, id string, doc *workspace.Document) (replica.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, workspace.Invalid("WS-REP-001", "document is required")
	}
	state, err := doc.Clone()
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if id == "" {
		id = e.ids()
	}
	if _, ok := e.docs[id]; ok {
		return nil, replica.ErrExists
	}
	h := &Handle{id: id, doc: state, engine: e}
	e.docs[id] = h
	e.metrics.Documents.Set(float64(len(e.docs)))
	e.log.Debug("document created", "doc", id)
	return h, nil
}

func (e *Engine) Open(ctx context.Context, id string) (replica.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.docs[id]
	if !ok {
		return nil, replica.ErrNotFound
	}
	return h, nil
}

// Handle is one document held by an Engine.
type Handle struct {
	id     string
	engine *Engine

	mu          sync.RWMutex
	doc         *workspace.Document
	subscribers []chan replica.Event
}

var _ replica.Handle = (*Handle)(nil)

func (h *Handle) ID() string { return h.id }

func (h *Handle) Snapshot() (*workspace.Document, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.doc.Clone()
}

// Change runs fn against a private copy and swaps it in when fn succeeds.
// Writers are serialized, so a read-then-write inside fn sees no
// interleaved change from the same process.
func (h *Handle) Change(msg string, fn replica.ChangeFunc) error {
	h.mu.Lock()
	draft, err := h.doc.Clone()
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if err := fn(draft); err != nil {
		h.mu.Unlock()
		h.engine.metrics.Changes.WithLabelValues("rejected").Inc()
		return err
	}
	same, err := equal(h.doc, draft)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if same {
		h.mu.Unlock()
		h.engine.metrics.Changes.WithLabelValues("unchanged").Inc()
		return nil
	}
	h.doc = draft
	h.mu.Unlock()

	h.engine.metrics.Changes.WithLabelValues("committed").Inc()
	h.engine.log.Debug("change committed", "doc", h.id, "message", msg)
	h.dispatch(replica.Event{DocID: h.id, Origin: replica.OriginLocal, Message: msg, LastModified: draft.LastModified})
	return nil
}

// Merge folds remote into the local state.
func (h *Handle) Merge(remote *workspace.Document) error {
	if remote == nil {
		return workspace.Invalid("WS-REP-001", "document is required")
	}
	h.mu.Lock()
	merged, err := Merge(h.doc, remote)
	if err != nil {
		h.mu.Unlock()
		h.engine.metrics.Merges.WithLabelValues("failed").Inc()
		return err
	}
	same, err := equal(h.doc, merged)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if same {
		h.mu.Unlock()
		h.engine.metrics.Merges.WithLabelValues("unchanged").Inc()
		return nil
	}
	h.doc = merged
	h.mu.Unlock()

	h.engine.metrics.Merges.WithLabelValues("committed").Inc()
	h.engine.log.Debug("merge committed", "doc", h.id)
	h.dispatch(replica.Event{DocID: h.id, Origin: replica.OriginMerge, LastModified: merged.LastModified})
	return nil
}

func (h *Handle) Subscribe(ctx context.Context) <-chan replica.Event {
	ch := make(chan replica.Event, subscriberBuffer)
	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()
	h.engine.metrics.Subscribers.Inc()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		for i, sub := range h.subscribers {
			if sub == ch {
				h.subscribers = append(h.subscribers[:i:i], h.subscribers[i+1:]...)
				break
			}
		}
		close(ch)
		h.mu.Unlock()
		h.engine.metrics.Subscribers.Dec()
	}()
	return ch
}

// dispatch delivers ev without blocking. A subscriber whose buffer is full
// misses the event and picks up the state on its next Snapshot. Holding the
// read lock keeps unsubscribing goroutines from closing a channel mid-send.
func (h *Handle) dispatch(ev replica.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		select {
		case sub <- ev:
		default:
			h.engine.log.Debug("subscriber lagging, event dropped", "doc", h.id)
		}
	}
}

func equal(a, b *workspace.Document) (bool, error) {
	ab, err := codec.Marshal(a)
	if err != nil {
		return false, err
	}
	bb, err := codec.Marshal(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ab, bb), nil
}
