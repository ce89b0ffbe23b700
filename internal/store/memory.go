package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemoryStore keeps every collection in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	hub         *hub
	now         func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		collections: make(map[string]map[string]Document),
		now:         time.Now,
	}
	m.hub = newHub(func(_ context.Context, collection string, q Query) ([]Record, error) {
		return m.list(collection, q), nil
	}, nil)
	return m
}

// SetClock replaces the clock used for server timestamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemoryStore) Add(ctx context.Context, collection string, doc Document) (string, error) {
	id := uuid.NewString()
	if err := m.Set(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]Document)
		m.collections[collection] = coll
	}
	coll[id] = resolve(doc, m.now())
	m.mu.Unlock()

	m.notify(collection)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return Record{}, errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	return Record{ID: id, Data: copyDocument(doc)}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if _, ok := m.collections[collection][id]; !ok {
		m.mu.Unlock()
		return errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	delete(m.collections[collection], id)
	m.mu.Unlock()

	m.notify(collection)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.list(collection, q), nil
}

func (m *MemoryStore) list(collection string, q Query) []Record {
	m.mu.RLock()
	records := make([]Record, 0, len(m.collections[collection]))
	for id, doc := range m.collections[collection] {
		records = append(records, Record{ID: id, Data: copyDocument(doc)})
	}
	m.mu.RUnlock()
	return sortRecords(records, q)
}

func (m *MemoryStore) Subscribe(ctx context.Context, collection string, q Query, fn Listener) (Unsubscribe, error) {
	return m.hub.subscribe(ctx, collection, q, fn)
}

// Close drops every subscription.
func (m *MemoryStore) Close() error {
	m.hub.close()
	return nil
}

func (m *MemoryStore) notify(collection string) {
	m.hub.notify(collection)
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
