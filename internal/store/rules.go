package store

import (
	"context"

	"github.com/pkg/errors"

	"buntee/internal/models"
)

// Principal identifies who is talking to the store.
type Principal struct {
	Email string
	Admin bool
}

// Anonymous is the principal of every public visitor.
var Anonymous = Principal{}

type access int

const (
	accessAdmin access = iota
	accessPublic
)

// rule mirrors the deployment's security rules: who may read a collection and who
// may create documents in it. Updates and deletes always need an admin.
type rule struct {
	read   access
	create access
}

var rules = map[string]rule{
	models.CollectionSettings:    {read: accessPublic, create: accessAdmin},
	models.CollectionMenuItems:   {read: accessPublic, create: accessAdmin},
	models.CollectionPreBookings: {read: accessAdmin, create: accessPublic},
	models.CollectionEventOrders: {read: accessAdmin, create: accessPublic},
	models.CollectionFeedbacks:   {read: accessAdmin, create: accessPublic},
}

// CanRead reports whether p may read collection.
func CanRead(p Principal, collection string) bool {
	return p.Admin || rules[collection].read == accessPublic && known(collection)
}

// CanCreate reports whether p may add documents to collection.
func CanCreate(p Principal, collection string) bool {
	return p.Admin || rules[collection].create == accessPublic && known(collection)
}

func known(collection string) bool {
	_, ok := rules[collection]
	return ok
}

type guarded struct {
	next      Store
	principal Principal
}

// Guarded wraps s so that every call is checked against the access rules for p.
// Denied calls return ErrPermissionDenied without touching s.
func Guarded(s Store, p Principal) Store {
	return &guarded{next: s, principal: p}
}

func denied(op, collection string) error {
	return errors.Wrapf(ErrPermissionDenied, "%s %s", op, collection)
}

func (g *guarded) Add(ctx context.Context, collection string, doc Document) (string, error) {
	if !CanCreate(g.principal, collection) {
		return "", denied("add", collection)
	}
	return g.next.Add(ctx, collection, doc)
}

func (g *guarded) Set(ctx context.Context, collection, id string, doc Document) error {
	if !g.principal.Admin {
		return denied("set", collection)
	}
	return g.next.Set(ctx, collection, id, doc)
}

func (g *guarded) Get(ctx context.Context, collection, id string) (Record, error) {
	if !CanRead(g.principal, collection) {
		return Record{}, denied("get", collection)
	}
	return g.next.Get(ctx, collection, id)
}

func (g *guarded) Delete(ctx context.Context, collection, id string) error {
	if !g.principal.Admin {
		return denied("delete", collection)
	}
	return g.next.Delete(ctx, collection, id)
}

func (g *guarded) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	if !CanRead(g.principal, collection) {
		return nil, denied("list", collection)
	}
	return g.next.List(ctx, collection, q)
}

func (g *guarded) Subscribe(ctx context.Context, collection string, q Query, fn Listener) (Unsubscribe, error) {
	if !CanRead(g.principal, collection) {
		return nil, denied("subscribe", collection)
	}
	return g.next.Subscribe(ctx, collection, q, fn)
}

// Close is a no-op: the wrapped store belongs to whoever created it.
func (g *guarded) Close() error { return nil }
