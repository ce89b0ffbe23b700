// Package store is a small schema-less document store with change subscriptions.
// Documents live in named collections; every driver assigns ids, resolves server
// timestamps and notifies subscribers after each write.
package store

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("missing or insufficient permissions")
	ErrUnknownDriver    = errors.New("unknown store driver")
)

// Document is the field set of a stored record.
type Document map[string]any

// Record is a document together with its id.
type Record struct {
	ID   string
	Data Document
}

// Decode copies the record into v through its JSON form. The id is exposed as "id".
func (r Record) Decode(v any) error {
	fields := make(Document, len(r.Data)+1)
	for k, val := range r.Data {
		fields[k] = val
	}
	fields["id"] = r.ID
	raw, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	return errors.Wrap(json.Unmarshal(raw, v), "decode record")
}

// Query orders a listing. An empty OrderBy keeps driver order sorted by id.
type Query struct {
	OrderBy string
	Desc    bool
	Limit   int
}

// Snapshot is delivered to subscribers: the full query result, or the error that
// ended the subscription.
type Snapshot struct {
	Records []Record
	Err     error
}

// Listener receives snapshots. Calls for one subscription never overlap.
type Listener func(Snapshot)

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// Store is implemented by every driver.
type Store interface {
	Add(ctx context.Context, collection string, doc Document) (string, error)
	Set(ctx context.Context, collection, id string, doc Document) error
	Get(ctx context.Context, collection, id string) (Record, error)
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string, q Query) ([]Record, error)
	// Subscribe delivers the current result immediately and again after every
	// change to the collection until ctx ends or the returned func is called.
	Subscribe(ctx context.Context, collection string, q Query, fn Listener) (Unsubscribe, error)
	Close() error
}

type serverTimestamp struct{}

// ServerTimestamp is replaced by the driver's clock when the document is written.
var ServerTimestamp = serverTimestamp{}

// FromValue converts a tagged struct into a Document, dropping its "id" field.
func FromValue(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	doc := Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	delete(doc, "id")
	return doc, nil
}

func resolve(doc Document, now time.Time) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = now.UTC()
			continue
		}
		out[k] = v
	}
	return out
}

func sortRecords(records []Record, q Query) []Record {
	sort.SliceStable(records, func(i, j int) bool {
		if q.OrderBy == "" {
			return records[i].ID < records[j].ID
		}
		c := compareValues(records[i].Data[q.OrderBy], records[j].Data[q.OrderBy])
		if c == 0 {
			return records[i].ID < records[j].ID
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})
	if q.Limit > 0 && len(records) > q.Limit {
		records = records[:q.Limit]
	}
	return records
}

// compareValues orders missing values first, then times, numbers and strings.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb)
		}
	}
	if fa, ok := asNumber(a); ok {
		if fb, ok := asNumber(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	sa, sb := toString(a), toString(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	}
	raw, _ := json.Marshal(v)
	return string(raw)
}
