package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/google/logger"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// RedisStore keeps one hash per collection (id -> JSON document) and announces
// every change on a pub/sub channel per collection. All subscribers share one
// pattern subscription.
type RedisStore struct {
	client *redis.Client
	prefix string
	hub    *hub
	now    func() time.Time
}

// NewRedisStore wraps an existing client. Keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "buntee"
	}
	r := &RedisStore{client: client, prefix: prefix, now: time.Now}
	r.hub = newHub(r.List, r.feed)
	return r
}

func (r *RedisStore) key(collection string) string {
	return fmt.Sprintf("%s:docs:%s", r.prefix, collection)
}

func (r *RedisStore) channel(collection string) string {
	return fmt.Sprintf("%s:changes:%s", r.prefix, collection)
}

func (r *RedisStore) Add(ctx context.Context, collection string, doc Document) (string, error) {
	id := uuid.NewString()
	if err := r.Set(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (r *RedisStore) Set(ctx context.Context, collection, id string, doc Document) error {
	payload, err := json.Marshal(resolve(doc, r.now()))
	if err != nil {
		return errors.Wrap(err, "encode document")
	}
	if err := r.client.HSet(ctx, r.key(collection), id, payload).Err(); err != nil {
		return errors.Wrapf(err, "redis hset %s/%s", collection, id)
	}
	r.publish(ctx, collection, id)
	return nil
}

func (r *RedisStore) Get(ctx context.Context, collection, id string) (Record, error) {
	raw, err := r.client.HGet(ctx, r.key(collection), id).Result()
	if err == redis.Nil {
		return Record{}, errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "redis hget %s/%s", collection, id)
	}
	doc := Document{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Record{}, errors.Wrapf(err, "decode %s/%s", collection, id)
	}
	return Record{ID: id, Data: doc}, nil
}

func (r *RedisStore) Delete(ctx context.Context, collection, id string) error {
	n, err := r.client.HDel(ctx, r.key(collection), id).Result()
	if err != nil {
		return errors.Wrapf(err, "redis hdel %s/%s", collection, id)
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	r.publish(ctx, collection, id)
	return nil
}

func (r *RedisStore) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	all, err := r.client.HGetAll(ctx, r.key(collection)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "redis hgetall %s", collection)
	}
	records := make([]Record, 0, len(all))
	for id, raw := range all {
		doc := Document{}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			logger.Warningf("store: skipping undecodable document %s/%s: %v", collection, id, err)
			continue
		}
		records = append(records, Record{ID: id, Data: doc})
	}
	return sortRecords(records, q), nil
}

func (r *RedisStore) Subscribe(ctx context.Context, collection string, q Query, fn Listener) (Unsubscribe, error) {
	return r.hub.subscribe(ctx, collection, q, fn)
}

// feed holds the single pattern subscription every Subscribe call shares.
func (r *RedisStore) feed(ctx context.Context, ready func(), notify func(string)) error {
	pattern := r.channel("*")
	ps := r.client.PSubscribe(ctx, pattern)
	defer ps.Close()
	// wait for the subscription to be confirmed so no change slips in before the first snapshot
	if _, err := ps.Receive(ctx); err != nil {
		return errors.Wrapf(err, "redis psubscribe %s", pattern)
	}
	ready()

	base := strings.TrimSuffix(pattern, "*")
	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redis pubsub channel closed")
			}
			notify(strings.TrimPrefix(msg.Channel, base))
		}
	}
}

func (r *RedisStore) Close() error {
	r.hub.close()
	return r.client.Close()
}

func (r *RedisStore) publish(ctx context.Context, collection, id string) {
	if err := r.client.Publish(ctx, r.channel(collection), id).Err(); err != nil {
		logger.Warningf("store: change notification for %s/%s failed: %v", collection, id, err)
	}
}
