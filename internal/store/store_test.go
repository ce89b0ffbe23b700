package store

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every driver must share.
func exerciseStore(t *testing.T, s Store, collection string) {
	ctx := context.Background()

	t.Run("add assigns ids and server timestamps", func(t *testing.T) {
		id, err := s.Add(ctx, collection, Document{"name": "Classic Bun", "timestamp": ServerTimestamp})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		rec, err := s.Get(ctx, collection, id)
		require.NoError(t, err)
		assert.Equal(t, "Classic Bun", rec.Data["name"])

		var decoded struct {
			ID        string    `json:"id"`
			Timestamp time.Time `json:"timestamp"`
		}
		require.NoError(t, rec.Decode(&decoded))
		assert.Equal(t, id, decoded.ID)
		assert.WithinDuration(t, time.Now(), decoded.Timestamp, time.Minute)
	})

	t.Run("set overwrites and missing documents are reported", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, collection, "fixed", Document{"name": "A"}))
		require.NoError(t, s.Set(ctx, collection, "fixed", Document{"name": "B"}))
		rec, err := s.Get(ctx, collection, "fixed")
		require.NoError(t, err)
		assert.Equal(t, "B", rec.Data["name"])

		_, err = s.Get(ctx, collection, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))

		require.NoError(t, s.Delete(ctx, collection, "fixed"))
		assert.True(t, errors.Is(s.Delete(ctx, collection, "fixed"), ErrNotFound))
	})

	t.Run("list orders by field", func(t *testing.T) {
		other := collection + "-sorted"
		for _, name := range []string{"Maska", "Bun", "Chai"} {
			_, err := s.Add(ctx, other, Document{"name": name})
			require.NoError(t, err)
		}
		recs, err := s.List(ctx, other, Query{OrderBy: "name"})
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, "Bun", recs[0].Data["name"])
		assert.Equal(t, "Maska", recs[2].Data["name"])

		recs, err = s.List(ctx, other, Query{OrderBy: "name", Desc: true, Limit: 1})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "Maska", recs[0].Data["name"])
	})

	t.Run("subscribers see the initial result and every change", func(t *testing.T) {
		feed := collection + "-feed"
		var mu sync.Mutex
		var sizes []int
		updates := make(chan struct{}, 8)

		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		unsubscribe, err := s.Subscribe(subCtx, feed, Query{OrderBy: "name"}, func(snap Snapshot) {
			mu.Lock()
			sizes = append(sizes, len(snap.Records))
			mu.Unlock()
			updates <- struct{}{}
		})
		require.NoError(t, err)
		waitFor(t, updates)

		_, err = s.Add(ctx, feed, Document{"name": "Bun"})
		require.NoError(t, err)
		waitFor(t, updates)

		unsubscribe()
		unsubscribe()
		_, err = s.Add(ctx, feed, Document{"name": "Chai"})
		require.NoError(t, err)

		select {
		case <-updates:
			t.Fatal("Expected no snapshot after unsubscribe")
		case <-time.After(200 * time.Millisecond):
		}
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []int{0, 1}, sizes)
	})
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s, "menuItems")
}

func TestMemoryStore_CancelledContextEndsSubscription(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 4)
	_, err := s.Subscribe(ctx, "menuItems", Query{}, func(Snapshot) { calls <- struct{}{} })
	require.NoError(t, err)
	waitFor(t, calls)

	cancel()
	assert.Eventually(t, func() bool {
		return s.hub.count() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("BUNTEE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BUNTEE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	s := NewRedisStore(client, "buntee-test-"+uuid.NewString())
	defer s.Close()
	exerciseStore(t, s, "menuItems")
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("BUNTEE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("BUNTEE_TEST_POSTGRES_URL not set")
	}
	s, err := NewPostgresStore(context.Background(), url, 4)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s, "test-"+uuid.NewString())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "firestore"})
	assert.True(t, errors.Is(err, ErrUnknownDriver))
}

func TestCompareValues(t *testing.T) {
	early := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(90 * time.Second)

	assert.Equal(t, -1, compareValues(early, late))
	assert.Equal(t, 1, compareValues(late.Format(time.RFC3339Nano), early.Format(time.RFC3339Nano)))
	assert.Equal(t, -1, compareValues(float64(2), 10))
	assert.Equal(t, -1, compareValues(nil, "x"))
	assert.Equal(t, 0, compareValues("bun", "bun"))
}
