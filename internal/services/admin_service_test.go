package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buntee/internal/models"
	"buntee/internal/store"
)

var testAdmin = store.Principal{Email: "owner@buntee.in", Admin: true}

func TestAdminService(t *testing.T) {
	ctx := context.Background()
	base := store.NewMemoryStore()
	svc := NewAdminService(base)
	front := NewStorefrontService(base)

	t.Run("settings round trip", func(t *testing.T) {
		st, err := svc.Settings(ctx, testAdmin)
		require.NoError(t, err)
		assert.Empty(t, st.TeaserText)

		require.NoError(t, svc.SaveSettings(ctx, testAdmin, models.Settings{TeaserText: "  Drop 2 this Friday "}))
		teaser, err := front.Teaser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Drop 2 this Friday", teaser)
	})

	t.Run("visitors cannot manage the menu", func(t *testing.T) {
		_, err := svc.AddMenuItem(ctx, store.Anonymous, models.MenuItem{Name: "Bun"})
		assert.ErrorIs(t, err, store.ErrPermissionDenied)
		assert.ErrorIs(t, svc.SaveSettings(ctx, store.Anonymous, models.Settings{}), store.ErrPermissionDenied)
	})

	t.Run("menu crud", func(t *testing.T) {
		_, err := svc.AddMenuItem(ctx, testAdmin, models.MenuItem{Name: " "})
		assert.True(t, IsValidation(err))
		_, err = svc.AddMenuItem(ctx, testAdmin, models.MenuItem{Name: "Bun", Price: -1})
		assert.True(t, IsValidation(err))

		id, err := svc.AddMenuItem(ctx, testAdmin, models.MenuItem{Name: "Classic Bun Maska", Price: 49, Emoji: "🧈"})
		require.NoError(t, err)
		require.NoError(t, svc.UpdateMenuItem(ctx, testAdmin, id, models.MenuItem{Name: "Classic Bun Maska", Price: 59}))

		items, err := svc.Menu(ctx, testAdmin)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 59.0, items[0].Price)

		assert.ErrorIs(t, svc.UpdateMenuItem(ctx, testAdmin, "nope", models.MenuItem{Name: "X"}), store.ErrNotFound)
		require.NoError(t, svc.DeleteMenuItem(ctx, testAdmin, id))
		assert.ErrorIs(t, svc.DeleteMenuItem(ctx, testAdmin, id), store.ErrNotFound)
	})

	t.Run("submissions are listed newest first", func(t *testing.T) {
		clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		base.SetClock(func() time.Time { return clock })
		for _, name := range []string{"first", "second", "third"} {
			_, err := front.SubmitFeedback(ctx, models.Feedback{Rating: 4, Comment: "ok", Name: name})
			require.NoError(t, err)
			clock = clock.Add(time.Minute)
		}
		list, err := svc.Feedbacks(ctx, testAdmin)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "third", list[0].Name)
		assert.Equal(t, "first", list[2].Name)

		_, err = svc.Records(ctx, testAdmin, models.CollectionMenuItems)
		assert.ErrorIs(t, err, ErrUnknownCollection)
		_, err = svc.PreBookings(ctx, store.Anonymous)
		assert.ErrorIs(t, err, store.ErrPermissionDenied)
	})

	t.Run("subscription reports permission errors as snapshots", func(t *testing.T) {
		var snaps []store.Snapshot
		unsub, err := svc.Subscribe(ctx, store.Anonymous, models.CollectionEventOrders, func(s store.Snapshot) {
			snaps = append(snaps, s)
		})
		require.NoError(t, err)
		unsub()
		require.Len(t, snaps, 1)
		assert.ErrorIs(t, snaps[0].Err, store.ErrPermissionDenied)

		snaps = nil
		unsub, err = svc.Subscribe(ctx, testAdmin, models.CollectionEventOrders, func(s store.Snapshot) {
			snaps = append(snaps, s)
		})
		require.NoError(t, err)
		_, err = front.SubmitEventOrder(ctx, models.EventOrder{Name: "A", Contact: "1", Date: "2026-04-01", Type: "Wedding"})
		require.NoError(t, err)
		unsub()
		require.Len(t, snaps, 2)
		assert.Len(t, snaps[1].Records, 1)
	})
}
