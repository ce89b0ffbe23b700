package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buntee/internal/models"
	"buntee/internal/store"
)

func TestCart_Update(t *testing.T) {
	c := Cart{}
	c.Update("Classic Bun", 1)
	c.Update("Classic Bun", 1)
	c.Update("Maska", -1)
	assert.Equal(t, Cart{"Classic Bun": 2}, c)

	c.Update("Classic Bun", -5)
	assert.Empty(t, c)
	assert.True(t, c.Empty())
	assert.True(t, c.Valid())

	assert.False(t, Cart{"Classic Bun": 1, "Maska": -40}.Valid())
	assert.False(t, Cart{"Classic Bun": 0}.Valid())
}

func TestStorefrontService(t *testing.T) {
	ctx := context.Background()
	base := store.NewMemoryStore()
	svc := NewStorefrontService(base)
	admin := store.Guarded(base, store.Principal{Email: "owner@buntee.in", Admin: true})

	t.Run("menu is ordered by name", func(t *testing.T) {
		for _, name := range []string{"Nutella Bun", "Classic Bun", "Maska Bun"} {
			_, err := admin.Add(ctx, models.CollectionMenuItems, store.Document{"name": name, "price": 40.0, "emoji": "🍞"})
			require.NoError(t, err)
		}
		items, err := svc.Menu(ctx)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "Classic Bun", items[0].Name)
		assert.Equal(t, "Nutella Bun", items[2].Name)
		assert.NotEmpty(t, items[0].ID)
		assert.Equal(t, 40.0, items[0].Price)
	})

	t.Run("menu subscription sees new items", func(t *testing.T) {
		sub, cancel := context.WithCancel(ctx)
		defer cancel()
		var sizes []int
		unsub, err := svc.SubscribeMenu(sub, func(items []models.MenuItem, err error) {
			require.NoError(t, err)
			sizes = append(sizes, len(items))
		})
		require.NoError(t, err)
		_, err = admin.Add(ctx, models.CollectionMenuItems, store.Document{"name": "Bun Omelette", "price": 60.0})
		require.NoError(t, err)
		unsub()
		assert.Equal(t, []int{3, 4}, sizes)
	})

	t.Run("teaser defaults to empty", func(t *testing.T) {
		teaser, err := svc.Teaser(ctx)
		require.NoError(t, err)
		assert.Empty(t, teaser)

		require.NoError(t, admin.Set(ctx, models.CollectionSettings, models.SettingsGeneralID, store.Document{"teaserText": "Launching soon"}))
		teaser, err = svc.Teaser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Launching soon", teaser)
	})

	t.Run("pre-booking needs an item", func(t *testing.T) {
		_, err := svc.PreBook(ctx, models.PreBooking{Name: "Asha", Contact: "99999"})
		require.True(t, IsValidation(err))
		assert.Equal(t, "Please select at least one item from the menu!", err.Error())

		_, err = svc.PreBook(ctx, models.PreBooking{Name: " ", Contact: "99999", Items: map[string]int{"Classic Bun": 1}})
		assert.True(t, IsValidation(err))

		_, err = svc.PreBook(ctx, models.PreBooking{Name: "Asha", Contact: "99999", Items: map[string]int{"Classic Bun": 1, "Maska Bun": -40}})
		require.True(t, IsValidation(err))
		assert.Equal(t, "Quantities must be at least 1.", err.Error())

		_, err = svc.PreBook(ctx, models.PreBooking{Name: "Asha", Contact: "99999", Items: map[string]int{"Classic Bun": 1, "NotOnMenu": 9}})
		require.True(t, IsValidation(err))
		assert.Equal(t, `"NotOnMenu" is not on the menu.`, err.Error())

		id, err := svc.PreBook(ctx, models.PreBooking{Name: "Asha", Contact: "99999", Items: map[string]int{"Classic Bun": 2}})
		require.NoError(t, err)
		rec, err := admin.Get(ctx, models.CollectionPreBookings, id)
		require.NoError(t, err)
		var b models.PreBooking
		require.NoError(t, rec.Decode(&b))
		assert.Equal(t, 2, b.Items["Classic Bun"])
		assert.False(t, b.Timestamp.IsZero())
	})

	t.Run("event order requires date and type", func(t *testing.T) {
		_, err := svc.SubmitEventOrder(ctx, models.EventOrder{Name: "Mohan", Contact: "8888", Type: "Birthday"})
		assert.True(t, IsValidation(err))

		_, err = svc.SubmitEventOrder(ctx, models.EventOrder{Name: "Mohan", Contact: "8888", Type: "Birthday", Date: "2026-02-14", Items: map[string]int{"Unicorn Bun": 50}})
		assert.True(t, IsValidation(err))

		id, err := svc.SubmitEventOrder(ctx, models.EventOrder{Name: "Mohan", Contact: "8888", Type: "Birthday", Date: "2026-02-14"})
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("feedback defaults to anonymous", func(t *testing.T) {
		_, err := svc.SubmitFeedback(ctx, models.Feedback{Rating: 6, Comment: "Too good"})
		assert.True(t, IsValidation(err))
		_, err = svc.SubmitFeedback(ctx, models.Feedback{Rating: 5})
		assert.True(t, IsValidation(err))

		id, err := svc.SubmitFeedback(ctx, models.Feedback{Rating: 5, Comment: "Velvety!"})
		require.NoError(t, err)
		rec, err := admin.Get(ctx, models.CollectionFeedbacks, id)
		require.NoError(t, err)
		assert.Equal(t, "Anonymous", rec.Data["name"])
	})

	t.Run("visitors cannot read submissions back", func(t *testing.T) {
		_, err := store.Guarded(base, store.Anonymous).List(ctx, models.CollectionFeedbacks, store.Query{})
		assert.ErrorIs(t, err, store.ErrPermissionDenied)
	})
}
