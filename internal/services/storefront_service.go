package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/logger"
	"github.com/pkg/errors"

	"buntee/internal/models"
	"buntee/internal/store"
)

const anonymousName = "Anonymous"

// Cart maps menu item names to quantities. It only lives in the visitor's form.
type Cart map[string]int

// Update adds delta to name, clamping at zero. Items at zero are dropped.
func (c Cart) Update(name string, delta int) {
	n := c[name] + delta
	if n <= 0 {
		delete(c, name)
		return
	}
	c[name] = n
}

// Empty reports whether nothing is selected.
func (c Cart) Empty() bool {
	for _, q := range c {
		if q > 0 {
			return false
		}
	}
	return true
}

// Valid reports whether every quantity is at least one.
func (c Cart) Valid() bool {
	for _, q := range c {
		if q <= 0 {
			return false
		}
	}
	return true
}

// StorefrontService is what public visitors can do: read the menu and teaser,
// and submit pre-bookings, event inquiries and feedback.
type StorefrontService struct {
	store    store.Store
	validate *validator.Validate
}

// NewStorefrontService wraps s with the public visitor's permissions.
func NewStorefrontService(s store.Store) *StorefrontService {
	return &StorefrontService{
		store:    store.Guarded(s, store.Anonymous),
		validate: validator.New(),
	}
}

var menuQuery = store.Query{OrderBy: "name"}

// Menu returns the menu ordered by name.
func (s *StorefrontService) Menu(ctx context.Context) ([]models.MenuItem, error) {
	recs, err := s.store.List(ctx, models.CollectionMenuItems, menuQuery)
	if err != nil {
		return nil, err
	}
	return decodeMenu(recs)
}

// SubscribeMenu calls fn with the full menu now and after every change.
func (s *StorefrontService) SubscribeMenu(ctx context.Context, fn func([]models.MenuItem, error)) (store.Unsubscribe, error) {
	return s.store.Subscribe(ctx, models.CollectionMenuItems, menuQuery, func(snap store.Snapshot) {
		if snap.Err != nil {
			fn(nil, snap.Err)
			return
		}
		fn(decodeMenu(snap.Records))
	})
}

func decodeMenu(recs []store.Record) ([]models.MenuItem, error) {
	items := make([]models.MenuItem, 0, len(recs))
	for _, r := range recs {
		var it models.MenuItem
		if err := r.Decode(&it); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// Teaser returns the admin-set teaser line, or "" when none was saved.
func (s *StorefrontService) Teaser(ctx context.Context) (string, error) {
	rec, err := s.store.Get(ctx, models.CollectionSettings, models.SettingsGeneralID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var st models.Settings
	if err := rec.Decode(&st); err != nil {
		return "", err
	}
	return st.TeaserText, nil
}

// PreBook stores an express order. The cart must hold at least one item.
func (s *StorefrontService) PreBook(ctx context.Context, b models.PreBooking) (string, error) {
	b.Name = strings.TrimSpace(b.Name)
	b.Contact = strings.TrimSpace(b.Contact)
	if Cart(b.Items).Empty() {
		return "", newValidationError("Please select at least one item from the menu!")
	}
	if err := s.checkCart(ctx, b.Items); err != nil {
		return "", err
	}
	if err := s.validate.Struct(b); err != nil {
		return "", newValidationError("Name and contact are required.")
	}
	return s.add(ctx, models.CollectionPreBookings, b)
}

// checkCart rejects quantities below one and items that are not on the menu.
func (s *StorefrontService) checkCart(ctx context.Context, items Cart) error {
	if !items.Valid() {
		return newValidationError("Quantities must be at least 1.")
	}
	menu, err := s.Menu(ctx)
	if err != nil {
		return err
	}
	onMenu := make(map[string]bool, len(menu))
	for _, it := range menu {
		onMenu[it.Name] = true
	}
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !onMenu[name] {
			return newValidationError(fmt.Sprintf("%q is not on the menu.", name))
		}
	}
	return nil
}

// SubmitEventOrder stores a catering inquiry.
func (s *StorefrontService) SubmitEventOrder(ctx context.Context, o models.EventOrder) (string, error) {
	o.Name = strings.TrimSpace(o.Name)
	o.Contact = strings.TrimSpace(o.Contact)
	if err := s.validate.Struct(o); err != nil {
		return "", newValidationError("Name, contact, event date and event type are required.")
	}
	if Cart(o.Items).Empty() {
		o.Items = nil
	} else if err := s.checkCart(ctx, o.Items); err != nil {
		return "", err
	}
	return s.add(ctx, models.CollectionEventOrders, o)
}

// SubmitFeedback stores a rating. A blank name is recorded as "Anonymous".
func (s *StorefrontService) SubmitFeedback(ctx context.Context, f models.Feedback) (string, error) {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		f.Name = anonymousName
	}
	f.Comment = strings.TrimSpace(f.Comment)
	if err := s.validate.Struct(f); err != nil {
		return "", newValidationError("Please pick a rating from 1 to 5 and leave a comment.")
	}
	return s.add(ctx, models.CollectionFeedbacks, f)
}

func (s *StorefrontService) add(ctx context.Context, collection string, v any) (string, error) {
	doc, err := store.FromValue(v)
	if err != nil {
		return "", err
	}
	doc["timestamp"] = store.ServerTimestamp
	id, err := s.store.Add(ctx, collection, doc)
	if err != nil {
		logger.Errorf("storefront: add to %s failed: %v", collection, err)
		return "", err
	}
	logger.Infof("storefront: new %s %s", collection, id)
	return id, nil
}
