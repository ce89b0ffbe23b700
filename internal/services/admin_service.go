package services

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/logger"
	"github.com/pkg/errors"

	"buntee/internal/models"
	"buntee/internal/store"
)

var ErrUnknownCollection = errors.New("unknown collection")

// submissionCollections are the lists the admin panel shows and exports.
var submissionCollections = map[string]bool{
	models.CollectionPreBookings: true,
	models.CollectionEventOrders: true,
	models.CollectionFeedbacks:   true,
}

// IsSubmissionCollection reports whether name is one of the visitor submission lists.
func IsSubmissionCollection(name string) bool { return submissionCollections[name] }

var latestFirst = store.Query{OrderBy: "timestamp", Desc: true}

// AdminService is the staff view of the store. Every call carries the
// principal so the access rules decide, not the caller.
type AdminService struct {
	store    store.Store
	validate *validator.Validate
}

func NewAdminService(s store.Store) *AdminService {
	return &AdminService{store: s, validate: validator.New()}
}

func (s *AdminService) as(p store.Principal) store.Store {
	return store.Guarded(s.store, p)
}

// Settings returns the general settings; a missing document yields zero settings.
func (s *AdminService) Settings(ctx context.Context, p store.Principal) (models.Settings, error) {
	var st models.Settings
	rec, err := s.as(p).Get(ctx, models.CollectionSettings, models.SettingsGeneralID)
	if errors.Is(err, store.ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	return st, rec.Decode(&st)
}

// SaveSettings replaces the general settings.
func (s *AdminService) SaveSettings(ctx context.Context, p store.Principal, st models.Settings) error {
	st.TeaserText = strings.TrimSpace(st.TeaserText)
	doc, err := store.FromValue(st)
	if err != nil {
		return err
	}
	if err := s.as(p).Set(ctx, models.CollectionSettings, models.SettingsGeneralID, doc); err != nil {
		return err
	}
	logger.Infof("admin: %s saved settings", p.Email)
	return nil
}

func (s *AdminService) menuDoc(it models.MenuItem) (store.Document, error) {
	it.Name = strings.TrimSpace(it.Name)
	if err := s.validate.Var(it.Name, "required,max=80"); err != nil {
		return nil, newValidationError("Menu item needs a name.")
	}
	if err := s.validate.Var(it.Price, "gte=0"); err != nil {
		return nil, newValidationError("Price cannot be negative.")
	}
	return store.FromValue(it)
}

// AddMenuItem creates a menu entry and returns its id.
func (s *AdminService) AddMenuItem(ctx context.Context, p store.Principal, it models.MenuItem) (string, error) {
	doc, err := s.menuDoc(it)
	if err != nil {
		return "", err
	}
	id, err := s.as(p).Add(ctx, models.CollectionMenuItems, doc)
	if err != nil {
		return "", err
	}
	logger.Infof("admin: %s added menu item %s (%s)", p.Email, id, it.Name)
	return id, nil
}

// UpdateMenuItem replaces an existing menu entry.
func (s *AdminService) UpdateMenuItem(ctx context.Context, p store.Principal, id string, it models.MenuItem) error {
	doc, err := s.menuDoc(it)
	if err != nil {
		return err
	}
	g := s.as(p)
	if _, err := g.Get(ctx, models.CollectionMenuItems, id); err != nil {
		return err
	}
	return g.Set(ctx, models.CollectionMenuItems, id, doc)
}

// DeleteMenuItem removes a menu entry.
func (s *AdminService) DeleteMenuItem(ctx context.Context, p store.Principal, id string) error {
	if err := s.as(p).Delete(ctx, models.CollectionMenuItems, id); err != nil {
		return err
	}
	logger.Infof("admin: %s deleted menu item %s", p.Email, id)
	return nil
}

// Menu lists the menu as the admin sees it.
func (s *AdminService) Menu(ctx context.Context, p store.Principal) ([]models.MenuItem, error) {
	recs, err := s.as(p).List(ctx, models.CollectionMenuItems, menuQuery)
	if err != nil {
		return nil, err
	}
	return decodeMenu(recs)
}

// Records lists a submission collection, newest first.
func (s *AdminService) Records(ctx context.Context, p store.Principal, collection string) ([]store.Record, error) {
	if !IsSubmissionCollection(collection) {
		return nil, ErrUnknownCollection
	}
	return s.as(p).List(ctx, collection, latestFirst)
}

// PreBookings lists the pre-bookings, newest first.
func (s *AdminService) PreBookings(ctx context.Context, p store.Principal) ([]models.PreBooking, error) {
	recs, err := s.Records(ctx, p, models.CollectionPreBookings)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.PreBooking](recs)
}

// EventOrders lists the event inquiries, newest first.
func (s *AdminService) EventOrders(ctx context.Context, p store.Principal) ([]models.EventOrder, error) {
	recs, err := s.Records(ctx, p, models.CollectionEventOrders)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.EventOrder](recs)
}

// Feedbacks lists the feedback, newest first.
func (s *AdminService) Feedbacks(ctx context.Context, p store.Principal) ([]models.Feedback, error) {
	recs, err := s.Records(ctx, p, models.CollectionFeedbacks)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Feedback](recs)
}

// Subscribe streams a submission collection, newest first. A permission
// failure arrives as a snapshot error instead of a call error so live views can
// report it without tearing down.
func (s *AdminService) Subscribe(ctx context.Context, p store.Principal, collection string, fn store.Listener) (store.Unsubscribe, error) {
	if !IsSubmissionCollection(collection) {
		return nil, ErrUnknownCollection
	}
	unsub, err := s.as(p).Subscribe(ctx, collection, latestFirst, fn)
	if errors.Is(err, store.ErrPermissionDenied) {
		fn(store.Snapshot{Err: err})
		return func() {}, nil
	}
	return unsub, err
}

func decodeAll[T any](recs []store.Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		var v T
		if err := r.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
