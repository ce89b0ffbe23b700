package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"buntee/internal/models"
)

var (
	ErrSessionNotFound = errors.New("scratch session not found or expired")
	ErrTooManySessions = errors.New("too many scratch cards in play, try again in a few minutes")
)

const defaultMaxSessions = 500

// promoSession guards one state; requests for the same card are serialised.
type promoSession struct {
	mu    sync.Mutex
	state PromoState
}

// PromoView is what a visitor may see about their session. Prize stays empty
// until the card is revealed.
type PromoView struct {
	ID        string  `json:"id"`
	Stage     string  `json:"stage"`
	Size      int     `json:"size"`
	Radius    float64 `json:"radius"`
	Threshold float64 `json:"threshold"`
	Percent   float64 `json:"percent"`
	Revealed  bool    `json:"revealed"`
	Prize     string  `json:"prize,omitempty"`
	FollowURL string  `json:"followUrl,omitempty"`
}

// PromoOptions configures session housekeeping and the share caption.
type PromoOptions struct {
	SessionTTL  time.Duration // idle time before a card is dropped
	IdleTTL     time.Duration // same, for cards nobody has scratched yet; 0 means SessionTTL
	MaxSessions int           // live cards kept at once; 0 means 500
	FollowURL   string
	BrandTag    string
}

// PromoService manages scratch sessions for every visitor.
type PromoService struct {
	mu          sync.RWMutex
	sessions    map[string]*promoSession // Key: session id
	machine     *PromoMachine
	ttl         time.Duration
	idleTTL     time.Duration
	maxSessions int
	followURL   string
	brandTag    string
	shareTitle  string
}

// NewPromoService creates and initializes a new PromoService.
func NewPromoService(machine *PromoMachine, opts PromoOptions) *PromoService {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	idleTTL := opts.IdleTTL
	if idleTTL <= 0 || idleTTL > ttl {
		idleTTL = ttl
	}
	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	return &PromoService{
		sessions:    make(map[string]*promoSession),
		machine:     machine,
		ttl:         ttl,
		idleTTL:     idleTTL,
		maxSessions: maxSessions,
		followURL:   opts.FollowURL,
		brandTag:    opts.BrandTag,
		shareTitle:  "I WON AT BUNTEE!",
	}
}

// Unlock runs the gate. A rejected handle creates no session. When the
// session limit is reached, expired sessions are swept first; if none can go,
// the unlock is refused before any prize is drawn.
func (s *PromoService) Unlock(handle string, size int) (PromoView, error) {
	if !s.hasRoom() {
		return PromoView{}, ErrTooManySessions
	}

	now := s.machine.now()
	state := PromoState{ID: uuid.NewString(), Stage: StageGated, CreatedAt: now, LastActivity: now}

	next, err := s.machine.Transition(state, Unlock{Handle: handle, Size: size})
	if err != nil {
		return PromoView{}, err
	}

	s.mu.Lock()
	if len(s.sessions) >= s.maxSessions {
		s.mu.Unlock()
		return PromoView{}, ErrTooManySessions
	}
	s.sessions[next.ID] = &promoSession{state: next}
	s.mu.Unlock()

	logger.Infof("promo: session %s unlocked by @%s (size %d)", next.ID, next.Handle, next.Surface.Size())
	view := s.view(next)
	view.FollowURL = s.followURL
	return view, nil
}

func (s *PromoService) hasRoom() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) < s.maxSessions {
		return true
	}
	if n := s.cleanUpLocked(s.machine.now()); n > 0 {
		logger.Infof("promo: session limit reached, removed %d inactive sessions", n)
	}
	if len(s.sessions) < s.maxSessions {
		return true
	}
	logger.Warningf("promo: session limit of %d reached, refusing unlock", s.maxSessions)
	return false
}

func (s *PromoService) session(id string) (*promoSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Scratch applies pointer samples in order; the reveal check runs after each one.
func (s *PromoService) Scratch(id string, strokes []Stroke) (PromoView, error) {
	sess, err := s.session(id)
	if err != nil {
		return PromoView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	wasRevealed := sess.state.Revealed()
	for _, st := range strokes {
		next, err := s.machine.Transition(sess.state, st)
		if err != nil {
			return s.view(sess.state), err
		}
		sess.state = next
	}
	if !wasRevealed && sess.state.Revealed() {
		logger.Infof("promo: session %s revealed %q at %.1f%%", id, sess.state.Prize, sess.state.Surface.Percent())
	}
	return s.view(sess.state), nil
}

// View returns the current state of a session.
func (s *PromoService) View(id string) (PromoView, error) {
	sess, err := s.session(id)
	if err != nil {
		return PromoView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.view(sess.state), nil
}

// Overlay writes the session's scratch overlay as PNG.
func (s *PromoService) Overlay(id string, w io.Writer) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.Surface.PNG(w)
}

// Share builds the story caption. Only revealed cards can be shared.
func (s *PromoService) Share(id string) (title, text string, err error) {
	sess, err := s.session(id)
	if err != nil {
		return "", "", err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.state.Revealed() {
		return "", "", ErrNotRevealed
	}
	return s.shareTitle, ShareText(sess.state.Prize, s.brandTag), nil
}

// ShareText is the caption a winner posts to claim the prize.
func ShareText(prize models.Prize, brandTag string) string {
	return fmt.Sprintf("OMG! I just won a %q at %s! 🍞✨ Claim yours by following them! #Buntee #BunMaska", string(prize), brandTag)
}

func (s *PromoService) view(st PromoState) PromoView {
	v := PromoView{ID: st.ID, Stage: st.Stage.String(), Revealed: st.Revealed()}
	if st.Surface != nil {
		v.Size = st.Surface.Size()
		v.Radius = st.Surface.Radius()
		v.Threshold = st.Surface.Threshold()
		v.Percent = st.Surface.Percent()
	}
	if v.Revealed {
		v.Prize = string(st.Prize)
	}
	return v
}

// Count returns the number of live sessions.
func (s *PromoService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CleanUpInactiveSessions removes sessions that have been idle longer than
// the TTL, or longer than the idle TTL when nothing has been scratched yet.
func (s *PromoService) CleanUpInactiveSessions() int {
	now := s.machine.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanUpLocked(now)
}

func (s *PromoService) cleanUpLocked(now time.Time) int {
	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.state.LastActivity)
		untouched := sess.state.Surface == nil || sess.state.Surface.Cleared() == 0
		sess.mu.Unlock()

		limit := s.ttl
		if untouched {
			limit = s.idleTTL
		}
		if idle > limit {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// ClearSession removes a session, e.g. when the widget is remounted.
func (s *PromoService) ClearSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	logger.Infof("promo: cleared session %s", id)
}

// RunJanitor cleans up idle sessions every interval until ctx ends.
func (s *PromoService) RunJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 10 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.CleanUpInactiveSessions(); n > 0 {
				logger.Infof("promo: removed %d inactive sessions", n)
			}
		}
	}
}
