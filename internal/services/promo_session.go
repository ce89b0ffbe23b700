package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"buntee/internal/models"
	"buntee/internal/scratch"
)

// PromoStage is the position of a scratch session in the gate flow.
type PromoStage int

const (
	StageGated PromoStage = iota
	StageFollowed
	StageScratching
	StageRevealed
)

func (s PromoStage) String() string {
	switch s {
	case StageGated:
		return "gated"
	case StageFollowed:
		return "followed"
	case StageScratching:
		return "scratching"
	case StageRevealed:
		return "revealed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

var (
	ErrAlreadyUnlocked = errors.New("scratch card is already unlocked")
	ErrNotScratching   = errors.New("scratch card is still locked")
	ErrNotRevealed     = errors.New("scratch card is not revealed yet")
	ErrUnknownEvent    = errors.New("unknown promo event")
)

// PromoState is everything one scratch session knows. The Surface is owned by
// the state and only mutated through Transition.
type PromoState struct {
	ID           string
	Stage        PromoStage
	Handle       string
	Prize        models.Prize
	Surface      *scratch.Surface
	CreatedAt    time.Time
	LastActivity time.Time
}

// Revealed reports whether the prize may be shown.
func (s PromoState) Revealed() bool { return s.Stage == StageRevealed }

// PromoEvent is one input to the session state machine.
type PromoEvent interface{ promoEvent() }

// SetHandle records what the visitor typed into the handle field.
type SetHandle struct{ Handle string }

// Unlock is the "Follow & Unlock" action. Size is the rendered container width;
// zero means unknown. A non-empty Handle replaces the recorded one.
type Unlock struct {
	Handle string
	Size   int
}

// StrokePhase distinguishes press, drag and release samples.
type StrokePhase string

const (
	StrokeBegin StrokePhase = "begin"
	StrokeMove  StrokePhase = "move"
	StrokeEnd   StrokePhase = "end"
)

// Stroke is one pointer sample in canvas-local coordinates. Mouse and touch
// input produce the same samples.
type Stroke struct {
	Phase StrokePhase `json:"phase" binding:"required,oneof=begin move end"`
	X     float64     `json:"x"`
	Y     float64     `json:"y"`
}

func (SetHandle) promoEvent() {}
func (Unlock) promoEvent()    {}
func (Stroke) promoEvent()    {}

// PromoMachine holds what the transitions need besides the state itself.
type PromoMachine struct {
	Selector     PrizeSelector
	Surface      scratch.Options
	DefaultSize  int
	MaxSize      int
	HandleMinLen int
	Now          func() time.Time
}

var handleValidate = validator.New()

// NormalizeHandle trims whitespace and a leading '@'. Any other text is
// accepted; the handle is never checked against Instagram.
func NormalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}

func (m *PromoMachine) validateHandle(handle string) error {
	minLen := m.HandleMinLen
	if minLen < 1 {
		minLen = 1
	}
	if err := handleValidate.Var(handle, fmt.Sprintf("required,min=%d", minLen)); err != nil {
		return newValidationError("Enter handle!")
	}
	return nil
}

func (m *PromoMachine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Transition applies ev to state and returns the new state. On error the
// returned state equals the input.
func (m *PromoMachine) Transition(state PromoState, ev PromoEvent) (PromoState, error) {
	switch e := ev.(type) {
	case SetHandle:
		if state.Stage != StageGated {
			return state, ErrAlreadyUnlocked
		}
		next := state
		next.Handle = NormalizeHandle(e.Handle)
		next.LastActivity = m.now()
		return next, nil

	case Unlock:
		if state.Stage != StageGated {
			return state, ErrAlreadyUnlocked
		}
		handle := state.Handle
		if e.Handle != "" {
			handle = NormalizeHandle(e.Handle)
		}
		if err := m.validateHandle(handle); err != nil {
			return state, err
		}
		followed := state
		followed.Handle = handle
		followed.Stage = StageFollowed
		return m.mount(followed, e.Size)

	case Stroke:
		return m.stroke(state, e)
	}
	return state, ErrUnknownEvent
}

// mount creates the surface and draws the prize. It is the only place the
// selector runs, and it runs once per session.
func (m *PromoMachine) mount(state PromoState, size int) (PromoState, error) {
	if size <= 0 {
		size = m.DefaultSize
	}
	if m.MaxSize > 0 && size > m.MaxSize {
		size = m.MaxSize
	}
	surface, err := scratch.NewSurface(size, m.Surface)
	if err != nil {
		return state, err
	}
	next := state
	next.Surface = surface
	next.Prize = m.Selector.Select()
	next.Stage = StageScratching
	next.LastActivity = m.now()
	return next, nil
}

func (m *PromoMachine) stroke(state PromoState, s Stroke) (PromoState, error) {
	switch state.Stage {
	case StageRevealed:
		return state, nil
	case StageScratching:
	default:
		return state, ErrNotScratching
	}

	next := state
	next.LastActivity = m.now()
	var revealed bool
	switch s.Phase {
	case StrokeBegin:
		revealed = next.Surface.Begin(s.X, s.Y)
	case StrokeMove:
		revealed = next.Surface.Move(s.X, s.Y)
	case StrokeEnd:
		next.Surface.End()
		revealed = next.Surface.Revealed()
	default:
		return state, newValidationError("unknown stroke phase")
	}
	if revealed {
		next.Stage = StageRevealed
	}
	return next, nil
}
