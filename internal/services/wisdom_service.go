package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/logger"
	"golang.org/x/sync/singleflight"

	"buntee/internal/config"
	"buntee/internal/genai"
)

// TextGenerator produces text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, req genai.Request) (string, error)
}

// WisdomService supplies the home page's "bun wisdom" line. It never fails:
// any generator problem is logged and answered with the fallback text.
type WisdomService struct {
	gen      TextGenerator
	req      genai.Request
	fallback string
	ttl      time.Duration
	backoff  time.Duration
	now      func() time.Time
	calls    singleflight.Group

	mu      sync.Mutex
	cached  string
	expires time.Time
}

func NewWisdomService(gen TextGenerator, cfg config.GenAI) *WisdomService {
	return &WisdomService{
		gen:      gen,
		req:      genai.Request{Model: cfg.Model, Prompt: cfg.Prompt, SystemInstruction: cfg.SystemInstruction},
		fallback: cfg.Fallback,
		ttl:      cfg.CacheTTL,
		backoff:  cfg.FailureBackoff,
		now:      time.Now,
	}
}

// Wisdom returns the cached line, asking the generator when the cache is stale.
// Concurrent callers share one generator call. A failure is answered with the
// fallback, which is then served for the backoff period.
func (s *WisdomService) Wisdom(ctx context.Context) string {
	if s.gen == nil {
		return s.fallback
	}
	if text, ok := s.fresh(); ok {
		return text
	}
	v, _, _ := s.calls.Do("wisdom", func() (interface{}, error) {
		if text, ok := s.fresh(); ok {
			return text, nil
		}
		// shared by every waiting caller, so one of them leaving must not cancel it
		return s.generate(context.WithoutCancel(ctx)), nil
	})
	return v.(string)
}

func (s *WisdomService) fresh() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != "" && s.now().Before(s.expires) {
		return s.cached, true
	}
	return "", false
}

func (s *WisdomService) generate(ctx context.Context) string {
	text, err := s.gen.Generate(ctx, s.req)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		if err != nil {
			logger.Warningf("wisdom: falling back: %v", err)
		}
		s.store(s.fallback, s.backoff)
		return s.fallback
	}
	s.store(text, s.ttl)
	return text
}

func (s *WisdomService) store(text string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.cached = text
	s.expires = s.now().Add(ttl)
	s.mu.Unlock()
}
