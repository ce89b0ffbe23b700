package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"buntee/internal/config"
	"buntee/internal/genai"
)

type stubGenerator struct {
	text  string
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, req genai.Request) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	return g.text, g.err
}

func (g *stubGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestWisdomService(t *testing.T) {
	cfg := config.GenAI{
		Model:          "m",
		Prompt:         "p",
		Fallback:       "The perfect bun is a warm hug for the soul.",
		CacheTTL:       time.Hour,
		FailureBackoff: time.Minute,
	}
	ctx := context.Background()

	t.Run("failures serve the fallback for the backoff period", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		gen := &stubGenerator{err: errors.New("quota exceeded")}
		svc := NewWisdomService(gen, cfg)
		svc.now = func() time.Time { return now }

		assert.Equal(t, cfg.Fallback, svc.Wisdom(ctx))
		assert.Equal(t, cfg.Fallback, svc.Wisdom(ctx))
		assert.Equal(t, 1, gen.Calls())

		now = now.Add(2 * time.Minute)
		gen.err = nil
		gen.text = "Soulful warmth, velvety maska."
		assert.Equal(t, "Soulful warmth, velvety maska.", svc.Wisdom(ctx))
		assert.Equal(t, 2, gen.Calls())
	})

	t.Run("without a backoff every failure retries", func(t *testing.T) {
		noBackoff := cfg
		noBackoff.FailureBackoff = 0
		gen := &stubGenerator{err: errors.New("quota exceeded")}
		svc := NewWisdomService(gen, noBackoff)
		svc.Wisdom(ctx)
		svc.Wisdom(ctx)
		assert.Equal(t, 2, gen.Calls())
	})

	t.Run("blank answers fall back", func(t *testing.T) {
		svc := NewWisdomService(&stubGenerator{text: "  \n"}, cfg)
		assert.Equal(t, cfg.Fallback, svc.Wisdom(ctx))
	})

	t.Run("answers are trimmed and cached", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		gen := &stubGenerator{text: " Velvety warmth in every soulful bite. "}
		svc := NewWisdomService(gen, cfg)
		svc.now = func() time.Time { return now }

		assert.Equal(t, "Velvety warmth in every soulful bite.", svc.Wisdom(ctx))
		assert.Equal(t, "Velvety warmth in every soulful bite.", svc.Wisdom(ctx))
		assert.Equal(t, 1, gen.Calls())

		now = now.Add(2 * time.Hour)
		svc.Wisdom(ctx)
		assert.Equal(t, 2, gen.Calls())
	})

	t.Run("concurrent callers share one slow call", func(t *testing.T) {
		gen := &stubGenerator{err: errors.New("deadline exceeded"), delay: 200 * time.Millisecond}
		svc := NewWisdomService(gen, cfg)

		const callers = 10
		var wg sync.WaitGroup
		start := time.Now()
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.Equal(t, cfg.Fallback, svc.Wisdom(ctx))
			}()
		}
		wg.Wait()

		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, 1, gen.Calls())
	})

	t.Run("no generator", func(t *testing.T) {
		assert.Equal(t, cfg.Fallback, NewWisdomService(nil, cfg).Wisdom(ctx))
	})
}
