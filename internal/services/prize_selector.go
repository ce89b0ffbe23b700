package services

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"buntee/internal/models"
)

var ErrEmptyCatalog = errors.New("prize catalog is empty")

// RandomSource yields uniformly distributed numbers in [0, 1].
type RandomSource interface {
	Float64() float64
}

// lockedSource makes a math/rand generator safe for concurrent draws.
type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSource returns a goroutine-safe source seeded from the clock.
func NewRandomSource() RandomSource {
	return &lockedSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// PrizeSelector picks one label from a catalog.
type PrizeSelector interface {
	Select() models.Prize
}

// pick maps a draw in [0, 1] onto [0, n). A draw of exactly 1 lands on the last slot.
func pick(src RandomSource, n int) int {
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// UniformSelector gives every label the same chance.
type UniformSelector struct {
	labels []models.Prize
	src    RandomSource
}

// NewUniformSelector fails when labels is empty or has a blank entry.
func NewUniformSelector(labels []string, src RandomSource) (*UniformSelector, error) {
	if len(labels) == 0 {
		return nil, ErrEmptyCatalog
	}
	prizes := make([]models.Prize, 0, len(labels))
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			return nil, errors.New("prize catalog has a blank label")
		}
		prizes = append(prizes, models.Prize(l))
	}
	return &UniformSelector{labels: prizes, src: src}, nil
}

func (s *UniformSelector) Select() models.Prize {
	return s.labels[pick(s.src, len(s.labels))]
}

// WeightedSelector picks label i with probability weight_i / sum(weights). It walks
// the cumulative weights instead of expanding a pool, so large weights cost nothing.
type WeightedSelector struct {
	labels     []models.Prize
	cumulative []int
	total      int
	src        RandomSource
}

// NewWeightedSelector fails on an empty catalog, blank labels or non-positive weights.
func NewWeightedSelector(entries []models.CatalogEntry, src RandomSource) (*WeightedSelector, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}
	s := &WeightedSelector{src: src}
	for _, e := range entries {
		if strings.TrimSpace(e.Label) == "" {
			return nil, errors.New("prize catalog has a blank label")
		}
		if e.Weight <= 0 {
			return nil, fmt.Errorf("prize %q has non-positive weight %d", e.Label, e.Weight)
		}
		s.total += e.Weight
		s.labels = append(s.labels, models.Prize(e.Label))
		s.cumulative = append(s.cumulative, s.total)
	}
	return s, nil
}

func (s *WeightedSelector) Select() models.Prize {
	ticket := pick(s.src, s.total)
	i := sort.Search(len(s.cumulative), func(i int) bool { return s.cumulative[i] > ticket })
	return s.labels[i]
}

// NewSelector builds the selector a catalog asks for: uniform when no entry
// carries a weight, weighted otherwise (missing weights count as 1).
func NewSelector(catalog []models.CatalogEntry, src RandomSource) (PrizeSelector, error) {
	if src == nil {
		src = NewRandomSource()
	}
	weighted := false
	for _, e := range catalog {
		if e.Weight != 0 {
			weighted = true
			break
		}
	}
	if !weighted {
		labels := make([]string, 0, len(catalog))
		for _, e := range catalog {
			labels = append(labels, e.Label)
		}
		return NewUniformSelector(labels, src)
	}
	entries := make([]models.CatalogEntry, len(catalog))
	copy(entries, catalog)
	for i := range entries {
		if entries[i].Weight == 0 {
			entries[i].Weight = 1
		}
	}
	return NewWeightedSelector(entries, src)
}
