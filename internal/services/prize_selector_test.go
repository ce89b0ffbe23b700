package services

import (
	"math"
	"testing"

	"buntee/internal/models"
)

// fixedSource replays draws in order and repeats the last one.
type fixedSource struct {
	draws []float64
	i     int
}

func (s *fixedSource) Float64() float64 {
	v := s.draws[s.i]
	if s.i < len(s.draws)-1 {
		s.i++
	}
	return v
}

func TestUniformSelector(t *testing.T) {
	t.Run("Test empty catalog is rejected", func(t *testing.T) {
		if _, err := NewUniformSelector(nil, NewRandomSource()); err != ErrEmptyCatalog {
			t.Fatalf("Expected ErrEmptyCatalog, but got %v", err)
		}
		if _, err := NewSelector(nil, nil); err != ErrEmptyCatalog {
			t.Fatalf("Expected ErrEmptyCatalog from NewSelector, but got %v", err)
		}
	})

	t.Run("Test blank label is rejected", func(t *testing.T) {
		if _, err := NewUniformSelector([]string{"A", " "}, NewRandomSource()); err == nil {
			t.Fatal("Expected an error for a blank label, but got nil")
		}
	})

	t.Run("Test draw bounds map to first and last entry", func(t *testing.T) {
		sel, err := NewUniformSelector([]string{"A", "B"}, &fixedSource{draws: []float64{0, 1, 0.49, 0.5}})
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		for i, want := range []models.Prize{"A", "B", "A", "B"} {
			if got := sel.Select(); got != want {
				t.Errorf("Draw %d: expected %q, but got %q", i, want, got)
			}
		}
	})

	t.Run("Test every result is in the catalog", func(t *testing.T) {
		catalog := models.DefaultCatalog()
		sel, err := NewSelector(catalog, nil)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		valid := map[models.Prize]bool{}
		for _, e := range catalog {
			valid[models.Prize(e.Label)] = true
		}
		seen := map[models.Prize]int{}
		for i := 0; i < 6000; i++ {
			p := sel.Select()
			if !valid[p] {
				t.Fatalf("Selected %q which is not in the catalog", p)
			}
			seen[p]++
		}
		if len(seen) != len(catalog) {
			t.Errorf("Expected all %d offers to come up in 6000 draws, saw %d", len(catalog), len(seen))
		}
	})
}

func TestWeightedSelector(t *testing.T) {
	t.Run("Test non-positive weight is rejected", func(t *testing.T) {
		_, err := NewWeightedSelector([]models.CatalogEntry{{Label: "A", Weight: 1}, {Label: "B", Weight: -2}}, NewRandomSource())
		if err == nil {
			t.Fatal("Expected an error for a negative weight, but got nil")
		}
	})

	t.Run("Test ticket boundaries", func(t *testing.T) {
		entries := []models.CatalogEntry{{Label: "A", Weight: 1}, {Label: "B", Weight: 3}}
		sel, err := NewWeightedSelector(entries, &fixedSource{draws: []float64{0, 0.24, 0.25, 1}})
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		for i, want := range []models.Prize{"A", "A", "B", "B"} {
			if got := sel.Select(); got != want {
				t.Errorf("Draw %d: expected %q, but got %q", i, want, got)
			}
		}
	})

	t.Run("Test frequencies follow weights", func(t *testing.T) {
		entries := []models.CatalogEntry{
			{Label: "Free Classic Bun", Weight: 1},
			{Label: "Extra Maska", Weight: 3},
			{Label: "25% Off", Weight: 6},
		}
		sel, err := NewSelector(entries, nil)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		const draws = 20000
		counts := map[models.Prize]int{}
		for i := 0; i < draws; i++ {
			counts[sel.Select()]++
		}
		for _, e := range entries {
			want := float64(e.Weight) / 10
			got := float64(counts[models.Prize(e.Label)]) / draws
			if math.Abs(got-want) > 0.02 {
				t.Errorf("%q: expected frequency near %.2f, but got %.3f", e.Label, want, got)
			}
		}
	})

	t.Run("Test mixed catalog counts missing weights as one", func(t *testing.T) {
		sel, err := NewSelector([]models.CatalogEntry{{Label: "A"}, {Label: "B", Weight: 1}}, &fixedSource{draws: []float64{0.4, 0.6}})
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if got := sel.Select(); got != "A" {
			t.Errorf("Expected A, but got %q", got)
		}
		if got := sel.Select(); got != "B" {
			t.Errorf("Expected B, but got %q", got)
		}
	})
}
