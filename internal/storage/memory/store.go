// Package memory is an in-process record store for local runs and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"trendsensei/internal/domain"
	"trendsensei/internal/report"
)

type Store struct {
	mu       sync.RWMutex
	reviews  []domain.Review // kept sorted by Seq
	byID     map[string]int
	products []domain.Product
	byKey    map[productKey]int
	nextID   int64
}

type productKey struct{ source, id string }

func New() *Store {
	return &Store{byID: map[string]int{}, byKey: map[productKey]int{}}
}

func (s *Store) SelectReviews(_ context.Context, f domain.ReviewFilter, p domain.Page) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.reviews, p, func(r domain.Review) bool { return report.MatchReview(f, r) }), nil
}

func (s *Store) GetReview(_ context.Context, id string) (domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return s.reviews[i], nil
}

func (s *Store) SelectProducts(_ context.Context, f domain.ProductFilter, p domain.Page) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.products, p, func(pr domain.Product) bool { return report.MatchProduct(f, pr) }), nil
}

// window copies the page of matching rows out of rows.
func window[T any](rows []T, p domain.Page, match func(T) bool) []T {
	out := make([]T, 0)
	skip := p.Offset
	for _, r := range rows {
		if !match(r) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, r)
		if p.Limit > 0 && len(out) == p.Limit {
			break
		}
	}
	return out
}

// InsertReviews skips ids already present. Batches may arrive out of order
// from concurrent importers; rows are re-sorted by Seq.
func (s *Store) InsertReviews(_ context.Context, rs []domain.Review) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range rs {
		if _, dup := s.byID[r.ReviewID]; dup {
			continue
		}
		s.byID[r.ReviewID] = -1
		s.reviews = append(s.reviews, r)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	slices.SortStableFunc(s.reviews, func(a, b domain.Review) int { return cmp.Compare(a.Seq, b.Seq) })
	for i, r := range s.reviews {
		s.byID[r.ReviewID] = i
	}
	return n, nil
}

func (s *Store) UpsertProducts(_ context.Context, ps []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range ps {
		k := productKey{id: p.ProductID}
		if p.Source != nil {
			k.source = *p.Source
		}
		if i, ok := s.byKey[k]; ok {
			p.ID = s.products[i].ID
			s.products[i] = p
			continue
		}
		s.nextID++
		p.ID = s.nextID
		s.byKey[k] = len(s.products)
		s.products = append(s.products, p)
	}
	return nil
}

// Len reports the number of stored reviews and products.
func (s *Store) Len() (reviews, products int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reviews), len(s.products)
}
