package report

import (
	"strings"

	"trendsensei/internal/domain"
)

// MatchReview applies every set criterion of f (AND-combined). f is expected
// to be normalized.
func MatchReview(f domain.ReviewFilter, r domain.Review) bool {
	if f.Category != nil && !strings.EqualFold(strings.TrimSpace(r.ProductCategory), *f.Category) {
		return false
	}
	if f.Sentiment != nil && (r.Sentiment == nil || !strings.EqualFold(strings.TrimSpace(*r.Sentiment), *f.Sentiment)) {
		return false
	}
	if f.ProductID != nil && r.ProductID != *f.ProductID {
		return false
	}
	if f.MinRating != nil {
		v, ok := LeadingInt(r.StarRating)
		if !ok || v < *f.MinRating {
			return false
		}
	}
	if f.Verified != nil && IsVerified(r.Verified) != *f.Verified {
		return false
	}
	if f.Year != nil {
		y, ok := LeadingInt(r.ReviewYear)
		if !ok || y != *f.Year {
			return false
		}
	}
	if f.Month != nil {
		m, ok := Month(r.ReviewMonth)
		if !ok || m != *f.Month {
			return false
		}
	}
	if f.TrendingOnly {
		v, ok := LeadingInt(r.HelpfulVotes)
		if !ok || v <= f.TrendingThreshold {
			return false
		}
	}
	if f.Query != nil && !containsAny(*f.Query, r.ProductTitle, r.Headline, r.Body) {
		return false
	}
	return true
}

func MatchProduct(f domain.ProductFilter, p domain.Product) bool {
	if f.Category != nil && (p.Category == nil || !strings.EqualFold(strings.TrimSpace(*p.Category), *f.Category)) {
		return false
	}
	if f.Source != nil && (p.Source == nil || !strings.EqualFold(strings.TrimSpace(*p.Source), *f.Source)) {
		return false
	}
	if f.MinPrice != nil && (p.Price == nil || *p.Price < *f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && (p.Price == nil || *p.Price > *f.MaxPrice) {
		return false
	}
	if f.MinRating != nil && (p.Rating == nil || *p.Rating < *f.MinRating) {
		return false
	}
	if f.TrendingOnly && (p.Reviews == nil || *p.Reviews <= f.TrendingThreshold) {
		return false
	}
	if f.Query != nil && !containsAny(*f.Query, p.Title, deref(p.Brand)) {
		return false
	}
	return true
}

// FilterReviews returns the matching rows in input order.
func FilterReviews(rs []domain.Review, f domain.ReviewFilter) []domain.Review {
	out := make([]domain.Review, 0, len(rs))
	for _, r := range rs {
		if MatchReview(f, r) {
			out = append(out, r)
		}
	}
	return out
}

func FilterProducts(ps []domain.Product, f domain.ProductFilter) []domain.Product {
	out := make([]domain.Product, 0, len(ps))
	for _, p := range ps {
		if MatchProduct(f, p) {
			out = append(out, p)
		}
	}
	return out
}

func containsAny(q string, fields ...string) bool {
	q = strings.ToLower(q)
	for _, s := range fields {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
