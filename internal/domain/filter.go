package domain

import "strings"

// AllCategories is the catch-all category value sent by dashboards; it
// means "no category filter".
const AllCategories = "All Categories"

// DefaultTrendingThreshold is the engagement count a record must exceed to
// be considered trending when no threshold is configured.
const DefaultTrendingThreshold = 1000

// ReviewFilter enumerates every recognised review criterion. Nil fields are
// not applied.
type ReviewFilter struct {
	Category     *string
	Sentiment    *string
	MinRating    *int
	Verified     *bool
	Year         *int
	Month        *int
	Query        *string // substring of title, headline or body
	TrendingOnly bool
	ProductID    *string

	// TrendingThreshold applies when TrendingOnly is set; helpful votes must
	// be strictly greater.
	TrendingThreshold int
}

// ProductFilter enumerates every recognised product criterion.
type ProductFilter struct {
	Category     *string
	MinPrice     *float64
	MaxPrice     *float64
	MinRating    *float64
	Query        *string // substring of title or brand
	Source       *string
	TrendingOnly bool

	TrendingThreshold int
}

// Normalize trims string criteria, drops empty ones and the catch-all
// category, and fills in the default trending threshold.
func (f ReviewFilter) Normalize() ReviewFilter {
	f.Category = normCategory(f.Category)
	f.Sentiment = normStr(f.Sentiment)
	f.Query = normStr(f.Query)
	f.ProductID = normStr(f.ProductID)
	if f.TrendingThreshold <= 0 {
		f.TrendingThreshold = DefaultTrendingThreshold
	}
	return f
}

func (f ProductFilter) Normalize() ProductFilter {
	f.Category = normCategory(f.Category)
	f.Query = normStr(f.Query)
	f.Source = normStr(f.Source)
	if f.TrendingThreshold <= 0 {
		f.TrendingThreshold = DefaultTrendingThreshold
	}
	return f
}

// Validate reports contradictory bounds.
func (f ProductFilter) Validate() error {
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return ErrInvalidFilter
	}
	return nil
}

func normStr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

func normCategory(p *string) *string {
	p = normStr(p)
	if p != nil && strings.EqualFold(*p, AllCategories) {
		return nil
	}
	return p
}
