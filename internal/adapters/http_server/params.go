package httpserver

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"trendsensei/internal/domain"
	"trendsensei/internal/report"
)

// Query keys recognised at the boundary. Anything else is rejected rather
// than silently ignored.
var (
	reviewKeys  = []string{"category", "sentiment", "min_rating", "verified", "year", "month", "q", "trending", "product_id"}
	productKeys = []string{"category", "min_price", "max_price", "min_rating", "q", "trending", "source"}
	pageKeys    = []string{"limit", "offset"}
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidFilter, fmt.Sprintf(format, args...))
}

// checkKeys rejects query keys outside allowed.
func checkKeys(q url.Values, allowed ...[]string) error {
	ok := map[string]bool{}
	for _, set := range allowed {
		for _, k := range set {
			ok[k] = true
		}
	}
	var unknown []string
	for k := range q {
		if !ok[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return invalid("unknown parameter %s", strings.Join(unknown, ", "))
	}
	return nil
}

func optString(q url.Values, key string) *string {
	if !q.Has(key) {
		return nil
	}
	s := q.Get(key)
	return &s
}

func optInt(q url.Values, key string) (*int, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, invalid("%s must be an integer", key)
	}
	return &n, nil
}

func optFloat(q url.Values, key string) (*float64, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, invalid("%s must be a number", key)
	}
	return &f, nil
}

func optBool(q url.Values, key string) (*bool, error) {
	s := strings.ToLower(strings.TrimSpace(q.Get(key)))
	switch s {
	case "":
		return nil, nil
	case "true", "1", "yes", "y":
		b := true
		return &b, nil
	case "false", "0", "no", "n":
		b := false
		return &b, nil
	}
	return nil, invalid("%s must be a boolean", key)
}

func reviewFilter(q url.Values) (domain.ReviewFilter, error) {
	f := domain.ReviewFilter{
		Category:  optString(q, "category"),
		Sentiment: optString(q, "sentiment"),
		Query:     optString(q, "q"),
		ProductID: optString(q, "product_id"),
	}
	var err error
	if f.MinRating, err = optInt(q, "min_rating"); err != nil {
		return f, err
	}
	if f.Year, err = optInt(q, "year"); err != nil {
		return f, err
	}
	if f.Verified, err = optBool(q, "verified"); err != nil {
		return f, err
	}
	if m := optString(q, "month"); m != nil && strings.TrimSpace(*m) != "" {
		n, ok := report.Month(m)
		if !ok {
			return f, invalid("month must be 1-12 or a month name")
		}
		f.Month = &n
	}
	trending, err := optBool(q, "trending")
	if err != nil {
		return f, err
	}
	f.TrendingOnly = trending != nil && *trending
	return f, nil
}

func productFilter(q url.Values) (domain.ProductFilter, error) {
	f := domain.ProductFilter{
		Category: optString(q, "category"),
		Query:    optString(q, "q"),
		Source:   optString(q, "source"),
	}
	var err error
	if f.MinPrice, err = optFloat(q, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = optFloat(q, "max_price"); err != nil {
		return f, err
	}
	if f.MinRating, err = optFloat(q, "min_rating"); err != nil {
		return f, err
	}
	trending, err := optBool(q, "trending")
	if err != nil {
		return f, err
	}
	f.TrendingOnly = trending != nil && *trending
	return f, nil
}

// limitParam reads key as a positive integer, falling back to def. The
// service clamps it to the configured maximum.
func limitParam(q url.Values, key string, def int) (int, error) {
	n, err := optInt(q, key)
	if err != nil {
		return 0, err
	}
	if n == nil {
		return def, nil
	}
	if *n <= 0 {
		return 0, invalid("%s must be positive", key)
	}
	return *n, nil
}

// pageParam reads limit and offset for the listing routes. A missing limit
// is left for the service to default; offset must not be negative.
func pageParam(q url.Values) (domain.Page, error) {
	limit, err := limitParam(q, "limit", 0)
	if err != nil {
		return domain.Page{}, err
	}
	off, err := optInt(q, "offset")
	if err != nil {
		return domain.Page{}, err
	}
	p := domain.Page{Limit: limit}
	if off != nil {
		if *off < 0 {
			return domain.Page{}, invalid("offset must not be negative")
		}
		p.Offset = *off
	}
	return p, nil
}
