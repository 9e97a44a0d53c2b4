package app

import (
	"strings"

	"trendsensei/internal/domain"
)

// Source names a record set that can be ranked or fed to the assistant.
type Source string

const (
	SourceReviews  Source = "reviews"
	SourceProducts Source = "products"
)

var sourceAliases = map[string]Source{
	"reviews":        SourceReviews,
	"amazon_reviews": SourceReviews,
	"products":       SourceProducts,
}

// ParseSource resolves a caller-supplied source name.
func ParseSource(s string) (Source, error) {
	if src, ok := sourceAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return src, nil
	}
	return "", domain.ErrInvalidSource
}
