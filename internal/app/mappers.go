package app

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"trendsensei/internal/domain"
)

/********** alias registries (single source of truth) **********/

// Aliases maps a canonical field to the column or key names it appears under.
type Aliases map[string][]string

// reviewAliases covers the column drift seen across exports of the review
// dataset. Matching is case-insensitive on trimmed header names.
var reviewAliases = Aliases{
	"review_id":         {"review_id", "reviewId", "id"},
	"marketplace":       {"marketplace"},
	"customer_id":       {"customer_id", "customerId"},
	"product_id":        {"product_id", "asin"},
	"product_parent":    {"product_parent"},
	"product_title":     {"product_title", "title"},
	"product_category":  {"product_category", "category"},
	"star_rating":       {"star_rating", "rating", "stars"},
	"helpful_votes":     {"helpful_votes", "helpful"},
	"total_votes":       {"total_votes"},
	"vine":              {"vine"},
	"verified_purchase": {"verified_purchase", "verified"},
	"review_headline":   {"review_headline", "headline", "summary"},
	"review_body":       {"review_body", "review_text", "body", "text"},
	"review_date":       {"review_date", "date"},
	"review_year":       {"review_year", "year"},
	"review_month":      {"review_month", "month"},
	"review_day":        {"review_day", "day"},
	"sentiment":         {"Sentiment_pc", "sentiment_pc", "sentiment"},
}

var productAliases = Aliases{
	"product_id":   {"product_id", "asin", "id"},
	"source":       {"source", "marketplace"},
	"title":        {"title", "product_title", "name"},
	"brand":        {"brand", "manufacturer"},
	"category":     {"category", "product_category"},
	"price":        {"price", "deal_price", "price.value"},
	"currency":     {"currency", "price.currency"},
	"rating":       {"rating", "stars", "rating.value"},
	"reviews":      {"reviews_count", "reviews", "ratings_total", "num_reviews"},
	"available":    {"in_stock", "availability", "available"},
	"variation":    {"variation", "variations"},
	"image_url":    {"image_url", "image", "thumbnail"},
	"last_updated": {"last_updated", "updated_at"},
}

// DefaultReviewAliases returns a copy of the built-in review column registry.
func DefaultReviewAliases() Aliases {
	out := make(Aliases, len(reviewAliases))
	for k, v := range reviewAliases {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// LoadAliases reads a YAML file of extra column names and merges them in
// front of the built-in ones:
//
//	star_rating: [stars_given]
//	sentiment: [sentiment_label]
func LoadAliases(path string) (Aliases, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var extra map[string][]string
	if err := yaml.Unmarshal(b, &extra); err != nil {
		return nil, fmt.Errorf("parse aliases %s: %w", path, err)
	}
	out := DefaultReviewAliases()
	for k, names := range extra {
		if _, ok := out[k]; !ok {
			return nil, fmt.Errorf("unknown review field %q in %s", k, path)
		}
		out[k] = append(names, out[k]...)
	}
	return out, nil
}

// columnIndex resolves every canonical field to its header position; fields
// with no matching column are absent from the result.
func columnIndex(header []string, aliases Aliases) map[string]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	idx := make(map[string]int, len(aliases))
	for field, names := range aliases {
		for _, n := range names {
			if i, ok := pos[strings.ToLower(n)]; ok {
				idx[field] = i
				break
			}
		}
	}
	return idx
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases Aliases, key string) *string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return &s
		}
	}
	return nil
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// getFloatFlexible: number from several paths (float64/int/string like "₹1,299.00").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.Map(func(r rune) rune {
				if (r >= '0' && r <= '9') || r == '.' || r == '-' {
					return r
				}
				return -1
			}, v)
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// firstIntFlexible: int from several paths (float64/int/string like "1,204").
func firstIntFlexible(m map[string]any, paths ...string) *int {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int(v)
			return &x
		case int:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
			if s == "" {
				continue
			}
			if n, err := strconv.Atoi(s); err == nil {
				return &n
			}
		}
	}
	return nil
}

func firstBoolFlexible(m map[string]any, paths ...string) *bool {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case bool:
			b := v
			return &b
		case string:
			s := strings.ToLower(strings.TrimSpace(v))
			if s == "" {
				continue
			}
			b := s == "true" || s == "yes" || s == "1" || strings.Contains(s, "in stock")
			return &b
		}
	}
	return nil
}

/********** review row mapper **********/

// reviewRow maps one CSV record. Missing and empty cells map to nil for the
// nullable fields and to "" for the rest.
type reviewRow struct {
	idx map[string]int
}

func (m reviewRow) cell(rec []string, field string) string {
	i, ok := m.idx[field]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (m reviewRow) opt(rec []string, field string) *string {
	return ptrStr(m.cell(rec, field))
}

func (m reviewRow) mapReview(seq int64, rec []string) domain.Review {
	rv := domain.Review{
		ReviewID:        m.cell(rec, "review_id"),
		Seq:             seq,
		Marketplace:     m.cell(rec, "marketplace"),
		CustomerID:      m.cell(rec, "customer_id"),
		ProductID:       m.cell(rec, "product_id"),
		ProductParent:   m.cell(rec, "product_parent"),
		ProductTitle:    m.cell(rec, "product_title"),
		ProductCategory: m.cell(rec, "product_category"),
		StarRating:      m.opt(rec, "star_rating"),
		HelpfulVotes:    m.opt(rec, "helpful_votes"),
		TotalVotes:      m.opt(rec, "total_votes"),
		Vine:            m.cell(rec, "vine"),
		Verified:        m.cell(rec, "verified_purchase"),
		Headline:        m.cell(rec, "review_headline"),
		Body:            m.cell(rec, "review_body"),
		ReviewDate:      m.cell(rec, "review_date"),
		ReviewYear:      m.opt(rec, "review_year"),
		ReviewMonth:     m.opt(rec, "review_month"),
		ReviewDay:       m.opt(rec, "review_day"),
		Sentiment:       m.opt(rec, "sentiment"),
	}
	if rv.ReviewID == "" {
		// stable across re-imports of the same file
		sig := strings.Join([]string{rv.CustomerID, rv.ProductID, rv.ReviewDate, rv.Headline, rv.Body}, "|")
		rv.ReviewID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(sig)).String()
	}
	return rv
}

/********** product mapper **********/

func mapProduct(p map[string]any, defaultSource string) (domain.Product, bool) {
	id := firstNonEmptyAlias(p, productAliases, "product_id")
	if id == nil {
		if n := firstIntFlexible(p, productAliases["product_id"]...); n != nil {
			s := strconv.Itoa(*n)
			id = &s
		}
	}
	title := firstNonEmptyAlias(p, productAliases, "title")
	if id == nil || title == nil {
		return domain.Product{}, false
	}

	out := domain.Product{
		ProductID: *id,
		Title:     *title,
		Source:    firstNonEmptyAlias(p, productAliases, "source"),
		Brand:     firstNonEmptyAlias(p, productAliases, "brand"),
		Category:  firstNonEmptyAlias(p, productAliases, "category"),
		Price:     getFloatFlexible(p, productAliases["price"]...),
		Currency:  firstNonEmptyAlias(p, productAliases, "currency"),
		Rating:    getFloatFlexible(p, productAliases["rating"]...),
		Reviews:   firstIntFlexible(p, productAliases["reviews"]...),
		Available: firstBoolFlexible(p, productAliases["available"]...),
		ImageURL:  firstNonEmptyAlias(p, productAliases, "image_url"),
	}
	if out.Source == nil {
		out.Source = ptrStr(defaultSource)
	}
	for _, k := range productAliases["variation"] {
		if v := lookupAny(p, k); v != nil {
			raw, err := json.Marshal(v)
			if err != nil {
				log.Error().Err(err).Str("context", "mapProduct").Msg("marshal variation failed")
				break
			}
			out.Variation = raw
			break
		}
	}
	if s := firstNonEmptyAlias(p, productAliases, "last_updated"); s != nil {
		if t, err := time.Parse(time.RFC3339, *s); err == nil {
			out.LastUpdated = &t
		}
	}
	return out, true
}
