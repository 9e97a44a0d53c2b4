package report

import (
	"sort"
	"strings"

	"trendsensei/internal/domain"
)

// bucket is one group of a raw-value distribution. A nil key is the group of
// NULL/empty values.
type bucket struct {
	key   *string
	count int
}

// countBy groups rows by the raw key in first-seen order.
func countBy[T any](rows []T, key func(T) *string) []bucket {
	idx := make(map[string]int)
	nullIdx := -1
	var out []bucket
	for _, row := range rows {
		k := key(row)
		if k == nil {
			if nullIdx < 0 {
				nullIdx = len(out)
				out = append(out, bucket{})
			}
			out[nullIdx].count++
			continue
		}
		i, ok := idx[*k]
		if !ok {
			i = len(out)
			idx[*k] = i
			v := *k
			out = append(out, bucket{key: &v})
		}
		out[i].count++
	}
	return out
}

// sortByCount orders buckets by count desc, then key asc, NULL last.
func sortByCount(bs []bucket) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].count != bs[j].count {
			return bs[i].count > bs[j].count
		}
		return keyLess(bs[i].key, bs[j].key)
	})
}

// sortOrdinal orders numeric keys by value, then malformed keys, then NULL.
func sortOrdinal(bs []bucket) {
	sort.SliceStable(bs, func(i, j int) bool {
		a, b := bs[i].key, bs[j].key
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		av, aok := LeadingInt(a)
		bv, bok := LeadingInt(b)
		switch {
		case aok && bok:
			if av != bv {
				return av < bv
			}
			return *a < *b
		case aok != bok:
			return aok
		default:
			return *a < *b
		}
	})
}

func keyLess(a, b *string) bool {
	if a == nil || b == nil {
		return b == nil && a != nil
	}
	return *a < *b
}

func blankAsNull(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// SentimentDistribution counts reviews per raw sentiment label.
func SentimentDistribution(rs []domain.Review) []SentimentCount {
	bs := countBy(rs, func(r domain.Review) *string { return r.Sentiment })
	sortByCount(bs)
	out := make([]SentimentCount, 0, len(bs))
	for _, b := range bs {
		out = append(out, SentimentCount{Sentiment: b.key, Count: b.count})
	}
	return out
}

// RatingDistribution counts reviews per raw star rating. Malformed ratings
// keep their own bucket.
func RatingDistribution(rs []domain.Review) []RatingCount {
	bs := countBy(rs, func(r domain.Review) *string { return r.StarRating })
	sortOrdinal(bs)
	out := make([]RatingCount, 0, len(bs))
	for _, b := range bs {
		out = append(out, RatingCount{Rating: b.key, Count: b.count})
	}
	return out
}

func CategoryDistribution(rs []domain.Review) []CategoryCount {
	bs := countBy(rs, func(r domain.Review) *string { return blankAsNull(r.ProductCategory) })
	return categoryCounts(bs)
}

func ProductCategoryDistribution(ps []domain.Product) []CategoryCount {
	bs := countBy(ps, func(p domain.Product) *string {
		if p.Category == nil {
			return nil
		}
		return blankAsNull(*p.Category)
	})
	return categoryCounts(bs)
}

func categoryCounts(bs []bucket) []CategoryCount {
	sortByCount(bs)
	out := make([]CategoryCount, 0, len(bs))
	for _, b := range bs {
		out = append(out, CategoryCount{Category: b.key, Count: b.count})
	}
	return out
}

// AverageRating averages the coercible star ratings; 0 when there are none.
func AverageRating(rs []domain.Review) float64 {
	var sum, n int
	for _, r := range rs {
		if v, ok := LeadingInt(r.StarRating); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return round2(float64(sum) / float64(n))
}

// TopProducts ranks products by review count. Ties keep first-seen order.
// n <= 0 returns every product.
func TopProducts(rs []domain.Review, n int) []ProductRank {
	type acc struct {
		rank     ProductRank
		sum, cnt int
	}
	idx := make(map[string]int)
	var groups []*acc
	for _, r := range rs {
		i, ok := idx[r.ProductID]
		if !ok {
			i = len(groups)
			idx[r.ProductID] = i
			groups = append(groups, &acc{rank: ProductRank{
				ProductID:    r.ProductID,
				ProductTitle: r.ProductTitle,
				Category:     r.ProductCategory,
			}})
		}
		g := groups[i]
		g.rank.ReviewCount++
		if v, ok := LeadingInt(r.StarRating); ok {
			g.sum += v
			g.cnt++
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].rank.ReviewCount > groups[j].rank.ReviewCount
	})
	if n > 0 && len(groups) > n {
		groups = groups[:n]
	}
	out := make([]ProductRank, 0, len(groups))
	for _, g := range groups {
		if g.cnt > 0 {
			g.rank.AvgRating = round2(float64(g.sum) / float64(g.cnt))
		}
		out = append(out, g.rank)
	}
	return out
}

// RankProducts ranks catalog products by their stored review count (NULL
// counts as 0). Ties keep input order.
func RankProducts(ps []domain.Product, n int) []ProductRank {
	sorted := append([]domain.Product(nil), ps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return intOr0(sorted[i].Reviews) > intOr0(sorted[j].Reviews)
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]ProductRank, 0, len(sorted))
	for _, p := range sorted {
		rank := ProductRank{
			ProductID:    p.ProductID,
			ProductTitle: p.Title,
			Category:     deref(p.Category),
			ReviewCount:  intOr0(p.Reviews),
		}
		if p.Rating != nil {
			rank.AvgRating = round2(*p.Rating)
		}
		out = append(out, rank)
	}
	return out
}

// MonthlyTrend groups reviews by (year, month) in chronological order.
// Rows whose year or month cannot be coerced are left out; months without
// reviews are not synthesized.
func MonthlyTrend(rs []domain.Review) []MonthlyPoint {
	type acc struct {
		point    MonthlyPoint
		sum, cnt int
	}
	groups := make(map[[2]int]*acc)
	for _, r := range rs {
		y, ok := LeadingInt(r.ReviewYear)
		if !ok {
			continue
		}
		m, ok := Month(r.ReviewMonth)
		if !ok {
			continue
		}
		k := [2]int{y, m}
		g, ok := groups[k]
		if !ok {
			g = &acc{point: MonthlyPoint{Year: y, Month: m}}
			groups[k] = g
		}
		g.point.ReviewCount++
		if v, ok := LeadingInt(r.StarRating); ok {
			g.sum += v
			g.cnt++
		}
	}
	out := make([]MonthlyPoint, 0, len(groups))
	for _, g := range groups {
		if g.cnt > 0 {
			g.point.AvgRating = round2(float64(g.sum) / float64(g.cnt))
		}
		out = append(out, g.point)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// Verification reports the share of verified purchases as a percentage.
func Verification(rs []domain.Review) VerificationRate {
	v := VerificationRate{Total: len(rs)}
	for _, r := range rs {
		if IsVerified(r.Verified) {
			v.Verified++
		}
	}
	if v.Total > 0 {
		v.Rate = round2(float64(v.Verified) * 100 / float64(v.Total))
	}
	return v
}

// MostHelpful orders reviews by helpful votes, highest first. Reviews whose
// vote count cannot be coerced go last; ties keep input order.
func MostHelpful(rs []domain.Review, n int) []domain.Review {
	sorted := append([]domain.Review(nil), rs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, aok := LeadingInt(sorted[i].HelpfulVotes)
		b, bok := LeadingInt(sorted[j].HelpfulVotes)
		if aok != bok {
			return aok
		}
		return a > b
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Summarize computes the dashboard headline numbers.
func Summarize(rs []domain.Review) Summary {
	products := make(map[string]struct{})
	categories := make(map[string]struct{})
	for _, r := range rs {
		if r.ProductID != "" {
			products[r.ProductID] = struct{}{}
		}
		if c := strings.TrimSpace(r.ProductCategory); c != "" {
			categories[c] = struct{}{}
		}
	}
	return Summary{
		TotalReviews:     len(rs),
		AvgRating:        AverageRating(rs),
		TotalProducts:    len(products),
		TotalCategories:  len(categories),
		VerificationRate: Verification(rs).Rate,
	}
}

// Detail folds every catalog entry whose title equals name (case-insensitive).
func Detail(name string, ps []domain.Product) (ProductDetail, bool) {
	d := ProductDetail{ProductName: name}
	var priceSum, ratingSum float64
	var priced, rated, found int
	for _, p := range ps {
		if !strings.EqualFold(strings.TrimSpace(p.Title), strings.TrimSpace(name)) {
			continue
		}
		found++
		if p.Price != nil {
			priceSum += *p.Price
			priced++
		}
		if p.Rating != nil {
			ratingSum += *p.Rating
			rated++
		}
		d.TotalReviews += intOr0(p.Reviews)
		if d.Category == nil {
			d.Category = p.Category
		}
		if d.Brand == nil {
			d.Brand = p.Brand
		}
	}
	if found == 0 {
		return ProductDetail{}, false
	}
	if priced > 0 {
		d.AvgPrice = round2(priceSum / float64(priced))
	}
	if rated > 0 {
		d.AvgRating = round2(ratingSum / float64(rated))
	}
	return d, true
}

func intOr0(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
