package report

import (
	"encoding/json"
	"time"

	"trendsensei/internal/domain"
)

// Output rows. Field names are the external vocabulary and do not follow
// the storage column names.

type CategoryCount struct {
	Category *string `json:"category"`
	Count    int     `json:"count"`
}

type RatingCount struct {
	Rating *string `json:"rating"`
	Count  int     `json:"count"`
}

type SentimentCount struct {
	Sentiment *string `json:"sentiment"`
	Count     int     `json:"count"`
}

type ProductRank struct {
	ProductID    string  `json:"product_id"`
	ProductTitle string  `json:"product_title"`
	Category     string  `json:"category"`
	ReviewCount  int     `json:"review_count"`
	AvgRating    float64 `json:"avg_rating"`
}

type MonthlyPoint struct {
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	ReviewCount int     `json:"review_count"`
	AvgRating   float64 `json:"avg_rating"`
}

type VerificationRate struct {
	Total    int     `json:"total"`
	Verified int     `json:"verified"`
	Rate     float64 `json:"rate"`
}

type Summary struct {
	TotalReviews     int     `json:"total_reviews"`
	AvgRating        float64 `json:"avg_rating"`
	TotalProducts    int     `json:"total_products"`
	TotalCategories  int     `json:"total_categories"`
	VerificationRate float64 `json:"verification_rate"`
}

type ProductDetail struct {
	ProductName  string  `json:"product_name"`
	AvgPrice     float64 `json:"avg_price"`
	AvgRating    float64 `json:"avg_rating"`
	TotalReviews int     `json:"total_reviews"`
	Category     *string `json:"category,omitempty"`
	Brand        *string `json:"brand,omitempty"`
}

type ReviewRow struct {
	ReviewID     string  `json:"review_id"`
	ProductID    string  `json:"product_id"`
	ProductTitle string  `json:"product_title"`
	Category     string  `json:"category"`
	StarRating   *string `json:"star_rating"` // raw stored value
	Rating       *int    `json:"rating"`      // coerced, null when malformed
	Sentiment    *string `json:"sentiment"`
	HelpfulVotes *int    `json:"helpful_votes"`
	Verified     bool    `json:"verified"`
	Headline     string  `json:"headline"`
	Body         string  `json:"body"`
	ReviewDate   string  `json:"review_date"`
	Year         *int    `json:"year"`
	Month        *int    `json:"month"`
	Day          *int    `json:"day"`
}

type ProductRow struct {
	ProductID   string          `json:"product_id"`
	Source      *string         `json:"source"`
	Title       string          `json:"title"`
	Brand       *string         `json:"brand"`
	Category    *string         `json:"category"`
	Price       *float64        `json:"price"`
	Currency    *string         `json:"currency"`
	Rating      *float64        `json:"rating"`
	ReviewCount *int            `json:"review_count"`
	Available   *bool           `json:"available"`
	Variation   json.RawMessage `json:"variation,omitempty"`
	ImageURL    *string         `json:"image_url"`
	LastUpdated *time.Time      `json:"last_updated"`
}

func ShapeReview(r domain.Review) ReviewRow {
	return ReviewRow{
		ReviewID:     r.ReviewID,
		ProductID:    r.ProductID,
		ProductTitle: r.ProductTitle,
		Category:     r.ProductCategory,
		StarRating:   r.StarRating,
		Rating:       optInt(LeadingInt(r.StarRating)),
		Sentiment:    r.Sentiment,
		HelpfulVotes: optInt(LeadingInt(r.HelpfulVotes)),
		Verified:     IsVerified(r.Verified),
		Headline:     r.Headline,
		Body:         r.Body,
		ReviewDate:   r.ReviewDate,
		Year:         optInt(LeadingInt(r.ReviewYear)),
		Month:        optInt(Month(r.ReviewMonth)),
		Day:          optInt(LeadingInt(r.ReviewDay)),
	}
}

func ShapeReviews(rs []domain.Review) []ReviewRow {
	out := make([]ReviewRow, 0, len(rs))
	for _, r := range rs {
		out = append(out, ShapeReview(r))
	}
	return out
}

func ShapeProduct(p domain.Product) ProductRow {
	row := ProductRow{
		ProductID:   p.ProductID,
		Source:      p.Source,
		Title:       p.Title,
		Brand:       p.Brand,
		Category:    p.Category,
		Price:       p.Price,
		Currency:    p.Currency,
		Rating:      p.Rating,
		ReviewCount: p.Reviews,
		Available:   p.Available,
		ImageURL:    p.ImageURL,
		LastUpdated: p.LastUpdated,
	}
	// variation is free-form; drop it rather than emit invalid JSON
	if len(p.Variation) > 0 && json.Valid(p.Variation) {
		row.Variation = json.RawMessage(p.Variation)
	}
	return row
}

func ShapeProducts(ps []domain.Product) []ProductRow {
	out := make([]ProductRow, 0, len(ps))
	for _, p := range ps {
		out = append(out, ShapeProduct(p))
	}
	return out
}

func optInt(v int, ok bool) *int {
	if !ok {
		return nil
	}
	return &v
}
