package domain

import "time"

type Product struct {
	ID          int64
	Source      *string // amazon|flipkart
	ProductID   string
	Title       string
	Brand       *string
	Category    *string
	Price       *float64
	Currency    *string
	Rating      *float64
	Reviews     *int
	Available   *bool
	Variation   []byte // arbitrary JSON
	ImageURL    *string
	LastUpdated *time.Time
}
