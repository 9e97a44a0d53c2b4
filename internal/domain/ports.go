package domain

import "context"

// Page is a window over the matching rows in stable import order. Limit <= 0
// means no limit; Offset counts matching rows to skip.
type Page struct {
	Limit  int
	Offset int
}

// RecordStore is the read side of the relational store.
type RecordStore interface {
	SelectReviews(ctx context.Context, f ReviewFilter, p Page) ([]Review, error)
	GetReview(ctx context.Context, id string) (Review, error)
	SelectProducts(ctx context.Context, f ProductFilter, p Page) ([]Product, error)
}

// RecordWriter is used by the bulk importers only.
type RecordWriter interface {
	InsertReviews(ctx context.Context, rs []Review) (int64, error)
	UpsertProducts(ctx context.Context, ps []Product) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
