package app

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"trendsensei/internal/adapters/observability"
	"trendsensei/internal/domain"
)

type ImportConfig struct {
	Workers   int
	BatchSize int
}

// ImportService loads the review export and product snapshots into the store.
type ImportService struct {
	w   domain.RecordWriter
	cfg ImportConfig
}

type ImportStats struct {
	Rows     int64 `json:"rows"`
	Inserted int64 `json:"inserted"`
	Batches  int   `json:"batches"`
}

func NewImportService(w domain.RecordWriter, cfg ImportConfig) *ImportService {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &ImportService{w: w, cfg: cfg}
}

// ReviewDecoder reads review rows from a CSV export, assigning each row its
// 1-based position as Seq.
type ReviewDecoder struct {
	r   *csv.Reader
	m   reviewRow
	seq int64
}

func NewReviewDecoder(r io.Reader, aliases Aliases) (*ReviewDecoder, error) {
	if aliases == nil {
		aliases = reviewAliases
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := columnIndex(header, aliases)
	if _, ok := idx["product_id"]; !ok {
		return nil, errors.New("read header: no product_id column")
	}
	for _, f := range []string{"star_rating", "sentiment", "product_category"} {
		if _, ok := idx[f]; !ok {
			log.Warn().Str("field", f).Msg("column missing, field will be null")
		}
	}
	return &ReviewDecoder{r: cr, m: reviewRow{idx: idx}}, nil
}

// Next returns io.EOF after the last row.
func (d *ReviewDecoder) Next() (domain.Review, error) {
	rec, err := d.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Review{}, io.EOF
		}
		line, _ := d.r.FieldPos(0)
		return domain.Review{}, fmt.Errorf("csv line %d: %w", line, err)
	}
	d.seq++
	return d.m.mapReview(d.seq, rec), nil
}

// ReadReviews decodes a whole export into memory.
func ReadReviews(r io.Reader, aliases Aliases) ([]domain.Review, error) {
	d, err := NewReviewDecoder(r, aliases)
	if err != nil {
		return nil, err
	}
	var out []domain.Review
	for {
		rv, err := d.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
}

// ImportReviews streams the export into the store in batches, inserting up to
// cfg.Workers batches concurrently. Rows whose review_id already exists are
// skipped by the store.
func (s *ImportService) ImportReviews(ctx context.Context, r io.Reader, aliases Aliases) (ImportStats, error) {
	d, err := NewReviewDecoder(r, aliases)
	if err != nil {
		return ImportStats{}, err
	}

	var (
		stats    ImportStats
		inserted atomic.Int64
		sem      = semaphore.NewWeighted(int64(s.cfg.Workers))
	)
	g, gctx := errgroup.WithContext(ctx)

	flush := func(batch []domain.Review) error {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(gctx, 1); err != nil {
			return err
		}
		stats.Batches++
		g.Go(func() error {
			defer sem.Release(1)
			n, err := s.w.InsertReviews(gctx, batch)
			if err != nil {
				return fmt.Errorf("insert batch at seq %d: %w", batch[0].Seq, err)
			}
			inserted.Add(n)
			observability.ObserveImport("reviews", int(n))
			return nil
		})
		return nil
	}

	batch := make([]domain.Review, 0, s.cfg.BatchSize)
	var readErr error
	for {
		rv, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		stats.Rows++
		batch = append(batch, rv)
		if len(batch) == s.cfg.BatchSize {
			if readErr = flush(batch); readErr != nil {
				break
			}
			batch = make([]domain.Review, 0, s.cfg.BatchSize)
		}
	}
	if readErr == nil && len(batch) > 0 {
		readErr = flush(batch)
	}

	werr := g.Wait()
	stats.Inserted = inserted.Load()
	if werr != nil {
		return stats, werr
	}
	if readErr != nil {
		return stats, readErr
	}
	log.Info().
		Int64("rows", stats.Rows).
		Int64("inserted", stats.Inserted).
		Int("batches", stats.Batches).
		Msg("review import done")
	return stats, nil
}

// ImportProducts upserts a product snapshot: a JSON array of product objects,
// or an object carrying one under "results", "products" or "deals".
// Objects without an id or title are skipped.
func (s *ImportService) ImportProducts(ctx context.Context, r io.Reader, source string) (int, error) {
	var doc any
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode snapshot: %w", err)
	}
	var items []any
	switch t := doc.(type) {
	case []any:
		items = t
	case map[string]any:
		for _, k := range []string{"results", "products", "deals"} {
			if arr, ok := t[k].([]any); ok {
				items = arr
				break
			}
		}
	}
	if items == nil {
		return 0, errors.New("decode snapshot: no product list found")
	}

	ps := make([]domain.Product, 0, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		p, ok := mapProduct(m, source)
		if !ok {
			log.Warn().Int("index", i).Msg("product without id or title skipped")
			continue
		}
		ps = append(ps, p)
	}

	for start := 0; start < len(ps); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(ps))
		if err := s.w.UpsertProducts(ctx, ps[start:end]); err != nil {
			return start, fmt.Errorf("upsert products: %w", err)
		}
		observability.ObserveImport("products", end-start)
	}
	return len(ps), nil
}
