package app

import (
	"context"
	"fmt"
	"time"

	"trendsensei/internal/adapters/observability"
	"trendsensei/internal/domain"
	"trendsensei/internal/report"
)

type ReportConfig struct {
	MaxPageSize       int
	DefaultPageSize   int
	TrendingThreshold int
}

// ReportService is the reporting layer: it selects the filtered record set
// from the store and hands it to the aggregation functions. It holds no
// state besides the injected store.
type ReportService struct {
	store domain.RecordStore
	cfg   ReportConfig
}

func NewReportService(s domain.RecordStore, cfg ReportConfig) *ReportService {
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	if cfg.DefaultPageSize <= 0 || cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = min(50, cfg.MaxPageSize)
	}
	if cfg.TrendingThreshold <= 0 {
		cfg.TrendingThreshold = domain.DefaultTrendingThreshold
	}
	return &ReportService{store: s, cfg: cfg}
}

// PageSize clamps a client-supplied limit to the server-side cap.
func (s *ReportService) PageSize(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultPageSize
	}
	return min(limit, s.cfg.MaxPageSize)
}

func (s *ReportService) reviewFilter(f domain.ReviewFilter) domain.ReviewFilter {
	f.TrendingThreshold = s.cfg.TrendingThreshold
	return f.Normalize()
}

func (s *ReportService) productFilter(f domain.ProductFilter) domain.ProductFilter {
	f.TrendingThreshold = s.cfg.TrendingThreshold
	return f.Normalize()
}

func (s *ReportService) allReviews(ctx context.Context, f domain.ReviewFilter) ([]domain.Review, error) {
	rs, err := s.store.SelectReviews(ctx, s.reviewFilter(f), domain.Page{})
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	return rs, nil
}

func (s *ReportService) allProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	f = s.productFilter(f)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	ps, err := s.store.SelectProducts(ctx, f, domain.Page{})
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	return ps, nil
}

func observe(name string, start time.Time) {
	observability.ObserveReport(name, time.Since(start))
}

// page clamps a client-supplied window: the limit to the configured cap and
// negative offsets to zero.
func (s *ReportService) page(p domain.Page) domain.Page {
	return domain.Page{Limit: s.PageSize(p.Limit), Offset: max(p.Offset, 0)}
}

func (s *ReportService) Reviews(ctx context.Context, f domain.ReviewFilter, p domain.Page) ([]report.ReviewRow, error) {
	rs, err := s.store.SelectReviews(ctx, s.reviewFilter(f), s.page(p))
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	return report.ShapeReviews(rs), nil
}

func (s *ReportService) Review(ctx context.Context, id string) (report.ReviewRow, error) {
	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return report.ReviewRow{}, err
	}
	return report.ShapeReview(r), nil
}

func (s *ReportService) Summary(ctx context.Context, f domain.ReviewFilter) (report.Summary, error) {
	defer observe("summary", time.Now())
	rs, err := s.allReviews(ctx, f)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Summarize(rs), nil
}

func (s *ReportService) SentimentDistribution(ctx context.Context, f domain.ReviewFilter) ([]report.SentimentCount, error) {
	defer observe("sentiment", time.Now())
	rs, err := s.allReviews(ctx, f)
	if err != nil {
		return nil, err
	}
	return report.SentimentDistribution(rs), nil
}

func (s *ReportService) RatingDistribution(ctx context.Context, f domain.ReviewFilter) ([]report.RatingCount, error) {
	defer observe("ratings", time.Now())
	rs, err := s.allReviews(ctx, f)
	if err != nil {
		return nil, err
	}
	return report.RatingDistribution(rs), nil
}

func (s *ReportService) CategoryStats(ctx context.Context, f domain.ReviewFilter) ([]report.CategoryCount, error) {
	defer observe("categories", time.Now())
	rs, err := s.allReviews(ctx, f)
	if err != nil {
		return nil, err
	}
	return report.CategoryDistribution(rs), nil
}

// TrendingProducts ranks reviewed products by review count.
func (s *ReportService) TrendingProducts(ctx context.Context, f domain.ReviewFilter, n int) ([]report.ProductRank, error) {
	defer observe("trending", time.Now())
	rs, err := s.allReviews(ctx, f)
	if err != nil {
		return nil, err
	}
	return report.TopProducts(rs, s.PageSize(n)), nil
}

// RankedProducts ranks catalog products by their stored review count.
func (s *ReportService) RankedProducts(ctx context.Context, f domain.ProductFilter, n int) ([]report.ProductRank, error) {
	defer observe("ranked_products", time.Now())
	ps, err := s.allProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	return report.RankProducts(ps, s.PageSize(n)), nil
}

// Top ranks either source by review count.
func (s *ReportService) Top(ctx context.Context, source string, n int) ([]report.ProductRank, error) {
	src, err := ParseSource(source)
	if err != nil {
		return nil, err
	}
	if src == SourceProducts {
		return s.RankedProducts(ctx, domain.ProductFilter{}, n)
	}
	return s.TrendingProducts(ctx, domain.ReviewFilter{}, n)
}

// MonthlyTrend groups reviews per (year, month); set f.Year to restrict it
// to one year.
func (s *ReportService) MonthlyTrend(ctx context.Context, f domain.ReviewFilter) ([]report.MonthlyPoint, error) {
	defer observe("monthly", time.Now())
	rs, err := s.allReviews(ctx, f)
	if err != nil {
		return nil, err
	}
	return report.MonthlyTrend(rs), nil
}

func (s *ReportService) ProductSentiment(ctx context.Context, productID string) ([]report.SentimentCount, error) {
	return s.SentimentDistribution(ctx, domain.ReviewFilter{ProductID: &productID})
}

func (s *ReportService) VerificationRate(ctx context.Context, f domain.ReviewFilter) (report.VerificationRate, error) {
	defer observe("verification", time.Now())
	rs, err := s.allReviews(ctx, f)
	if err != nil {
		return report.VerificationRate{}, err
	}
	return report.Verification(rs), nil
}

func (s *ReportService) HelpfulReviews(ctx context.Context, f domain.ReviewFilter, n int) ([]report.ReviewRow, error) {
	defer observe("helpful", time.Now())
	rs, err := s.allReviews(ctx, f)
	if err != nil {
		return nil, err
	}
	return report.ShapeReviews(report.MostHelpful(rs, s.PageSize(n))), nil
}

func (s *ReportService) Products(ctx context.Context, f domain.ProductFilter, p domain.Page) ([]report.ProductRow, error) {
	f = s.productFilter(f)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	ps, err := s.store.SelectProducts(ctx, f, s.page(p))
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	return report.ShapeProducts(ps), nil
}

func (s *ReportService) ProductCategoryStats(ctx context.Context, f domain.ProductFilter) ([]report.CategoryCount, error) {
	defer observe("product_categories", time.Now())
	ps, err := s.allProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	return report.ProductCategoryDistribution(ps), nil
}

func (s *ReportService) ProductDetail(ctx context.Context, title string) (report.ProductDetail, error) {
	ps, err := s.allProducts(ctx, domain.ProductFilter{Query: &title})
	if err != nil {
		return report.ProductDetail{}, err
	}
	d, ok := report.Detail(title, ps)
	if !ok {
		return report.ProductDetail{}, domain.ErrNotFound
	}
	return d, nil
}

// Rows returns a capped row set of either source, shaped for output, along
// with its length.
func (s *ReportService) Rows(ctx context.Context, src Source, limit int) (any, int, error) {
	switch src {
	case SourceReviews:
		rows, err := s.Reviews(ctx, domain.ReviewFilter{}, domain.Page{Limit: limit})
		return rows, len(rows), err
	case SourceProducts:
		rows, err := s.Products(ctx, domain.ProductFilter{}, domain.Page{Limit: limit})
		return rows, len(rows), err
	}
	return nil, 0, domain.ErrInvalidSource
}
