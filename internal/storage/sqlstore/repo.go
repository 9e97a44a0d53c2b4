package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"trendsensei/internal/domain"
	"trendsensei/internal/report"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}
func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

// Repo implements domain.RecordStore and domain.RecordWriter over any of the
// supported dialects.
type Repo struct {
	db *sql.DB
	d  Dialect
}

func New(db *sql.DB, d Dialect) *Repo { return &Repo{db: db, d: d} }

// Open connects and pings. SQLite gets a single connection so that writers
// never contend for the file lock.
func Open(ctx context.Context, d Dialect, dsn string) (*Repo, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open %s: %w", d.Name, err)
	}
	if d.Name == SQLite.Name {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	return New(db, d), nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) Dialect() Dialect { return r.d }

// Migrate creates the tables when missing. It is safe to run repeatedly.
func (r *Repo) Migrate(ctx context.Context) error {
	stmts, err := r.d.Schema()
	if err != nil {
		return err
	}
	for i, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate %s statement %d: %w", r.d.Name, i+1, err)
		}
	}
	log.Info().Str("dialect", r.d.Name).Int("statements", len(stmts)).Msg("schema ready")
	return nil
}

/********** reads **********/

// where collects the pushed-down conditions. Every condition selects a
// superset of what report.MatchReview / MatchProduct accept, and the Go
// matcher runs on every row read; exact stays true only while SQL alone
// decides the filter, which is what allows LIMIT/OFFSET to be pushed down.
type where struct {
	d     Dialect
	conds []string
	args  []any
	exact bool
}

func newWhere(d Dialect) *where { return &where{d: d, exact: true} }

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "\nWHERE " + strings.Join(w.conds, "\n  AND ")
}

// foldContains narrows to rows where any of cols contains term, ignoring
// case. SQL case folding is only relied on for ASCII: rows holding non-ASCII
// text in any of cols always pass, and a non-ASCII term is left to the Go
// matcher entirely. Go trims more whitespace than SQL TRIM, so equality
// criteria are narrowed with a substring match too.
func (w *where) foldContains(term string, cols ...string) {
	w.exact = false
	if !isASCII(term) {
		return
	}
	p := likePattern(term)
	ors := make([]string, 0, 2*len(cols))
	for _, c := range cols {
		ors = append(ors, "LOWER("+c+") LIKE ? ESCAPE '!'", w.d.hasNonASCII(c))
		w.args = append(w.args, p)
	}
	w.conds = append(w.conds, "("+strings.Join(ors, " OR ")+")")
}

// page appends LIMIT/OFFSET when the filter is exact and returns the part of
// p still to be applied while scanning matches.
func (w *where) page(q string, p domain.Page) (string, []any, domain.Page) {
	args := w.args
	if !w.exact || p.Limit <= 0 {
		return q, args, p
	}
	q += "\nLIMIT ?"
	args = append(args, p.Limit)
	if p.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, p.Offset)
	}
	return q, args, domain.Page{Limit: p.Limit}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// likePattern builds a case-folded substring pattern escaped for ESCAPE '!'.
func likePattern(q string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

const verifiedSet = "('Y','YES','TRUE','1')"

// reviewWhere pushes down the criteria over plain text columns. Numeric
// criteria over loosely typed text stay with report.MatchReview.
func reviewWhere(d Dialect, f domain.ReviewFilter) *where {
	w := newWhere(d)
	if f.Category != nil {
		w.foldContains(*f.Category, "product_category")
	}
	if f.Sentiment != nil {
		w.foldContains(*f.Sentiment, "sentiment_pc")
	}
	if f.ProductID != nil {
		// mysql compares with trailing-space padding
		w.add("product_id = ?", *f.ProductID)
		w.exact = w.exact && d.Name != MySQL.Name
	}
	if f.Verified != nil {
		w.exact = false
		na := d.hasNonASCII("verified_purchase")
		if *f.Verified {
			w.add("(UPPER(verified_purchase) LIKE '%Y%' OR UPPER(verified_purchase) LIKE '%TRUE%' OR verified_purchase LIKE '%1%' OR " + na + ")")
		} else {
			w.add("(UPPER(verified_purchase) NOT IN " + verifiedSet + " OR " + na + ")")
		}
	}
	if f.Query != nil {
		w.foldContains(*f.Query, "product_title", "review_headline", "review_body")
	}
	if f.MinRating != nil || f.Year != nil || f.Month != nil || f.TrendingOnly {
		w.exact = false
	}
	return w
}

func productWhere(d Dialect, f domain.ProductFilter) *where {
	w := newWhere(d)
	if f.Category != nil {
		w.foldContains(*f.Category, "category")
	}
	if f.Source != nil {
		w.foldContains(*f.Source, "source")
	}
	if f.MinPrice != nil {
		w.add("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		w.add("price <= ?", *f.MaxPrice)
	}
	if f.MinRating != nil {
		w.add("rating >= ?", *f.MinRating)
	}
	if f.TrendingOnly {
		w.add("reviews_count > ?", f.TrendingThreshold)
	}
	if f.Query != nil {
		w.foldContains(*f.Query, "title", "COALESCE(brand, '')")
	}
	return w
}

type scanner interface {
	Scan(dest ...any) error
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func scanReview(s scanner) (domain.Review, error) {
	var rv domain.Review
	var rating, helpful, total, year, month, day, sentiment sql.NullString
	if err := s.Scan(
		&rv.ReviewID, &rv.Seq, &rv.Marketplace, &rv.CustomerID, &rv.ProductID, &rv.ProductParent,
		&rv.ProductTitle, &rv.ProductCategory, &rating, &helpful, &total, &rv.Vine,
		&rv.Verified, &rv.Headline, &rv.Body, &rv.ReviewDate, &year,
		&month, &day, &sentiment,
	); err != nil {
		return domain.Review{}, err
	}
	rv.StarRating = nullStr(rating)
	rv.HelpfulVotes = nullStr(helpful)
	rv.TotalVotes = nullStr(total)
	rv.ReviewYear = nullStr(year)
	rv.ReviewMonth = nullStr(month)
	rv.ReviewDay = nullStr(day)
	rv.Sentiment = nullStr(sentiment)
	return rv, nil
}

func (r *Repo) SelectReviews(ctx context.Context, f domain.ReviewFilter, p domain.Page) ([]domain.Review, error) {
	w := reviewWhere(r.d, f)
	q, args, rest := w.page(selectReviewsSQL+w.clause()+"\nORDER BY seq", p)

	rows, err := r.db.QueryContext(ctx, r.d.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Review, 0)
	skip := rest.Offset
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		if !report.MatchReview(f, rv) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, rv)
		if rest.Limit > 0 && len(out) == rest.Limit {
			break
		}
	}
	return out, rows.Err()
}

func (r *Repo) GetReview(ctx context.Context, id string) (domain.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, r.d.rebind(getReviewSQL), id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrNotFound
	}
	return rv, err
}

// nullTime accepts whatever the driver hands back for a timestamp column:
// time.Time (mysql with parseTime, pq) or text (sqlite).
type nullTime struct{ t *time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (n *nullTime) Scan(v any) error {
	var s string
	switch x := v.(type) {
	case nil:
		n.t = nil
		return nil
	case time.Time:
		t := x.UTC()
		n.t = &t
		return nil
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return fmt.Errorf("unsupported time value %T", v)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			n.t = &t
			return nil
		}
	}
	return fmt.Errorf("unparsable time %q", s)
}

func scanProduct(s scanner) (domain.Product, error) {
	var p domain.Product
	var source string
	var brand, category, currency, variation, image sql.NullString
	var price, rating sql.NullFloat64
	var reviews sql.NullInt64
	var available sql.NullBool
	var updated nullTime
	if err := s.Scan(
		&p.ID, &source, &p.ProductID, &p.Title, &brand, &category, &price, &currency,
		&rating, &reviews, &available, &variation, &image, &updated,
	); err != nil {
		return domain.Product{}, err
	}
	if source != "" {
		p.Source = &source
	}
	p.Brand = nullStr(brand)
	p.Category = nullStr(category)
	p.Currency = nullStr(currency)
	p.ImageURL = nullStr(image)
	if price.Valid {
		f := price.Float64
		p.Price = &f
	}
	if rating.Valid {
		f := rating.Float64
		p.Rating = &f
	}
	if reviews.Valid {
		n := int(reviews.Int64)
		p.Reviews = &n
	}
	if available.Valid {
		b := available.Bool
		p.Available = &b
	}
	if variation.Valid {
		p.Variation = []byte(variation.String)
	}
	p.LastUpdated = updated.t
	return p, nil
}

func (r *Repo) SelectProducts(ctx context.Context, f domain.ProductFilter, p domain.Page) ([]domain.Product, error) {
	w := productWhere(r.d, f)
	q, args, rest := w.page(selectProductsSQL+w.clause()+"\nORDER BY id", p)

	rows, err := r.db.QueryContext(ctx, r.d.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Product, 0)
	skip := rest.Offset
	for rows.Next() {
		pr, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		if !report.MatchProduct(f, pr) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, pr)
		if rest.Limit > 0 && len(out) == rest.Limit {
			break
		}
	}
	return out, rows.Err()
}

/********** writes **********/

// InsertReviews returns the number of rows actually inserted; rows whose
// review_id already exists are left untouched.
func (r *Repo) InsertReviews(ctx context.Context, rs []domain.Review) (int64, error) {
	if len(rs) == 0 {
		return 0, nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*20)
	for _, rv := range rs {
		values = append(values, reviewParams)
		args = append(args,
			rv.ReviewID, rv.Seq, rv.Marketplace, rv.CustomerID, rv.ProductID, rv.ProductParent,
			rv.ProductTitle, rv.ProductCategory, valStr(rv.StarRating), valStr(rv.HelpfulVotes), valStr(rv.TotalVotes), rv.Vine,
			rv.Verified, rv.Headline, rv.Body, rv.ReviewDate, valStr(rv.ReviewYear),
			valStr(rv.ReviewMonth), valStr(rv.ReviewDay), valStr(rv.Sentiment),
		)
	}
	q := insertReviewsPrefix + strings.Join(values, ",") + r.d.reviewsOnDup
	res, err := r.db.ExecContext(ctx, r.d.rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) UpsertProducts(ctx context.Context, ps []domain.Product) error {
	if len(ps) == 0 {
		return nil
	}
	ps = lastPerKey(ps)
	values := make([]string, 0, len(ps))
	args := make([]any, 0, len(ps)*13)
	for _, p := range ps {
		source := ""
		if p.Source != nil {
			source = *p.Source
		}
		values = append(values, productParams)
		args = append(args,
			source, p.ProductID, p.Title, valStr(p.Brand), valStr(p.Category),
			valF64(p.Price), valStr(p.Currency), valF64(p.Rating), valInt(p.Reviews),
			valBool(p.Available), valJSON(p.Variation), valStr(p.ImageURL), valTime(p.LastUpdated),
		)
	}
	q := upsertProductsPrefix + strings.Join(values, ",") + r.d.productsOnDup
	_, err := r.db.ExecContext(ctx, r.d.rebind(q), args...)
	return err
}

// lastPerKey keeps the last occurrence of each (source, product_id) while
// preserving first-seen order; postgres rejects a statement that updates the
// same row twice.
func lastPerKey(ps []domain.Product) []domain.Product {
	type key struct{ source, id string }
	pos := make(map[key]int, len(ps))
	out := make([]domain.Product, 0, len(ps))
	for _, p := range ps {
		k := key{id: p.ProductID}
		if p.Source != nil {
			k.source = *p.Source
		}
		if i, ok := pos[k]; ok {
			out[i] = p
			continue
		}
		pos[k] = len(out)
		out = append(out, p)
	}
	return out
}
