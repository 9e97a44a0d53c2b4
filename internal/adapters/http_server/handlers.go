package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"trendsensei/internal/app"
	"trendsensei/internal/domain"
)

const defaultTopN = 10

type Handlers struct {
	R  *app.ReportService
	AI *app.AssistantService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))

		r.Get("/v1/reviews", h.listReviews)
		r.Get("/v1/reviews/search/{query}", h.searchReviews)
		r.Get("/v1/reviews/statistics", h.summary)
		r.Get("/v1/reviews/sentiment", h.sentiment)
		r.Get("/v1/reviews/ratings", h.ratings)
		r.Get("/v1/reviews/categories", h.categories)
		r.Get("/v1/reviews/trending", h.trending)
		r.Get("/v1/reviews/trends/monthly", h.monthly)
		r.Get("/v1/reviews/helpful", h.helpful)
		r.Get("/v1/reviews/verification", h.verification)
		r.Get("/v1/reviews/{id}", h.getReview)

		r.Get("/v1/products", h.listProducts)
		r.Get("/v1/products/categories", h.productCategories)
		r.Get("/v1/products/by-title/{title}", h.productDetail)
		r.Get("/v1/products/{product_id}/sentiment", h.productSentiment)

		r.Get("/v1/top", h.top)
		r.Get("/v1/analytics/summary", h.summary)
	})

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(s.opts.AITimeout))
		r.Post("/v1/ai/query", h.aiQuery)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	p := problem{Type: "about:blank", Title: title, Status: status, Detail: detail}
	if status == http.StatusBadRequest {
		p.Error = title
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses; anything unexpected
// is logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSource):
		writeProblem(w, http.StatusBadRequest, "Invalid source", "source must be one of reviews, amazon_reviews, products")
	case errors.Is(err, domain.ErrInvalidFilter):
		writeProblem(w, http.StatusBadRequest, "Invalid filter", err.Error())
	case errors.Is(err, domain.ErrEmptyQuestion):
		writeProblem(w, http.StatusBadRequest, "Invalid question", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, domain.ErrNoGenerator):
		writeProblem(w, http.StatusServiceUnavailable, "Text generation unavailable", "")
	case errors.Is(err, domain.ErrUpstream):
		log.Warn().Err(err).Str("route", routeOf(r)).Msg("text generation failed")
		writeProblem(w, http.StatusBadGateway, "Text generation failed", "")
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Timeout", "")
	default:
		log.Error().Err(err).Str("route", routeOf(r)).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeJSON sends v with a weak ETag, answering 304 when the client already
// holds this version.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("route", routeOf(r)).Msg("failed to write body")
	}
}

func respond[T any](w http.ResponseWriter, r *http.Request, v T, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, v)
}

// reviewQuery validates the query string against the review filter keys
// plus extra, and parses the filter.
func reviewQuery(r *http.Request, extra ...string) (url.Values, domain.ReviewFilter, error) {
	q := r.URL.Query()
	if err := checkKeys(q, reviewKeys, extra); err != nil {
		return q, domain.ReviewFilter{}, err
	}
	f, err := reviewFilter(q)
	return q, f, err
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	q, f, err := reviewQuery(r, pageKeys...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := pageParam(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.Reviews(r.Context(), f, p)
	respond(w, r, out, err)
}

func (h *Handlers) searchReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keys := append([]string(nil), pageKeys...)
	for _, k := range reviewKeys {
		if k != "q" {
			keys = append(keys, k)
		}
	}
	if err := checkKeys(q, keys); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := reviewFilter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	term := chi.URLParam(r, "query")
	f.Query = &term
	p, err := pageParam(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.Reviews(r.Context(), f, p)
	respond(w, r, out, err)
}

func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	if err := checkKeys(r.URL.Query()); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.Review(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, out, err)
}

func (h *Handlers) summary(w http.ResponseWriter, r *http.Request) {
	_, f, err := reviewQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.Summary(r.Context(), f)
	respond(w, r, out, err)
}

func (h *Handlers) sentiment(w http.ResponseWriter, r *http.Request) {
	_, f, err := reviewQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.SentimentDistribution(r.Context(), f)
	respond(w, r, out, err)
}

func (h *Handlers) ratings(w http.ResponseWriter, r *http.Request) {
	_, f, err := reviewQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.RatingDistribution(r.Context(), f)
	respond(w, r, out, err)
}

func (h *Handlers) categories(w http.ResponseWriter, r *http.Request) {
	_, f, err := reviewQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.CategoryStats(r.Context(), f)
	respond(w, r, out, err)
}

func (h *Handlers) trending(w http.ResponseWriter, r *http.Request) {
	q, f, err := reviewQuery(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := limitParam(q, "limit", defaultTopN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.TrendingProducts(r.Context(), f, n)
	respond(w, r, out, err)
}

func (h *Handlers) monthly(w http.ResponseWriter, r *http.Request) {
	_, f, err := reviewQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.MonthlyTrend(r.Context(), f)
	respond(w, r, out, err)
}

func (h *Handlers) helpful(w http.ResponseWriter, r *http.Request) {
	q, f, err := reviewQuery(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := limitParam(q, "limit", defaultTopN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.HelpfulReviews(r.Context(), f, n)
	respond(w, r, out, err)
}

func (h *Handlers) verification(w http.ResponseWriter, r *http.Request) {
	_, f, err := reviewQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.VerificationRate(r.Context(), f)
	respond(w, r, out, err)
}

func (h *Handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := checkKeys(q, productKeys, pageKeys); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := productFilter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := pageParam(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.Products(r.Context(), f, p)
	respond(w, r, out, err)
}

func (h *Handlers) productCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := checkKeys(q, productKeys); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := productFilter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.ProductCategoryStats(r.Context(), f)
	respond(w, r, out, err)
}

func (h *Handlers) productDetail(w http.ResponseWriter, r *http.Request) {
	if err := checkKeys(r.URL.Query()); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.ProductDetail(r.Context(), chi.URLParam(r, "title"))
	respond(w, r, out, err)
}

func (h *Handlers) productSentiment(w http.ResponseWriter, r *http.Request) {
	if err := checkKeys(r.URL.Query()); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.R.ProductSentiment(r.Context(), chi.URLParam(r, "product_id"))
	respond(w, r, out, err)
}

func (h *Handlers) top(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := checkKeys(q, []string{"source", "n"}); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := limitParam(q, "n", defaultTopN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	source := q.Get("source")
	if source == "" {
		source = string(app.SourceReviews)
	}
	out, err := h.R.Top(r.Context(), source, n)
	respond(w, r, out, err)
}

func (h *Handlers) aiQuery(w http.ResponseWriter, r *http.Request) {
	var in app.AIQuery
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if in.Limit < 0 {
		writeError(w, r, invalid("limit must be positive"))
		return
	}

	start := time.Now()
	out, err := h.AI.Ask(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().
		Str("source", string(out.Source)).
		Int("records", out.Records).
		Dur("duration", time.Since(start)).
		Msg("ai query answered")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Error().Err(err).Msg("failed to write ai answer")
	}
}
