package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	server "trendsensei/internal/adapters/http_server"
	"trendsensei/internal/app"
	"trendsensei/internal/domain"
	"trendsensei/internal/storage/memory"
)

func ptr[T any](v T) *T { return &v }

type stubGen struct {
	reply string
	err   error
}

func (g stubGen) Generate(ctx context.Context, prompt string) (string, error) { return g.reply, g.err }

func seed(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	var rs []domain.Review
	seq := int64(0)
	add := func(pid string, n int, r domain.Review) {
		for i := 0; i < n; i++ {
			seq++
			r.ReviewID = fmt.Sprintf("%s-%d", pid, i)
			r.Seq = seq
			r.ProductID = pid
			r.ProductTitle = "Title " + pid
			rs = append(rs, r)
		}
	}
	add("P1", 5, domain.Review{ProductCategory: "PC", StarRating: ptr("5"), Verified: "Y", Body: "fast laptop", ReviewYear: ptr("2015"), ReviewMonth: ptr("3"), Sentiment: ptr("positive"), HelpfulVotes: ptr("2")})
	add("P2", 8, domain.Review{ProductCategory: "PC", StarRating: ptr("3"), Verified: "N", Body: "ok", ReviewYear: ptr("2015"), ReviewMonth: ptr("7"), Sentiment: ptr("neutral")})
	add("P3", 8, domain.Review{ProductCategory: "Home", StarRating: ptr("1"), Verified: "Y", Body: "broke", ReviewYear: ptr("2014"), ReviewMonth: ptr("7"), Sentiment: ptr("negative")})
	if _, err := s.InsertReviews(context.Background(), rs); err != nil {
		t.Fatal(err)
	}
	_ = s.UpsertProducts(context.Background(), []domain.Product{
		{Source: ptr("amazon"), ProductID: "A1", Title: "Desk Lamp", Category: ptr("Home"), Price: ptr(20.0), Rating: ptr(4.0), Reviews: ptr(30)},
		{Source: ptr("amazon"), ProductID: "A2", Title: "Keyboard", Category: ptr("PC"), Price: ptr(45.0), Reviews: ptr(300)},
	})
	return s
}

func newServer(t *testing.T, s domain.RecordStore, gen domain.Generator) *httptest.Server {
	t.Helper()
	reports := app.NewReportService(s, app.ReportConfig{MaxPageSize: 100, DefaultPageSize: 50, TrendingThreshold: 1000})
	srv := server.New(server.Options{RequestTimeout: 5 * time.Second})
	srv.MountHandlers(&server.Handlers{R: reports, AI: app.NewAssistantService(reports, gen, nil, time.Minute)})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string, hdr ...string) (*http.Response, []byte) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

type problemBody struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func TestHealthz(t *testing.T) {
	ts := newServer(t, memory.New(), nil)
	resp, body := get(t, ts.URL+"/healthz")
	if resp.StatusCode != 200 || string(body) != "ok" {
		t.Fatalf("healthz: %d %q", resp.StatusCode, body)
	}
}

func TestListReviews_LimitAndFilters(t *testing.T) {
	ts := newServer(t, seed(t), nil)

	resp, body := get(t, ts.URL+"/v1/reviews?limit=2")
	if resp.StatusCode != 200 {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0]["review_id"] != "P1-0" || rows[0]["rating"] != 5.0 || rows[0]["verified"] != true {
		t.Fatalf("unexpected rows: %v", rows)
	}

	_, body = get(t, ts.URL+"/v1/reviews?category=all%20categories&month=March&year=2015")
	rows = nil
	_ = json.Unmarshal(body, &rows)
	if len(rows) != 5 {
		t.Fatalf("month name filter: %d rows", len(rows))
	}

	_, body = get(t, ts.URL+"/v1/reviews/search/LAPTOP?limit=3")
	rows = nil
	_ = json.Unmarshal(body, &rows)
	if len(rows) != 3 || rows[2]["product_id"] != "P1" {
		t.Fatalf("search: %v", rows)
	}
}

func TestBadParameters(t *testing.T) {
	ts := newServer(t, seed(t), nil)
	cases := []struct {
		path, title string
	}{
		{"/v1/reviews?colour=red", "Invalid filter"},
		{"/v1/reviews?min_rating=high", "Invalid filter"},
		{"/v1/reviews?limit=-1", "Invalid filter"},
		{"/v1/reviews?offset=-2", "Invalid filter"},
		{"/v1/reviews?offset=two", "Invalid filter"},
		{"/v1/products?offset=-1", "Invalid filter"},
		{"/v1/reviews/P2-3?limit=1", "Invalid filter"},
		{"/v1/products/by-title/Desk%20Lamp?colour=red", "Invalid filter"},
		{"/v1/products/P1/sentiment?year=2015", "Invalid filter"},
		{"/v1/reviews/sentiment?month=Smarch", "Invalid filter"},
		{"/v1/products?min_price=50&max_price=10", "Invalid filter"},
		{"/v1/top?source=users", "Invalid source"},
	}
	for _, tc := range cases {
		resp, body := get(t, ts.URL+tc.path)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status %d", tc.path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
			t.Fatalf("%s: content type %q", tc.path, ct)
		}
		var p problemBody
		_ = json.Unmarshal(body, &p)
		if p.Title != tc.title || p.Error != tc.title || p.Status != 400 {
			t.Fatalf("%s: problem %+v", tc.path, p)
		}
	}
}

func TestListing_Offset(t *testing.T) {
	ts := newServer(t, seed(t), nil)

	resp, body := get(t, ts.URL+"/v1/reviews?limit=2&offset=4")
	if resp.StatusCode != 200 {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var rows []map[string]any
	_ = json.Unmarshal(body, &rows)
	if len(rows) != 2 || rows[0]["review_id"] != "P1-4" || rows[1]["review_id"] != "P2-0" {
		t.Fatalf("offset window: %v", rows)
	}

	// offset counts matching rows, not stored rows
	_, body = get(t, ts.URL+"/v1/reviews?category=Home&limit=1&offset=3")
	rows = nil
	_ = json.Unmarshal(body, &rows)
	if len(rows) != 1 || rows[0]["review_id"] != "P3-3" {
		t.Fatalf("filtered offset: %v", rows)
	}

	_, body = get(t, ts.URL+"/v1/reviews/search/broke?offset=7")
	rows = nil
	_ = json.Unmarshal(body, &rows)
	if len(rows) != 1 || rows[0]["review_id"] != "P3-7" {
		t.Fatalf("search offset: %v", rows)
	}

	_, body = get(t, ts.URL+"/v1/reviews?offset=100")
	if strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("offset past the end: %s", body)
	}

	resp, body = get(t, ts.URL+"/v1/products?offset=1")
	if resp.StatusCode != 200 || strings.Contains(string(body), `"A1"`) || !strings.Contains(string(body), `"A2"`) {
		t.Fatalf("products offset: %d %s", resp.StatusCode, body)
	}
}

func TestGetReview_NotFound(t *testing.T) {
	ts := newServer(t, seed(t), nil)
	resp, _ := get(t, ts.URL+"/v1/reviews/P9-0")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", resp.StatusCode)
	}
	resp, body := get(t, ts.URL+"/v1/reviews/P2-3")
	if resp.StatusCode != 200 || !strings.Contains(string(body), `"review_id":"P2-3"`) {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
}

func TestTop_AndETag(t *testing.T) {
	ts := newServer(t, seed(t), nil)

	resp, body := get(t, ts.URL+"/v1/top?source=reviews&n=2")
	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var ranks []struct {
		ProductID   string `json:"product_id"`
		ReviewCount int    `json:"review_count"`
	}
	_ = json.Unmarshal(body, &ranks)
	if len(ranks) != 2 || ranks[0].ProductID != "P2" || ranks[1].ProductID != "P3" {
		t.Fatalf("unexpected ranking: %+v", ranks)
	}

	etag := resp.Header.Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("missing weak etag: %q", etag)
	}
	resp, _ = get(t, ts.URL+"/v1/top?source=reviews&n=2", "If-None-Match", etag)
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("status %d, want 304", resp.StatusCode)
	}

	_, body = get(t, ts.URL+"/v1/top?source=products")
	if !strings.HasPrefix(string(body), `[{"product_id":"A2"`) {
		t.Fatalf("products ranking: %s", body)
	}
}

func TestAggregates(t *testing.T) {
	ts := newServer(t, seed(t), nil)

	_, body := get(t, ts.URL+"/v1/reviews/statistics")
	var sum map[string]float64
	_ = json.Unmarshal(body, &sum)
	want := map[string]float64{"total_reviews": 21, "avg_rating": 2.71, "total_products": 3, "total_categories": 2, "verification_rate": 61.9}
	if diff := cmp.Diff(want, sum); diff != "" {
		t.Fatalf("summary (-want +got):\n%s", diff)
	}

	_, body = get(t, ts.URL+"/v1/reviews/trends/monthly?year=2015")
	if string(body) != `[{"year":2015,"month":3,"review_count":5,"avg_rating":5},{"year":2015,"month":7,"review_count":8,"avg_rating":3}]` {
		t.Fatalf("monthly: %s", body)
	}

	_, body = get(t, ts.URL+"/v1/products/A1/sentiment")
	if string(body) != "[]" {
		t.Fatalf("unknown product sentiment should be empty list, got %s", body)
	}

	_, body = get(t, ts.URL+"/v1/products/by-title/desk%20lamp")
	if !strings.Contains(string(body), `"product_name":"desk lamp"`) || !strings.Contains(string(body), `"avg_price":20`) {
		t.Fatalf("detail: %s", body)
	}

	resp, _ := get(t, ts.URL+"/v1/reviews/verification?trending=true")
	if resp.StatusCode != 200 {
		t.Fatalf("verification status %d", resp.StatusCode)
	}
}

func TestEmptyStoreReturnsEmptyShapes(t *testing.T) {
	ts := newServer(t, memory.New(), nil)
	for _, p := range []string{"/v1/reviews", "/v1/reviews/sentiment", "/v1/reviews/ratings", "/v1/reviews/trending", "/v1/products/categories"} {
		_, body := get(t, ts.URL+p)
		if string(body) != "[]" {
			t.Fatalf("%s: %s", p, body)
		}
	}
	_, body := get(t, ts.URL+"/v1/analytics/summary")
	if string(body) != `{"total_reviews":0,"avg_rating":0,"total_products":0,"total_categories":0,"verification_rate":0}` {
		t.Fatalf("summary: %s", body)
	}
}

func postAI(t *testing.T, url, body string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(url+"/v1/ai/query", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func TestAIQuery(t *testing.T) {
	ts := newServer(t, seed(t), stubGen{reply: "P2 dominates."})

	code, body := postAI(t, ts.URL, `{"question":"which product is most reviewed?","source":"amazon_reviews","limit":5}`)
	if code != 200 || string(body) != "{\"answer\":\"P2 dominates.\",\"source\":\"reviews\",\"records\":5}\n" {
		t.Fatalf("ai: %d %s", code, body)
	}

	code, body = postAI(t, ts.URL, `{"question":"x","source":"users"}`)
	var p problemBody
	_ = json.Unmarshal(body, &p)
	if code != 400 || p.Error != "Invalid source" {
		t.Fatalf("invalid source: %d %s", code, body)
	}

	if code, _ = postAI(t, ts.URL, `{"question":""}`); code != 400 {
		t.Fatalf("empty question: %d", code)
	}
	if code, _ = postAI(t, ts.URL, `{"prompt":"x"}`); code != 400 {
		t.Fatalf("unknown field: %d", code)
	}

	failing := newServer(t, seed(t), stubGen{err: errors.New("boom")})
	if code, _ = postAI(t, failing.URL, `{"question":"x"}`); code != http.StatusBadGateway {
		t.Fatalf("generator failure: %d", code)
	}
	none := newServer(t, seed(t), nil)
	if code, _ = postAI(t, none.URL, `{"question":"x"}`); code != http.StatusServiceUnavailable {
		t.Fatalf("no generator: %d", code)
	}
}
