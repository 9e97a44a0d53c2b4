package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"trendsensei/internal/app"
	"trendsensei/internal/domain"
	"trendsensei/internal/storage/memory"
)

// Header as found in the enriched export: mixed case sentiment column and
// per-star count columns that are not part of the review record.
const exportCSV = `marketplace,customer_id,review_id,product_id,product_parent,product_title,product_category,star_rating,helpful_votes,total_votes,vine,verified_purchase,review_headline,review_body,review_date,review_year,review_month,review_day,Sentiment_pc,1 rating,2 ratings
US,100,R1,P1,900,Gaming Mouse,PC,5,2,3,N,Y,Great,"Clicky, fast",2015-08-31,2015,8,31,positive,0,0
US,101,R2,P2,901,USB Hub,PC,1,0,0,N,N,Bad,Died,2015-08-30,2015,8,30,negative,1,0
US,102,R3,P1,900,Gaming Mouse,PC,,,,N,Y,Ok,Fine,2015-08-29,2015,8,29,,0,0
US,103,R4,P3,902,Desk Lamp,Home,4,1,1,N,Y,Nice,Bright,2015-07-01,2015,July,1,positive,0,0
US,104,R5,P3,902,Desk Lamp,Home,3,0,0,N,N,Meh,Dim,2015-07-02,2015,7,2,neutral,0,0
`

func TestReadReviews_MapsHeaderDrift(t *testing.T) {
	rs, err := app.ReadReviews(strings.NewReader(exportCSV), nil)
	if err != nil {
		t.Fatalf("ReadReviews: %v", err)
	}
	if len(rs) != 5 {
		t.Fatalf("len = %d", len(rs))
	}
	want := domain.Review{
		ReviewID: "R1", Seq: 1, Marketplace: "US", CustomerID: "100", ProductID: "P1", ProductParent: "900",
		ProductTitle: "Gaming Mouse", ProductCategory: "PC", StarRating: ptr("5"), HelpfulVotes: ptr("2"),
		TotalVotes: ptr("3"), Vine: "N", Verified: "Y", Headline: "Great", Body: "Clicky, fast",
		ReviewDate: "2015-08-31", ReviewYear: ptr("2015"), ReviewMonth: ptr("8"), ReviewDay: ptr("31"),
		Sentiment: ptr("positive"),
	}
	if diff := cmp.Diff(want, rs[0]); diff != "" {
		t.Fatalf("first row (-want +got):\n%s", diff)
	}
	if rs[2].StarRating != nil || rs[2].Sentiment != nil {
		t.Fatalf("empty cells should map to nil: %+v", rs[2])
	}
	if rs[4].Seq != 5 {
		t.Fatalf("seq = %d, want 5", rs[4].Seq)
	}
}

func TestReadReviews_SynthesizesStableIDs(t *testing.T) {
	const csv = "product_id,review_headline,review_body\nP1,Great,Loved it\nP1,Great,Loved it too\n"
	a, err := app.ReadReviews(strings.NewReader(csv), nil)
	if err != nil {
		t.Fatalf("ReadReviews: %v", err)
	}
	b, _ := app.ReadReviews(strings.NewReader(csv), nil)
	if a[0].ReviewID == "" || a[0].ReviewID != b[0].ReviewID {
		t.Fatalf("ids not stable: %q vs %q", a[0].ReviewID, b[0].ReviewID)
	}
	if a[0].ReviewID == a[1].ReviewID {
		t.Fatalf("distinct rows share an id")
	}
}

func TestReadReviews_RequiresProductColumn(t *testing.T) {
	if _, err := app.ReadReviews(strings.NewReader("review_id,star_rating\nR1,5\n"), nil); err == nil {
		t.Fatalf("expected error for export without product_id")
	}
}

func TestLoadAliases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aliases.yaml")
	if err := os.WriteFile(path, []byte("star_rating: [stars_given]\nsentiment: [label]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	aliases, err := app.LoadAliases(path)
	if err != nil {
		t.Fatalf("LoadAliases: %v", err)
	}
	rs, err := app.ReadReviews(strings.NewReader("asin,stars_given,label\nP9,4,positive\n"), aliases)
	if err != nil {
		t.Fatalf("ReadReviews: %v", err)
	}
	if rs[0].ProductID != "P9" || *rs[0].StarRating != "4" || *rs[0].Sentiment != "positive" {
		t.Fatalf("override not applied: %+v", rs[0])
	}

	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("colour: [x]\n"), 0o600)
	if _, err := app.LoadAliases(bad); err == nil {
		t.Fatalf("unknown field accepted")
	}
}

func TestImportReviews_BatchesConcurrently(t *testing.T) {
	store := memory.New()
	svc := app.NewImportService(store, app.ImportConfig{Workers: 3, BatchSize: 2})

	stats, err := svc.ImportReviews(context.Background(), strings.NewReader(exportCSV), nil)
	if err != nil {
		t.Fatalf("ImportReviews: %v", err)
	}
	if diff := cmp.Diff(app.ImportStats{Rows: 5, Inserted: 5, Batches: 3}, stats); diff != "" {
		t.Fatalf("stats (-want +got):\n%s", diff)
	}

	rs, _ := store.SelectReviews(context.Background(), domain.ReviewFilter{}, domain.Page{})
	var got []string
	for _, r := range rs {
		got = append(got, r.ReviewID)
	}
	if diff := cmp.Diff([]string{"R1", "R2", "R3", "R4", "R5"}, got); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}

	// re-import is idempotent
	stats, err = svc.ImportReviews(context.Background(), strings.NewReader(exportCSV), nil)
	if err != nil || stats.Inserted != 0 {
		t.Fatalf("re-import: %+v %v", stats, err)
	}
}

type failingWriter struct {
	mu    sync.Mutex
	calls int
}

func (w *failingWriter) InsertReviews(ctx context.Context, rs []domain.Review) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return 0, errors.New("disk full")
}
func (w *failingWriter) UpsertProducts(ctx context.Context, ps []domain.Product) error {
	return errors.New("disk full")
}

func TestImportReviews_WriterErrorStopsImport(t *testing.T) {
	w := &failingWriter{}
	svc := app.NewImportService(w, app.ImportConfig{Workers: 1, BatchSize: 1})

	_, err := svc.ImportReviews(context.Background(), strings.NewReader(exportCSV), nil)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v, want writer error", err)
	}

	if _, err := svc.ImportProducts(context.Background(), strings.NewReader(`[{"asin":"A1","title":"Lamp"}]`), "amazon"); err == nil {
		t.Fatalf("expected upsert error")
	}
}

func TestImportProducts_SnapshotShapes(t *testing.T) {
	store := memory.New()
	svc := app.NewImportService(store, app.ImportConfig{BatchSize: 2})
	ctx := context.Background()

	snapshot := `{"results": [
	  {"asin": "A1", "title": "Desk Lamp", "brand": "Acme", "price": "₹1,299.00", "rating": 4.4,
	   "reviews_count": "1,204", "in_stock": true, "image": "https://img/a1.jpg",
	   "variation": {"color": "black"}, "last_updated": "2024-05-01T10:00:00Z"},
	  {"asin": "A2", "title": "Keyboard", "price": 45, "source": "flipkart"},
	  {"title": "no id"},
	  "not an object"
	]}`
	n, err := svc.ImportProducts(ctx, strings.NewReader(snapshot), "amazon")
	if err != nil {
		t.Fatalf("ImportProducts: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d, want 2", n)
	}

	ps, _ := store.SelectProducts(ctx, domain.ProductFilter{}, domain.Page{})
	lamp := ps[0]
	if *lamp.Source != "amazon" || *lamp.Price != 1299 || *lamp.Reviews != 1204 || !*lamp.Available {
		t.Fatalf("unexpected lamp: %+v", lamp)
	}
	if string(lamp.Variation) != `{"color":"black"}` || lamp.LastUpdated == nil {
		t.Fatalf("unexpected lamp extras: %+v", lamp)
	}
	if *ps[1].Source != "flipkart" || *ps[1].Price != 45 {
		t.Fatalf("unexpected keyboard: %+v", ps[1])
	}

	if _, err := svc.ImportProducts(ctx, strings.NewReader(`{"items": []}`), "amazon"); err == nil {
		t.Fatalf("expected error for snapshot without a product list")
	}
}
