package sqlstore_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"trendsensei/internal/domain"
	"trendsensei/internal/storage/memory"
)

// Text the SQL engine folds or trims differently from Go: non-ASCII letters,
// tabs and newlines around flags and labels, and the Kelvin sign, which Go
// folds to "k".
func mixedReviews() []domain.Review {
	return []domain.Review{
		{ReviewID: "M1", Seq: 1, ProductID: "P1", ProductTitle: "Cahier", ProductCategory: "Électronique",
			Verified: "Y\t", Body: "Parfait pour l'ÉCOLE", Sentiment: pstr("positive\n"), StarRating: pstr("5")},
		{ReviewID: "M2", Seq: 2, ProductID: "P2", ProductTitle: "Stylo", ProductCategory: "électronique",
			Verified: "N", Body: "bof", Sentiment: pstr("Negative"), StarRating: pstr("2")},
		{ReviewID: "M3", Seq: 3, ProductID: "P3", ProductTitle: "\u212Aettle", ProductCategory: "\tHome\t",
			Verified: "yes\n", Body: "boils fast", Sentiment: pstr("POSITIVE"), StarRating: pstr("4")},
		{ReviewID: "M4", Seq: 4, ProductID: "P4", ProductTitle: "Lamp", ProductCategory: "Home",
			Verified: "y", Body: "école du soir", Sentiment: pstr("neutral"), StarRating: pstr("3")},
		{ReviewID: "M5", Seq: 5, ProductID: "P5", ProductTitle: "Kettle", ProductCategory: "home",
			Verified: " 1 ", Body: "ok", StarRating: pstr("x")},
	}
}

func mixedProducts() []domain.Product {
	return []domain.Product{
		{Source: pstr("amazon"), ProductID: "A1", Title: "Cahier", Category: pstr("Électronique"), Brand: pstr("Écrit"), Price: pfloat(3)},
		{Source: pstr("amazon\t"), ProductID: "A2", Title: "Stylo", Category: pstr("\télectronique"), Price: pfloat(2)},
		{Source: pstr("flipkart"), ProductID: "A3", Title: "Kettle", Category: pstr("Home"), Price: pfloat(30)},
		{Source: pstr("AMAZON"), ProductID: "A4", Title: "\u212Aettle", Category: pstr("home "), Brand: pstr("école"), Price: pfloat(25)},
	}
}

func TestSelect_AgreesWithMemoryStore(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t)
	mem := memory.New()
	for _, w := range []domain.RecordWriter{repo, mem} {
		if _, err := w.InsertReviews(ctx, mixedReviews()); err != nil {
			t.Fatalf("InsertReviews: %v", err)
		}
		if err := w.UpsertProducts(ctx, mixedProducts()); err != nil {
			t.Fatalf("UpsertProducts: %v", err)
		}
	}

	reviewCases := []struct {
		name string
		f    domain.ReviewFilter
		p    domain.Page
		want []string
	}{
		{"non-ascii search", domain.ReviewFilter{Query: pstr("école")}, domain.Page{}, []string{"M1", "M4"}},
		{"non-ascii search upper", domain.ReviewFilter{Query: pstr("ÉCOLE")}, domain.Page{}, []string{"M1", "M4"}},
		{"ascii term matches kelvin sign", domain.ReviewFilter{Query: pstr("kettle")}, domain.Page{}, []string{"M3", "M5"}},
		{"non-ascii category", domain.ReviewFilter{Category: pstr("ÉLECTRONIQUE")}, domain.Page{}, []string{"M1", "M2"}},
		{"tab padded category", domain.ReviewFilter{Category: pstr("home")}, domain.Page{}, []string{"M3", "M4", "M5"}},
		{"tab padded category paged", domain.ReviewFilter{Category: pstr("home")}, domain.Page{Limit: 1, Offset: 1}, []string{"M4"}},
		{"newline padded sentiment", domain.ReviewFilter{Sentiment: pstr("positive")}, domain.Page{}, []string{"M1", "M3"}},
		{"whitespace padded verified", domain.ReviewFilter{Verified: pbool(true)}, domain.Page{}, []string{"M1", "M3", "M4", "M5"}},
		{"whitespace padded unverified", domain.ReviewFilter{Verified: pbool(false)}, domain.Page{}, []string{"M2"}},
		{"verified with limit", domain.ReviewFilter{Verified: pbool(true)}, domain.Page{Limit: 2}, []string{"M1", "M3"}},
	}
	for _, tc := range reviewCases {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.f.Normalize()
			fromSQL, err := repo.SelectReviews(ctx, f, tc.p)
			if err != nil {
				t.Fatalf("sqlite: %v", err)
			}
			fromMem, _ := mem.SelectReviews(ctx, f, tc.p)
			if diff := cmp.Diff(tc.want, reviewIDs(fromMem)); diff != "" {
				t.Fatalf("memory ids (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(reviewIDs(fromMem), reviewIDs(fromSQL)); diff != "" {
				t.Fatalf("sqlite differs from memory (-memory +sqlite):\n%s", diff)
			}
		})
	}

	productIDs := func(ps []domain.Product) []string {
		out := make([]string, 0, len(ps))
		for _, p := range ps {
			out = append(out, p.ProductID)
		}
		return out
	}
	productCases := []struct {
		name string
		f    domain.ProductFilter
		p    domain.Page
		want []string
	}{
		{"non-ascii category", domain.ProductFilter{Category: pstr("électronique")}, domain.Page{}, []string{"A1", "A2"}},
		{"non-ascii category limited", domain.ProductFilter{Category: pstr("électronique")}, domain.Page{Limit: 1, Offset: 1}, []string{"A2"}},
		{"padded source", domain.ProductFilter{Source: pstr("amazon")}, domain.Page{}, []string{"A1", "A2", "A4"}},
		{"brand search non-ascii", domain.ProductFilter{Query: pstr("ÉCOLE")}, domain.Page{}, []string{"A4"}},
		{"title search kelvin", domain.ProductFilter{Query: pstr("KETTLE")}, domain.Page{Limit: 5}, []string{"A3", "A4"}},
		{"category and price", domain.ProductFilter{Category: pstr("home"), MaxPrice: pfloat(26)}, domain.Page{Limit: 1}, []string{"A4"}},
	}
	for _, tc := range productCases {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.f.Normalize()
			fromSQL, err := repo.SelectProducts(ctx, f, tc.p)
			if err != nil {
				t.Fatalf("sqlite: %v", err)
			}
			fromMem, _ := mem.SelectProducts(ctx, f, tc.p)
			if diff := cmp.Diff(tc.want, productIDs(fromMem)); diff != "" {
				t.Fatalf("memory ids (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(productIDs(fromMem), productIDs(fromSQL)); diff != "" {
				t.Fatalf("sqlite differs from memory (-memory +sqlite):\n%s", diff)
			}
		})
	}
}
