package domain

// Review is one row of the bulk-imported review dataset. Nominally numeric
// fields are kept as the raw stored text; nil means NULL.
type Review struct {
	ReviewID        string
	Seq             int64 // import order
	Marketplace     string
	CustomerID      string
	ProductID       string
	ProductParent   string
	ProductTitle    string
	ProductCategory string
	StarRating      *string
	HelpfulVotes    *string
	TotalVotes      *string
	Vine            string
	Verified        string // Y/N style
	Headline        string
	Body            string
	ReviewDate      string
	ReviewYear      *string
	ReviewMonth     *string
	ReviewDay       *string
	Sentiment       *string
}
