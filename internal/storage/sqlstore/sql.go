package sqlstore

const reviewColumns = `review_id, seq, marketplace, customer_id, product_id, product_parent,
  product_title, product_category, star_rating, helpful_votes, total_votes, vine,
  verified_purchase, review_headline, review_body, review_date, review_year,
  review_month, review_day, sentiment_pc`

const reviewParams = "(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)"

const insertReviewsPrefix = "INSERT INTO amazon_reviews\n  (" + reviewColumns + ")\nVALUES "

// Reviews are immutable once imported: a duplicate review_id is a no-op and
// does not count as an affected row.
const (
	insertReviewsOnDupMySQL    = " ON DUPLICATE KEY UPDATE review_id = review_id"
	insertReviewsOnConflictStd = " ON CONFLICT (review_id) DO NOTHING"
)

const productColumns = `source, product_id, title, brand, category, price, currency, rating,
  reviews_count, availability, variation, image_url, last_updated`

const productParams = "(?,?,?,?,?,?,?,?,?,?,?,?,COALESCE(?, CURRENT_TIMESTAMP))"

const upsertProductsPrefix = "INSERT INTO products\n  (" + productColumns + ")\nVALUES "

const upsertProductsOnDupMySQL = ` ON DUPLICATE KEY UPDATE
  title         = VALUES(title),
  brand         = COALESCE(VALUES(brand), products.brand),
  category      = COALESCE(VALUES(category), products.category),
  price         = VALUES(price),
  currency      = COALESCE(VALUES(currency), products.currency),
  rating        = VALUES(rating),
  reviews_count = VALUES(reviews_count),
  availability  = VALUES(availability),
  variation     = COALESCE(VALUES(variation), products.variation),
  image_url     = COALESCE(VALUES(image_url), products.image_url),
  last_updated  = VALUES(last_updated)
`

const upsertProductsOnConflictStd = ` ON CONFLICT (source, product_id) DO UPDATE SET
  title         = excluded.title,
  brand         = COALESCE(excluded.brand, products.brand),
  category      = COALESCE(excluded.category, products.category),
  price         = excluded.price,
  currency      = COALESCE(excluded.currency, products.currency),
  rating        = excluded.rating,
  reviews_count = excluded.reviews_count,
  availability  = excluded.availability,
  variation     = COALESCE(excluded.variation, products.variation),
  image_url     = COALESCE(excluded.image_url, products.image_url),
  last_updated  = excluded.last_updated
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const selectReviewsSQL = "SELECT " + reviewColumns + "\nFROM amazon_reviews"

const getReviewSQL = selectReviewsSQL + "\nWHERE review_id = ?"

const selectProductsSQL = `SELECT id, source, product_id, title, brand, category, price, currency,
  rating, reviews_count, availability, variation, image_url, last_updated
FROM products`
