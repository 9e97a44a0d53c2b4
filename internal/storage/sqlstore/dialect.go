package sqlstore

import (
	"embed"
	"fmt"
	"strconv"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Dialect carries the per-engine differences: driver name, placeholder style
// and conflict clauses. Everything else is shared SQL.
type Dialect struct {
	Name   string
	Driver string

	dollar        bool
	reviewsOnDup  string
	productsOnDup string
	// nonASCII is a format for a condition true when the %[1]s column holds
	// any non-ASCII character (character length differs from byte length).
	nonASCII string
}

var (
	MySQL = Dialect{
		Name: "mysql", Driver: "mysql",
		reviewsOnDup:  insertReviewsOnDupMySQL,
		productsOnDup: upsertProductsOnDupMySQL,
		nonASCII:      "CHAR_LENGTH(%[1]s) <> LENGTH(%[1]s)",
	}
	Postgres = Dialect{
		Name: "postgres", Driver: "postgres", dollar: true,
		reviewsOnDup:  insertReviewsOnConflictStd,
		productsOnDup: upsertProductsOnConflictStd,
		nonASCII:      "CHAR_LENGTH(%[1]s) <> OCTET_LENGTH(%[1]s)",
	}
	SQLite = Dialect{
		Name: "sqlite", Driver: "sqlite",
		reviewsOnDup:  insertReviewsOnConflictStd,
		productsOnDup: upsertProductsOnConflictStd,
		nonASCII:      "LENGTH(%[1]s) <> LENGTH(CAST(%[1]s AS BLOB))",
	}
)

func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unknown store driver %q", name)
}

// Schema returns the DDL statements for the dialect, in order.
func (d Dialect) Schema() ([]string, error) {
	b, err := schemaFS.ReadFile("schema/" + d.Name + ".sql")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, stmt := range strings.Split(string(b), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (d Dialect) hasNonASCII(col string) string {
	return fmt.Sprintf(d.nonASCII, col)
}

// rebind rewrites ? placeholders to $n for postgres. The shared SQL never
// contains a literal question mark.
func (d Dialect) rebind(q string) string {
	if !d.dollar {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 16)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
