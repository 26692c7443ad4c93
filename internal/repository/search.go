package repository

import (
	"math"
	"strconv"
	"strings"
)

// textSearch describes the columns a free-text search runs over.  All
// substring matches are case-insensitive.
type textSearch struct {
	Columns   []string // substring-matched columns
	FirstName string   // column paired with LastName for "first last" queries
	LastName  string
	Amount    string // exact-match numeric column; empty disables the branch
}

// clause builds a parenthesised OR predicate for search.  It returns an
// empty clause when the trimmed search is empty.
//
// Branches:
//   - every column in Columns contains the search text
//   - Amount equals the search when it parses as a finite number
//   - when the search is exactly two words, FirstName/LastName contain them
//     in either order ("Jane Doe" and "Doe Jane")
func (s textSearch) clause(search string) (string, []any) {
	search = strings.TrimSpace(search)
	if search == "" {
		return "", nil
	}

	var (
		parts []string
		args  []any
	)
	pattern := likePattern(search)
	for _, col := range s.Columns {
		parts = append(parts, likeExpr(col))
		args = append(args, pattern)
	}

	if s.Amount != "" {
		if n, err := strconv.ParseFloat(search, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
			parts = append(parts, s.Amount+" = ?")
			args = append(args, n)
		}
	}

	if s.FirstName != "" && s.LastName != "" {
		if terms := strings.Fields(search); len(terms) == 2 {
			a, b := likePattern(terms[0]), likePattern(terms[1])
			pair := "(" + likeExpr(s.FirstName) + " AND " + likeExpr(s.LastName) + ")"
			parts = append(parts, pair, pair)
			args = append(args, a, b, b, a)
		}
	}

	return "(" + strings.Join(parts, " OR ") + ")", args
}

// likeExpr lowers col so matching does not depend on the column collation.
// '!' is the escape character on every supported dialect.
func likeExpr(col string) string {
	return "LOWER(" + col + ") LIKE ? ESCAPE '!'"
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePattern wraps s for a contains match with LIKE wildcards escaped.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
