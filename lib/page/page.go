// Package page implements the pagination policy shared by adapters and the
// REST surface: lenient clamping of request parameters and the
// overfetch-by-one technique for detecting further pages without a count
// query.
package page

// Pagination defaults. Out-of-range parameters are clamped, not rejected.
const (
	DefaultLimit = 25
	DefaultPage  = 1
	MaxLimit     = 100
)

// Request is a paginated adapter query.
type Request struct {
	Address string
	Page    int // 1-based
	Limit   int
}

// Result is one page of normalized records. Data never exceeds Limit;
// MoreResultsExist is true iff the adapter saw more raw rows than Limit.
type Result[T any] struct {
	Page             int  `json:"page"`
	Limit            int  `json:"limit"`
	MoreResultsExist bool `json:"moreResultsExist"`
	Data             []T  `json:"data"`
}

// Normalize clamps limit and starting page to sane values. A dashboard
// asking for page 0 or a huge page size gets defaults, not an error.
func Normalize(limit, start int) (int, int) {
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}

	if start <= 0 {
		start = DefaultPage
	}

	return limit, start
}

// NormalizeRequest applies Normalize to a Request.
func NormalizeRequest(r Request) Request {
	r.Limit, r.Page = Normalize(r.Limit, r.Page)

	return r
}

// Build assembles a Result from raw rows fetched with the overfetch-by-one
// technique: callers request limit+1 rows; Build truncates to limit and sets
// MoreResultsExist when the extra row was present.
func Build[T any](rows []T, pg, limit int) Result[T] {
	return BuildCounted(rows, len(rows), pg, limit)
}

// BuildCounted assembles a Result for rows that may already have been
// filtered after the fetch. MoreResultsExist comes from rawCount, the number
// of rows the upstream returned, so dropped records cannot hide further
// pages.
func BuildCounted[T any](rows []T, rawCount, pg, limit int) Result[T] {
	if len(rows) > limit {
		rows = rows[:limit]
	}

	if rows == nil {
		rows = []T{}
	}

	return Result[T]{Page: pg, Limit: limit, MoreResultsExist: rawCount > limit, Data: rows}
}
