package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// QueryBuilder builds one PostgREST request against a table.
type QueryBuilder struct {
	client  *Client
	table   string
	token   string
	columns string
	filters url.Values
	orders  []string
	limit   int
	offset  int
	count   string
}

// From starts a query against table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table, filters: url.Values{}}
}

// WithToken runs the request as the user owning token instead of the anon key.
func (q *QueryBuilder) WithToken(token string) *QueryBuilder {
	q.token = token
	return q
}

// Select specifies columns to select.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	q.filters.Add(column, "eq."+fmt.Sprint(value))
	return q
}

// ILike adds a case-insensitive pattern filter. Use * as the wildcard.
func (q *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	q.filters.Add(column, "ilike."+pattern)
	return q
}

// Or adds a disjunction of raw PostgREST conditions, e.g. "name.ilike.*a*".
func (q *QueryBuilder) Or(conditions ...string) *QueryBuilder {
	q.filters.Add("or", "("+strings.Join(conditions, ",")+")")
	return q
}

// Order adds an ORDER BY clause.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Range selects rows from..to inclusive, both zero-based.
func (q *QueryBuilder) Range(from, to int) *QueryBuilder {
	q.offset = from
	q.limit = to - from + 1
	return q
}

// Limit sets the LIMIT.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// CountExact asks the backend for the exact total row count.
func (q *QueryBuilder) CountExact() *QueryBuilder {
	q.count = "exact"
	return q
}

func (q *QueryBuilder) path() string {
	return "/rest/v1/" + q.table
}

func (q *QueryBuilder) query() url.Values {
	params := url.Values{}
	for k, vs := range q.filters {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	if q.columns != "" {
		params.Set("select", q.columns)
	}
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		params.Set("limit", strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		params.Set("offset", strconv.Itoa(q.offset))
	}
	return params
}

// Execute runs a SELECT.
func (q *QueryBuilder) Execute(ctx context.Context) (*Response, error) {
	req, err := q.client.newRequest(ctx, http.MethodGet, q.path(), q.query(), nil, q.token)
	if err != nil {
		return nil, err
	}
	if q.count != "" {
		req.Header.Set("Prefer", "count="+q.count)
	}
	return q.client.do(req)
}

// Insert runs an INSERT and returns the inserted rows.
func (q *QueryBuilder) Insert(ctx context.Context, data any) (*Response, error) {
	params := url.Values{}
	if q.columns != "" {
		params.Set("select", q.columns)
	}
	req, err := q.client.newRequest(ctx, http.MethodPost, q.path(), params, data, q.token)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.do(req)
}

// Update runs a PATCH against the rows matching the filters and returns them.
func (q *QueryBuilder) Update(ctx context.Context, data any) (*Response, error) {
	if len(q.filters) == 0 {
		return nil, fmt.Errorf("update on %s without filters", q.table)
	}
	req, err := q.client.newRequest(ctx, http.MethodPatch, q.path(), q.query(), data, q.token)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.do(req)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Contains builds a *term* ilike pattern with LIKE metacharacters escaped.
func Contains(term string) string {
	return "*" + likeEscaper.Replace(term) + "*"
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Quote wraps a value for use inside an or=(...) condition when it contains
// PostgREST reserved characters.
func Quote(v string) string {
	if strings.ContainsAny(v, `,.:()" \`) {
		return `"` + quoteEscaper.Replace(v) + `"`
	}
	return v
}
