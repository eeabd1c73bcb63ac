package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
)

var _ gateway.Tables = (*Client)(nil)

func formatValue(v any) string {
	return fmt.Sprint(v)
}

// quoteListValue quotes a value for an in.(...) list so commas and
// parentheses inside it are taken literally.
func quoteListValue(v any) string {
	s := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(formatValue(v))
	return `"` + s + `"`
}

func encodeFilters(query url.Values, filters []gateway.Filter) {
	for _, f := range filters {
		switch f.Op {
		case gateway.OpIn:
			vals := f.Values()
			quoted := make([]string, len(vals))
			for i, v := range vals {
				quoted[i] = quoteListValue(v)
			}
			query.Add(f.Column, "in.("+strings.Join(quoted, ",")+")")
		default:
			if f.Value == nil {
				query.Add(f.Column, "is.null")
				continue
			}
			query.Add(f.Column, "eq."+formatValue(f.Value))
		}
	}
}

func selectQuery(q gateway.Query) url.Values {
	query := url.Values{}
	if len(q.Columns) > 0 {
		query.Set("select", strings.Join(q.Columns, ","))
	} else {
		query.Set("select", "*")
	}
	encodeFilters(query, q.Filters)
	if q.OrderBy != "" {
		query.Set("order", q.OrderBy+".asc")
	}
	return query
}

func (c *Client) Select(ctx context.Context, dest any, q gateway.Query) error {
	if err := q.Validate(); err != nil {
		return gateway.NewError("select", q.Table, gateway.ErrUnknown, err)
	}
	_, err := c.do(ctx, "select", q.Table, request{
		method: http.MethodGet,
		path:   restPrefix + q.Table,
		query:  selectQuery(q),
	}, dest)
	return err
}

// SelectOne asks for a single object; the API answers 406 when no row (or
// more than one) matches.
func (c *Client) SelectOne(ctx context.Context, dest any, q gateway.Query) error {
	if err := q.Validate(); err != nil {
		return gateway.NewError("select one", q.Table, gateway.ErrUnknown, err)
	}
	query := selectQuery(q)
	query.Set("limit", "1")
	_, err := c.do(ctx, "select one", q.Table, request{
		method:  http.MethodGet,
		path:    restPrefix + q.Table,
		query:   query,
		headers: map[string]string{"Accept": mediaSingleObject},
	}, dest)
	return err
}

func (c *Client) Count(ctx context.Context, table string, filters ...gateway.Filter) (int, error) {
	q := gateway.From(table).Where(filters...)
	if err := q.Validate(); err != nil {
		return 0, gateway.NewError("count", table, gateway.ErrUnknown, err)
	}

	resp, err := c.do(ctx, "count", table, request{
		method:  http.MethodHead,
		path:    restPrefix + table,
		query:   selectQuery(q),
		headers: map[string]string{"Prefer": "count=exact"},
	}, nil)
	if err != nil {
		return 0, err
	}

	n, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return 0, gateway.NewError("count", table, gateway.ErrUnknown, err)
	}
	return n, nil
}

// parseContentRange reads the total out of "0-24/25" or "*/0".
func parseContentRange(header string) (int, error) {
	i := strings.LastIndexByte(header, '/')
	if i < 0 {
		return 0, fmt.Errorf("missing total in Content-Range %q", header)
	}
	n, err := strconv.Atoi(header[i+1:])
	if err != nil {
		return 0, fmt.Errorf("invalid total in Content-Range %q: %w", header, err)
	}
	return n, nil
}

func validRow(table string, row gateway.Row) error {
	if !gateway.ValidIdent(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if len(row) == 0 {
		return fmt.Errorf("empty row")
	}
	for col := range row {
		if !gateway.ValidIdent(col) {
			return fmt.Errorf("invalid column name %q", col)
		}
	}
	return nil
}

func (c *Client) Insert(ctx context.Context, table string, row gateway.Row, returning any) error {
	if err := validRow(table, row); err != nil {
		return gateway.NewError("insert", table, gateway.ErrUnknown, err)
	}

	r := request{
		method:  http.MethodPost,
		path:    restPrefix + table,
		body:    row,
		headers: map[string]string{"Prefer": "return=minimal"},
	}
	if returning != nil {
		r.headers = map[string]string{
			"Prefer": "return=representation",
			"Accept": mediaSingleObject,
		}
	}
	_, err := c.do(ctx, "insert", table, r, returning)
	return err
}

func (c *Client) Update(ctx context.Context, table string, values gateway.Row, filters ...gateway.Filter) error {
	if err := validRow(table, values); err != nil {
		return gateway.NewError("update", table, gateway.ErrUnknown, err)
	}
	if err := gateway.From(table).Where(filters...).Validate(); err != nil {
		return gateway.NewError("update", table, gateway.ErrUnknown, err)
	}
	if len(filters) == 0 {
		return gateway.NewError("update", table, gateway.ErrUnknown, fmt.Errorf("refusing to update without filters"))
	}

	query := url.Values{}
	encodeFilters(query, filters)
	query.Set("select", filters[0].Column)

	// representation of the updated rows; none means nothing matched
	var updated []json.RawMessage
	_, err := c.do(ctx, "update", table, request{
		method:  http.MethodPatch,
		path:    restPrefix + table,
		query:   query,
		body:    values,
		headers: map[string]string{"Prefer": "return=representation"},
	}, &updated)
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return gateway.NewError("update", table, gateway.ErrNotFound, fmt.Errorf("no row matches %s", query.Encode()))
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, table string, filters ...gateway.Filter) error {
	if err := gateway.From(table).Where(filters...).Validate(); err != nil {
		return gateway.NewError("delete", table, gateway.ErrUnknown, err)
	}
	if len(filters) == 0 {
		return gateway.NewError("delete", table, gateway.ErrUnknown, fmt.Errorf("refusing to delete without filters"))
	}

	query := url.Values{}
	encodeFilters(query, filters)
	_, err := c.do(ctx, "delete", table, request{
		method: http.MethodDelete,
		path:   restPrefix + table,
		query:  query,
	}, nil)
	return err
}

type insertWithinLimitArgs struct {
	Target      string      `json:"target"`
	Payload     gateway.Row `json:"payload"`
	ScopeColumn string      `json:"scope_column"`
	ScopeValue  string      `json:"scope_value"`
	MaxRows     int         `json:"max_rows"`
}

// InsertWithinLimit calls the insert_within_limit database function, which
// supports a single equality scope.
func (c *Client) InsertWithinLimit(ctx context.Context, table string, row gateway.Row, limit int, scope ...gateway.Filter) error {
	const op = "insert within limit"
	if err := validRow(table, row); err != nil {
		return gateway.NewError(op, table, gateway.ErrUnknown, err)
	}
	if len(scope) != 1 || scope[0].Op != gateway.OpEq || !gateway.ValidIdent(scope[0].Column) {
		return gateway.NewError(op, table, gateway.ErrUnknown, fmt.Errorf("exactly one equality scope is supported"))
	}
	scopeValue, err := gateway.ScopeText(scope[0].Value)
	if err != nil {
		return gateway.NewError(op, table, gateway.ErrUnknown, err)
	}

	var inserted bool
	_, err = c.do(ctx, op, table, request{
		method: http.MethodPost,
		path:   restPrefix + "rpc/insert_within_limit",
		body: insertWithinLimitArgs{
			Target:      table,
			Payload:     row,
			ScopeColumn: scope[0].Column,
			ScopeValue:  scopeValue,
			MaxRows:     limit,
		},
	}, &inserted)
	if err != nil {
		return err
	}
	if !inserted {
		return gateway.NewError(op, table, gateway.ErrConflict, gateway.ErrLimitReached)
	}
	return nil
}
