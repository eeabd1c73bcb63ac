// Package gateway describes the remote data gateway every domain package talks
// to: a table-scoped query API plus an OAuth authentication API. The hosted
// implementation lives in gateway/rest, the SQL one in store.
package gateway

import (
	"context"
	"fmt"
	"regexp"

	"golang.org/x/oauth2"
)

type Operator string

const (
	OpEq Operator = "eq"
	OpIn Operator = "in"
)

type Filter struct {
	Column string
	Op     Operator
	Value  any
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// In matches any of values. An empty list matches nothing.
func In[T any](column string, values []T) Filter {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return Filter{Column: column, Op: OpIn, Value: vals}
}

// Values returns the operand list of an In filter.
func (f Filter) Values() []any {
	vals, _ := f.Value.([]any)
	return vals
}

type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	OrderBy string
}

func From(table string, columns ...string) Query {
	return Query{Table: table, Columns: columns}
}

func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}

func (q Query) Order(column string) Query {
	q.OrderBy = column
	return q
}

// Row is an insert or update payload keyed by column name.
type Row map[string]any

// Tables is the table half of the gateway.
//
// Select fills dest (a pointer to a slice) and leaves it empty when nothing
// matches. SelectOne fills dest (a pointer to a struct) and fails with
// ErrNotFound when no row matches. InsertWithinLimit inserts row only while
// fewer than limit rows match scope, atomically on the backend side, and
// fails with ErrLimitReached otherwise.
type Tables interface {
	Select(ctx context.Context, dest any, q Query) error
	SelectOne(ctx context.Context, dest any, q Query) error
	Count(ctx context.Context, table string, filters ...Filter) (int, error)
	Insert(ctx context.Context, table string, row Row, returning any) error
	Update(ctx context.Context, table string, values Row, filters ...Filter) error
	Delete(ctx context.Context, table string, filters ...Filter) error
	InsertWithinLimit(ctx context.Context, table string, row Row, limit int, scope ...Filter) error
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Session struct {
	Token *oauth2.Token `json:"token"`
	User  User          `json:"user"`
}

// Authenticator is the auth half of the gateway.
type Authenticator interface {
	// SignInURL returns the provider URL to send the user to and the PKCE
	// verifier that ExchangeCode will need.
	SignInURL(provider, redirectTo, state string) (authURL, verifier string)
	ExchangeCode(ctx context.Context, code, verifier string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	User(ctx context.Context, accessToken string) (*User, error)
	SignOut(ctx context.Context, accessToken string) error
}

var identRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdent reports whether name can be used as a table or column name.
func ValidIdent(name string) bool {
	return identRegex.MatchString(name)
}

func (q Query) Validate() error {
	if !ValidIdent(q.Table) {
		return fmt.Errorf("invalid table name %q", q.Table)
	}
	for _, c := range q.Columns {
		if !ValidIdent(c) {
			return fmt.Errorf("invalid column name %q", c)
		}
	}
	for _, f := range q.Filters {
		if !ValidIdent(f.Column) {
			return fmt.Errorf("invalid filter column %q", f.Column)
		}
		if f.Op != OpEq && f.Op != OpIn {
			return fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	if q.OrderBy != "" && !ValidIdent(q.OrderBy) {
		return fmt.Errorf("invalid order column %q", q.OrderBy)
	}
	return nil
}
