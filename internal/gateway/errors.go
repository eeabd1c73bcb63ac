package gateway

import (
	"errors"
	"fmt"
	"strconv"
)

// Error kinds. Every error returned by a gateway implementation matches
// exactly one of them with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrNetwork  = errors.New("network error")
	ErrUnknown  = errors.New("unknown gateway error")

	// ErrUnauthorized means the gateway refused the credentials sent.
	ErrUnauthorized = errors.New("unauthorized")
)

// ErrLimitReached is the cause of the Conflict returned by InsertWithinLimit.
var ErrLimitReached = errors.New("row limit reached")

type Error struct {
	Op    string
	Table string
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Table != "" {
		msg += " " + e.Table
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewError(op, table string, kind, err error) *Error {
	if kind == nil {
		kind = ErrUnknown
	}
	return &Error{Op: op, Table: table, Kind: kind, Err: err}
}

// KindOf returns the kind of err, or ErrUnknown.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrNetwork, ErrUnauthorized} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUnknown
}

// ScopeText renders an InsertWithinLimit scope value the way Postgres prints
// it with ::text. Both lock keys and the insert_within_limit function rely on
// that rendering, so only strings and integers are accepted.
func ScopeText(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", fmt.Errorf("unsupported scope value %v (%T)", v, v)
	}
}
