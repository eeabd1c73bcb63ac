package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
)

// TableStore is a gateway backed directly by a SQL database.
type TableStore interface {
	gateway.Tables
	Close() error
	ApplyMigrations(fsys fs.FS) error
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
	// Classify maps a driver error to a gateway error kind, or returns nil.
	Classify func(error) error
	// LockScope serializes InsertWithinLimit calls sharing the same key.
	LockScope func(ctx context.Context, tx *sqlx.Tx, key string) error
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from fsys in name order, translating dialect if needed
func (s *BaseStore) ApplyMigrations(fsys fs.FS, translateSQL func(string) string, skip func(string) bool) error {
	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		if skip != nil && skip(file.Name()) {
			logger.Debug.Printf("Skipping migration: %s", file.Name())
			continue
		}

		content, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		logger.Info.Printf("Applying migration: %s", file.Name())
		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func buildWhere(filters []gateway.Filter) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(filters))
	var args []any
	for _, f := range filters {
		col := quote(f.Column)
		switch f.Op {
		case gateway.OpIn:
			vals := f.Values()
			if len(vals) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			parts = append(parts, col+" IN (?)")
			args = append(args, vals)
		default:
			if f.Value == nil {
				parts = append(parts, col+" IS NULL")
				continue
			}
			parts = append(parts, col+" = ?")
			args = append(args, f.Value)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// bind expands IN lists and converts placeholders to the driver's dialect.
func (s *BaseStore) bind(query string, args []any) (string, []any, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return s.Converter(query), args, nil
}

func (s *BaseStore) wrap(op, table string, err error) error {
	var netErr net.Error
	kind := gateway.ErrUnknown
	switch {
	case errors.Is(err, sql.ErrNoRows):
		kind = gateway.ErrNotFound
	case errors.Is(err, driver.ErrBadConn), errors.As(err, &netErr):
		kind = gateway.ErrNetwork
	case s.Classify != nil:
		if k := s.Classify(err); k != nil {
			kind = k
		}
	}
	return gateway.NewError(op, table, kind, err)
}

func (s *BaseStore) selectSQL(q gateway.Query, limit int) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	cols := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			quoted[i] = quote(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	where, args := buildWhere(q.Filters)
	query := fmt.Sprintf("SELECT %s FROM %s%s", cols, quote(q.Table), where)
	if q.OrderBy != "" {
		query += " ORDER BY " + quote(q.OrderBy) + " ASC"
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.bind(query, args)
}

func (s *BaseStore) Select(ctx context.Context, dest any, q gateway.Query) error {
	query, args, err := s.selectSQL(q, 0)
	if err != nil {
		return gateway.NewError("select", q.Table, gateway.ErrUnknown, err)
	}

	if err := s.DB.SelectContext(ctx, dest, query, args...); err != nil {
		return s.wrap("select", q.Table, err)
	}
	return nil
}

func (s *BaseStore) SelectOne(ctx context.Context, dest any, q gateway.Query) error {
	query, args, err := s.selectSQL(q, 1)
	if err != nil {
		return gateway.NewError("select one", q.Table, gateway.ErrUnknown, err)
	}

	if err := s.DB.GetContext(ctx, dest, query, args...); err != nil {
		return s.wrap("select one", q.Table, err)
	}
	return nil
}

func (s *BaseStore) Count(ctx context.Context, table string, filters ...gateway.Filter) (int, error) {
	if err := gateway.From(table).Where(filters...).Validate(); err != nil {
		return 0, gateway.NewError("count", table, gateway.ErrUnknown, err)
	}

	query, args, err := s.countSQL(table, filters)
	if err != nil {
		return 0, gateway.NewError("count", table, gateway.ErrUnknown, err)
	}

	var n int
	if err := s.DB.GetContext(ctx, &n, query, args...); err != nil {
		return 0, s.wrap("count", table, err)
	}
	return n, nil
}

func (s *BaseStore) countSQL(table string, filters []gateway.Filter) (string, []any, error) {
	where, args := buildWhere(filters)
	return s.bind(fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quote(table), where), args)
}

func rowColumns(row gateway.Row) ([]string, error) {
	if len(row) == 0 {
		return nil, fmt.Errorf("empty row")
	}
	cols := make([]string, 0, len(row))
	for c := range row {
		if !gateway.ValidIdent(c) {
			return nil, fmt.Errorf("invalid column name %q", c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

func (s *BaseStore) insertSQL(table string, row gateway.Row, returning bool) (string, []any, error) {
	if !gateway.ValidIdent(table) {
		return "", nil, fmt.Errorf("invalid table name %q", table)
	}
	cols, err := rowColumns(row)
	if err != nil {
		return "", nil, err
	}

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
		marks[i] = "?"
		args[i] = row[c]
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quote(table),
		strings.Join(quoted, ", "),
		strings.Join(marks, ", "),
	)
	if returning {
		query += " RETURNING *"
	}
	return s.Converter(query), args, nil
}

func (s *BaseStore) Insert(ctx context.Context, table string, row gateway.Row, returning any) error {
	query, args, err := s.insertSQL(table, row, returning != nil)
	if err != nil {
		return gateway.NewError("insert", table, gateway.ErrUnknown, err)
	}

	if returning != nil {
		if err := s.DB.QueryRowxContext(ctx, query, args...).StructScan(returning); err != nil {
			return s.wrap("insert", table, err)
		}
		return nil
	}

	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return s.wrap("insert", table, err)
	}
	return nil
}

func (s *BaseStore) Update(ctx context.Context, table string, values gateway.Row, filters ...gateway.Filter) error {
	if err := gateway.From(table).Where(filters...).Validate(); err != nil {
		return gateway.NewError("update", table, gateway.ErrUnknown, err)
	}
	if len(filters) == 0 {
		return gateway.NewError("update", table, gateway.ErrUnknown, fmt.Errorf("refusing to update without filters"))
	}
	cols, err := rowColumns(values)
	if err != nil {
		return gateway.NewError("update", table, gateway.ErrUnknown, err)
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(filters))
	for i, c := range cols {
		sets[i] = quote(c) + " = ?"
		args = append(args, values[c])
	}
	where, wargs := buildWhere(filters)
	args = append(args, wargs...)

	query, args, err := s.bind(
		fmt.Sprintf("UPDATE %s SET %s%s", quote(table), strings.Join(sets, ", "), where),
		args,
	)
	if err != nil {
		return gateway.NewError("update", table, gateway.ErrUnknown, err)
	}

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return s.wrap("update", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.wrap("update", table, err)
	}
	if n == 0 {
		return gateway.NewError("update", table, gateway.ErrNotFound, fmt.Errorf("no row matches %s", filterText(filters)))
	}
	return nil
}

func filterText(filters []gateway.Filter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = fmt.Sprintf("%s=%v", f.Column, f.Value)
	}
	return strings.Join(parts, ",")
}

func (s *BaseStore) Delete(ctx context.Context, table string, filters ...gateway.Filter) error {
	if err := gateway.From(table).Where(filters...).Validate(); err != nil {
		return gateway.NewError("delete", table, gateway.ErrUnknown, err)
	}
	if len(filters) == 0 {
		return gateway.NewError("delete", table, gateway.ErrUnknown, fmt.Errorf("refusing to delete without filters"))
	}

	where, args := buildWhere(filters)
	query, args, err := s.bind(fmt.Sprintf("DELETE FROM %s%s", quote(table), where), args)
	if err != nil {
		return gateway.NewError("delete", table, gateway.ErrUnknown, err)
	}

	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return s.wrap("delete", table, err)
	}
	return nil
}

// LockKey names the critical section of an InsertWithinLimit call. It must
// match the key insert_within_limit derives from scope_value::text, which is
// why scope values go through gateway.ScopeText.
func LockKey(table string, scope []gateway.Filter) (string, error) {
	parts := make([]string, len(scope))
	for i, f := range scope {
		v, err := gateway.ScopeText(f.Value)
		if err != nil {
			return "", err
		}
		parts[i] = f.Column + "=" + v
	}
	return table + ":" + strings.Join(parts, ","), nil
}

func (s *BaseStore) InsertWithinLimit(ctx context.Context, table string, row gateway.Row, limit int, scope ...gateway.Filter) error {
	if err := gateway.From(table).Where(scope...).Validate(); err != nil {
		return gateway.NewError("insert within limit", table, gateway.ErrUnknown, err)
	}
	countQuery, countArgs, err := s.countSQL(table, scope)
	if err != nil {
		return gateway.NewError("insert within limit", table, gateway.ErrUnknown, err)
	}
	insertQuery, insertArgs, err := s.insertSQL(table, row, false)
	if err != nil {
		return gateway.NewError("insert within limit", table, gateway.ErrUnknown, err)
	}
	key, err := LockKey(table, scope)
	if err != nil {
		return gateway.NewError("insert within limit", table, gateway.ErrUnknown, err)
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return s.wrap("insert within limit", table, err)
	}
	defer tx.Rollback()

	if s.LockScope != nil {
		if err := s.LockScope(ctx, tx, key); err != nil {
			return s.wrap("insert within limit", table, err)
		}
	}

	var n int
	if err := tx.GetContext(ctx, &n, countQuery, countArgs...); err != nil {
		return s.wrap("insert within limit", table, err)
	}
	if n >= limit {
		return gateway.NewError("insert within limit", table, gateway.ErrConflict, gateway.ErrLimitReached)
	}

	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return s.wrap("insert within limit", table, err)
	}
	if err := tx.Commit(); err != nil {
		return s.wrap("insert within limit", table, err)
	}
	return nil
}
