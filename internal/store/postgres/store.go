package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/store"
)

type PostgresStore struct {
	store.BaseStore
}

func NewPostgresStore(dsn string, migrations fs.FS) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PostgresStore{BaseStore: store.BaseStore{
		DB:        db,
		Converter: db.Rebind,
		Classify:  classify,
		LockScope: advisoryLock,
	}}

	if migrations != nil {
		if err := s.ApplyMigrations(migrations); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	return s, nil
}

func (s *PostgresStore) ApplyMigrations(fsys fs.FS) error {
	return s.BaseStore.ApplyMigrations(fsys, nil, nil)
}

// classify maps SQLSTATE classes: 23 integrity violations, 08 connection exceptions
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch pqErr.Code.Class() {
	case "23":
		return gateway.ErrConflict
	case "08":
		return gateway.ErrNetwork
	}
	return nil
}

func advisoryLock(ctx context.Context, tx *sqlx.Tx, key string) error {
	_, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key)
	return err
}
