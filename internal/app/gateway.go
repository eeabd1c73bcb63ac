package app

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/gateway/rest"
	"github.com/shrimpsizemoose/attendo/internal/metrics"
	"github.com/shrimpsizemoose/attendo/internal/store"
	"github.com/shrimpsizemoose/attendo/internal/store/postgres"
	"github.com/shrimpsizemoose/attendo/internal/store/sqlite"
	"github.com/shrimpsizemoose/attendo/migrations"
)

// Gateway bundles the table and auth halves picked by config. Client is nil
// when no gateway URL is configured.
type Gateway struct {
	Tables gateway.Tables
	Client *rest.Client
	store  store.TableStore
}

func (g *Gateway) Close() error {
	if g.store != nil {
		return g.store.Close()
	}
	return nil
}

func migrationsFS(config *Config) fs.FS {
	if config.Database.SkipMigrations {
		return nil
	}
	if config.Database.MigrationsDir != "" {
		return os.DirFS(config.Database.MigrationsDir)
	}
	return migrations.FS
}

func NewStore(db store.DBConfig, migrations fs.FS) (store.TableStore, error) {
	switch db.Type {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(db.DSN, migrations)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(db.DSN, migrations)
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", db.DSN)
	}
}

// NewGateway connects to the database when a DSN is set and to the hosted
// gateway otherwise. The hosted client is also built next to a DSN when a URL
// is configured, for sign-in.
func NewGateway(config *Config) (*Gateway, error) {
	g := &Gateway{}

	if config.Gateway.URL != "" {
		client, err := rest.New(config.Gateway.URL, config.Gateway.APIKey, config.GatewayTimeout())
		if err != nil {
			return nil, fmt.Errorf("failed to init gateway client: %w", err)
		}
		g.Client = client
	}

	var tables gateway.Tables
	if config.Gateway.DSN != "" {
		db := store.DBConfig{DSN: config.Gateway.DSN, Type: store.DetectType(config.Gateway.DSN)}
		s, err := NewStore(db, migrationsFS(config))
		if err != nil {
			return nil, fmt.Errorf("failed to init store: %w", err)
		}
		logger.Info.Printf("Using %s store", db.Type)
		g.store = s
		tables = s
	} else {
		if g.Client == nil {
			return nil, fmt.Errorf("no gateway configured")
		}
		logger.Info.Printf("Using hosted gateway at %s", config.Gateway.URL)
		tables = g.Client
	}

	g.Tables = metrics.Instrument(tables)
	return g, nil
}

// Migrate applies the configured migrations to the DSN database and exits.
// There is nothing to migrate behind the hosted gateway.
func Migrate(config *Config) error {
	if config.Gateway.DSN == "" {
		return fmt.Errorf("migrate needs gateway.dsn")
	}
	fsys := migrationsFS(config)
	if fsys == nil {
		fsys = migrations.FS
	}
	db := store.DBConfig{DSN: config.Gateway.DSN, Type: store.DetectType(config.Gateway.DSN)}
	s, err := NewStore(db, fsys)
	if err != nil {
		return fmt.Errorf("failed to migrate %s store: %w", db.Type, err)
	}
	logger.Info.Printf("Migrations applied to %s store", db.Type)
	return s.Close()
}
