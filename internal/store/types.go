package store

import "strings"

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
)

type DBConfig struct {
	DSN  string
	Type DatabaseType
}

func DetectType(dsn string) DatabaseType {
	if strings.HasPrefix(dsn, "postgres") {
		return DBTypePostgres
	}
	return DBTypeSQLite
}
