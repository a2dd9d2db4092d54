// Package history records reconciliation outcomes so operators can audit
// what a run did after the fact.
package history

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/forgemirror/internal/config"
)

// DB is the storage backend behind Store. SQLite is the default; MySQL
// serves shared deployments where several hosts run watch.
type DB interface {
	// Select runs query and scans every row into dest (slice pointer).
	Select(ctx context.Context, dest any, query string, args ...any) error

	// Insert writes a db-tagged struct into table and returns the row id.
	Insert(ctx context.Context, table string, record any) (int64, error)

	// Migrate applies pending schema migrations in order.
	Migrate(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error

	// Driver returns "sqlite" or "mysql".
	Driver() string
}

// Open returns the backend matching cfg.Driver with migrations applied.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	var (
		db  DB
		err error
	)
	switch cfg.Driver {
	case "mysql":
		db, err = NewMySQL(cfg)
	case "sqlite", "sqlite3", "":
		db, err = NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (supported: sqlite, mysql)", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s history: %w", db.Driver(), err)
	}
	return &Store{db: db}, nil
}
