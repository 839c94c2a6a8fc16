// Package warehouse executes metadata lookups and dataset loads against the
// backend that holds reference and candidate models.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/arkilian/driftguard/internal/dataset"
	"github.com/arkilian/driftguard/pkg/types"
)

// Location addresses one table in the warehouse.
type Location struct {
	Database string
	Schema   string
	Table    string
}

// String returns DATABASE.SCHEMA.TABLE, omitting an empty database.
func (l Location) String() string {
	if l.Database == "" {
		return l.Schema + "." + l.Table
	}
	return l.Database + "." + l.Schema + "." + l.Table
}

// Reference returns the location of the model's reference table.
func Reference(desc types.ModelDescriptor) Location {
	return Location{Database: desc.Database, Schema: desc.Schema, Table: desc.Name}
}

// Candidate returns the location of the model's rebuilt table, which lives in
// the reference schema name plus suffix.
func Candidate(desc types.ModelDescriptor, suffix string) Location {
	return Location{Database: desc.Database, Schema: desc.Schema + suffix, Table: desc.Name}
}

// Warehouse is the query capability the engine consumes.
type Warehouse interface {
	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// SchemaExists reports whether a schema exists (case-insensitive).
	SchemaExists(ctx context.Context, schema string) (bool, error)

	// Columns returns column metadata ordered by ordinal position. A missing
	// table yields an empty slice and no error.
	Columns(ctx context.Context, loc Location) ([]types.ColumnMetadata, error)

	// Load reads every row of the table.
	Load(ctx context.Context, loc Location) (*dataset.Table, error)

	// Close releases the connection pool.
	Close() error
}

// Options configures Open.
type Options struct {
	// Driver is "sqlite", "postgres" (lib/pq) or "pgx" (jackc/pgx)
	Driver string
	// DSN is passed to the database/sql driver
	DSN string
	// Attach maps schema aliases to database files (sqlite only)
	Attach map[string]string
}

// dialect isolates the SQL that differs between backends.
type dialect interface {
	name() string
	schemaExists(ctx context.Context, db *sql.DB, schema string) (bool, error)
	columns(ctx context.Context, db *sql.DB, loc Location) ([]types.ColumnMetadata, error)
	selectAll(ctx context.Context, db *sql.DB, loc Location) (string, error)
}

// SQLWarehouse implements Warehouse over database/sql.
type SQLWarehouse struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the configured backend.
func Open(opts Options) (*SQLWarehouse, error) {
	switch strings.ToLower(opts.Driver) {
	case "sqlite", "sqlite3":
		return openSQLite(opts)
	case "postgres", "postgresql":
		return openPostgres(opts, driverLibPQ)
	case "pgx":
		return openPostgres(opts, driverPGX)
	default:
		return nil, fmt.Errorf("warehouse: unsupported driver %q", opts.Driver)
	}
}

// Ping verifies connectivity.
func (w *SQLWarehouse) Ping(ctx context.Context) error {
	if err := w.db.PingContext(ctx); err != nil {
		return fmt.Errorf("warehouse: ping %s: %w", w.dialect.name(), err)
	}
	return nil
}

// SchemaExists reports whether schema exists.
func (w *SQLWarehouse) SchemaExists(ctx context.Context, schema string) (bool, error) {
	ok, err := w.dialect.schemaExists(ctx, w.db, schema)
	if err != nil {
		return false, fmt.Errorf("warehouse: schema lookup %s: %w", schema, err)
	}
	return ok, nil
}

// Columns returns column metadata for loc ordered by ordinal position.
func (w *SQLWarehouse) Columns(ctx context.Context, loc Location) ([]types.ColumnMetadata, error) {
	cols, err := w.dialect.columns(ctx, w.db, loc)
	if err != nil {
		return nil, fmt.Errorf("warehouse: columns of %s: %w", loc, err)
	}
	return cols, nil
}

// Load reads every row of loc into memory.
func (w *SQLWarehouse) Load(ctx context.Context, loc Location) (*dataset.Table, error) {
	query, err := w.dialect.selectAll(ctx, w.db, loc)
	if err != nil {
		return nil, fmt.Errorf("warehouse: load %s: %w", loc, err)
	}

	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("warehouse: load %s: %w", loc, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("warehouse: load %s: %w", loc, err)
	}

	var data [][]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("warehouse: scan %s: %w", loc, err)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("warehouse: load %s: %w", loc, err)
	}

	return dataset.NewTable(columns, data), nil
}

// Close closes the connection pool.
func (w *SQLWarehouse) Close() error {
	return w.db.Close()
}

// quoteIdent quotes an SQL identifier for both supported dialects.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
