package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/arkilian/driftguard/pkg/types"
	_ "github.com/mattn/go-sqlite3"
)

// sqliteDialect maps schemas onto attached databases.
type sqliteDialect struct{}

func openSQLite(opts Options) (*SQLWarehouse, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("warehouse: sqlite dsn is required")
	}

	db, err := sql.Open("sqlite3", opts.DSN+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("warehouse: failed to open sqlite: %w", err)
	}
	// ATTACH is per connection, so the pool is pinned to one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	aliases := make([]string, 0, len(opts.Attach))
	for alias := range opts.Attach {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	for _, alias := range aliases {
		if _, err := db.Exec("ATTACH DATABASE ? AS "+quoteIdent(alias), opts.Attach[alias]); err != nil {
			db.Close()
			return nil, fmt.Errorf("warehouse: failed to attach %s: %w", alias, err)
		}
	}

	return &SQLWarehouse{db: db, dialect: sqliteDialect{}}, nil
}

func (sqliteDialect) name() string { return "sqlite" }

func (sqliteDialect) schemaExists(ctx context.Context, db *sql.DB, schema string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int
		var name, file string
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return false, err
		}
		if strings.EqualFold(name, schema) {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (sqliteDialect) columns(ctx context.Context, db *sql.DB, loc Location) ([]types.ColumnMetadata, error) {
	query := fmt.Sprintf("PRAGMA %s.table_info(%s)", quoteIdent(loc.Schema), quoteIdent(loc.Table))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []types.ColumnMetadata
	for rows.Next() {
		var (
			cid      int
			name     string
			declared sql.NullString
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &declared, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		dataType, maxLen, precision, radix := parseDeclaredType(declared.String)
		cols = append(cols, types.ColumnMetadata{
			Table:                 loc.Table,
			OrdinalPosition:       cid + 1,
			ColumnName:            name,
			DataType:              dataType,
			MaxLength:             maxLen,
			NumericPrecision:      precision,
			NumericPrecisionRadix: radix,
		})
	}
	return cols, rows.Err()
}

// sqlite identifiers are case-insensitive, so no resolution is needed.
func (sqliteDialect) selectAll(_ context.Context, _ *sql.DB, loc Location) (string, error) {
	return fmt.Sprintf("SELECT * FROM %s.%s", quoteIdent(loc.Schema), quoteIdent(loc.Table)), nil
}
