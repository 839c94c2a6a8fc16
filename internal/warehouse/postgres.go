package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arkilian/driftguard/pkg/types"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// Registered database/sql driver names for PostgreSQL.
const (
	driverLibPQ = "postgres"
	driverPGX   = "pgx"
)

// postgresDialect reads metadata from information_schema and resolves
// schema and table names case-insensitively.
type postgresDialect struct{}

func openPostgres(opts Options, driver string) (*SQLWarehouse, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("warehouse: postgres dsn is required")
	}

	db, err := sql.Open(driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("warehouse: failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &SQLWarehouse{db: db, dialect: postgresDialect{}}, nil
}

func (postgresDialect) name() string { return "postgres" }

func (postgresDialect) schemaExists(ctx context.Context, db *sql.DB, schema string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.schemata WHERE upper(schema_name) = upper($1)`,
		schema).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (postgresDialect) columns(ctx context.Context, db *sql.DB, loc Location) ([]types.ColumnMetadata, error) {
	query := `
		SELECT table_name, ordinal_position, column_name, upper(data_type),
		       character_maximum_length, numeric_precision, numeric_precision_radix
		FROM information_schema.columns
		WHERE upper(table_schema) = upper($1) AND upper(table_name) = upper($2)`
	args := []interface{}{loc.Schema, loc.Table}
	if loc.Database != "" {
		query += ` AND upper(table_catalog) = upper($3)`
		args = append(args, loc.Database)
	}
	query += ` ORDER BY ordinal_position`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []types.ColumnMetadata
	for rows.Next() {
		var (
			c                       types.ColumnMetadata
			dataType                sql.NullString
			maxLen, precision, radx sql.NullInt64
		)
		if err := rows.Scan(&c.Table, &c.OrdinalPosition, &c.ColumnName, &dataType, &maxLen, &precision, &radx); err != nil {
			return nil, err
		}
		c.DataType = dataType.String
		c.MaxLength = nullInt64(maxLen)
		c.NumericPrecision = nullInt64(precision)
		c.NumericPrecisionRadix = nullInt64(radx)
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (postgresDialect) selectAll(ctx context.Context, db *sql.DB, loc Location) (string, error) {
	var schema, table string
	err := db.QueryRowContext(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE upper(table_schema) = upper($1) AND upper(table_name) = upper($2)
		LIMIT 1`, loc.Schema, loc.Table).Scan(&schema, &table)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("table %s does not exist", loc)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT * FROM %s.%s", quoteIdent(schema), quoteIdent(table)), nil
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return types.Int64(v.Int64)
}
