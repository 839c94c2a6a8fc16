package warehouse

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/arkilian/driftguard/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeclaredType(t *testing.T) {
	tests := []struct {
		declared  string
		dataType  string
		maxLength *int64
		precision *int64
		radix     *int64
	}{
		{"VARCHAR(10)", "VARCHAR", types.Int64(10), nil, nil},
		{"varchar( 255 )", "VARCHAR", types.Int64(255), nil, nil},
		{"NUMBER(38,0)", "NUMBER", nil, types.Int64(38), types.Int64(10)},
		{"DECIMAL(12, 2)", "DECIMAL", nil, types.Int64(12), types.Int64(10)},
		{"INTEGER", "INTEGER", nil, nil, nil},
		{"character  varying(20)", "CHARACTER VARYING", types.Int64(20), nil, nil},
		{"", "", nil, nil, nil},
		{"TIMESTAMP(6)", "TIMESTAMP", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			dataType, maxLength, precision, radix := parseDeclaredType(tt.declared)
			assert.Equal(t, tt.dataType, dataType)
			assert.Equal(t, tt.maxLength, maxLength)
			assert.Equal(t, tt.precision, precision)
			assert.Equal(t, tt.radix, radix)
		})
	}
}

func TestLocation(t *testing.T) {
	desc := types.ModelDescriptor{Name: "ORDERS", Database: "DW", Schema: "SALES"}
	assert.Equal(t, "DW.SALES.ORDERS", Reference(desc).String())
	assert.Equal(t, "DW.SALES_REGRESSION.ORDERS", Candidate(desc, "_REGRESSION").String())
	assert.Equal(t, "S.T", Location{Schema: "S", Table: "T"}.String())
}

// createSQLiteSchema creates a database file with one ORDERS table.
func createSQLiteSchema(t *testing.T, path, ddl string, inserts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(ddl)
	require.NoError(t, err)
	for _, stmt := range inserts {
		_, err = db.Exec(stmt)
		require.NoError(t, err)
	}
}

func TestSQLiteWarehouse(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "sales.db")
	candPath := filepath.Join(dir, "sales_regression.db")

	createSQLiteSchema(t, refPath,
		`CREATE TABLE ORDERS (ID INTEGER, CODE VARCHAR(10), AMOUNT NUMBER(38,2))`,
		`INSERT INTO ORDERS VALUES (1, 'A', 10.5)`,
		`INSERT INTO ORDERS VALUES (2, 'B', 20)`)
	createSQLiteSchema(t, candPath,
		`CREATE TABLE ORDERS (ID INTEGER, CODE VARCHAR(20))`)

	wh, err := Open(Options{
		Driver: "sqlite",
		DSN:    filepath.Join(dir, "main.db"),
		Attach: map[string]string{
			"SALES":            refPath,
			"SALES_REGRESSION": candPath,
		},
	})
	require.NoError(t, err)
	defer wh.Close()

	ctx := context.Background()
	require.NoError(t, wh.Ping(ctx))

	ok, err := wh.SchemaExists(ctx, "sales")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = wh.SchemaExists(ctx, "MISSING")
	require.NoError(t, err)
	assert.False(t, ok)

	desc := types.ModelDescriptor{Name: "orders", Database: "DW", Schema: "SALES"}
	cols, err := wh.Columns(ctx, Reference(desc))
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "ID", cols[0].ColumnName)
	assert.Equal(t, 1, cols[0].OrdinalPosition)
	assert.Equal(t, "VARCHAR", cols[1].DataType)
	assert.Equal(t, types.Int64(10), cols[1].MaxLength)
	assert.Equal(t, types.Int64(38), cols[2].NumericPrecision)

	candCols, err := wh.Columns(ctx, Candidate(desc, "_REGRESSION"))
	require.NoError(t, err)
	require.Len(t, candCols, 2)
	assert.Equal(t, types.Int64(20), candCols[1].MaxLength)

	missing, err := wh.Columns(ctx, Location{Schema: "SALES", Table: "NOPE"})
	require.NoError(t, err)
	assert.Empty(t, missing)

	table, err := wh.Load(ctx, Reference(desc))
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "CODE", "AMOUNT"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, int64(1), table.Rows[0][0])
	assert.Equal(t, "A", table.Rows[0][1])

	_, err = wh.Load(ctx, Location{Schema: "SALES", Table: "NOPE"})
	assert.Error(t, err)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Options{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestMemoryWarehouse(t *testing.T) {
	wh := NewMemoryWarehouse()
	meta := []types.ColumnMetadata{{ColumnName: "ID", OrdinalPosition: 1, DataType: "INTEGER"}}
	wh.AddTable("sales", "orders", meta, [][]interface{}{{1}, {2}})

	ctx := context.Background()
	ok, _ := wh.SchemaExists(ctx, "SALES")
	assert.True(t, ok)

	loc := Location{Schema: "SALES", Table: "ORDERS"}
	cols, err := wh.Columns(ctx, loc)
	require.NoError(t, err)
	assert.Len(t, cols, 1)

	table, err := wh.Load(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, int64(1), table.Rows[0][0])

	// Loaded tables are copies
	table.Rows[0][0] = int64(99)
	again, _ := wh.Load(ctx, loc)
	assert.Equal(t, int64(1), again.Rows[0][0])

	wh.FailOn("SALES", "ORDERS", assert.AnError)
	_, err = wh.Load(ctx, loc)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestOpenPostgresDrivers(t *testing.T) {
	// Connections are lazy: opening succeeds without a server.
	for _, driver := range []string{"postgres", "pgx"} {
		wh, err := Open(Options{Driver: driver, DSN: "postgres://localhost:1/none?sslmode=disable"})
		require.NoError(t, err, driver)
		assert.Equal(t, "postgres", wh.dialect.name())
		require.NoError(t, wh.Close())
	}
	_, err := Open(Options{Driver: "pgx"})
	assert.Error(t, err, "dsn is required")
}

func TestThrottle(t *testing.T) {
	inner := NewMemoryWarehouse()
	assert.Same(t, Warehouse(inner), Throttle(inner, 0, 1), "zero qps disables throttling")

	meta := []types.ColumnMetadata{{ColumnName: "ID", OrdinalPosition: 1}}
	inner.AddTable("SALES", "ORDERS", meta, [][]interface{}{{1}})
	wh := Throttle(inner, 1000, 5)
	loc := Location{Schema: "SALES", Table: "ORDERS"}

	ctx := context.Background()
	ok, err := wh.SchemaExists(ctx, "SALES")
	require.NoError(t, err)
	assert.True(t, ok)
	cols, err := wh.Columns(ctx, loc)
	require.NoError(t, err)
	assert.Len(t, cols, 1)
	table, err := wh.Load(ctx, loc)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)
	require.NoError(t, wh.Ping(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Throttle(inner, 0.001, 1).Load(cancelled, loc)
	assert.Error(t, err, "waiting honours context cancellation")
}
