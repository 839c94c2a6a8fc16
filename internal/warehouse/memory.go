package warehouse

import (
	"context"
	"fmt"
	"sync"

	"github.com/arkilian/driftguard/internal/dataset"
	"github.com/arkilian/driftguard/pkg/types"
)

// MemoryWarehouse is an in-process Warehouse holding tables keyed by
// SCHEMA.TABLE (canonical case). Used for fixtures and tests.
type MemoryWarehouse struct {
	mu      sync.RWMutex
	schemas map[string]bool
	meta    map[string][]types.ColumnMetadata
	tables  map[string]*dataset.Table
	failing map[string]error
}

// NewMemoryWarehouse creates an empty in-memory warehouse.
func NewMemoryWarehouse() *MemoryWarehouse {
	return &MemoryWarehouse{
		schemas: make(map[string]bool),
		meta:    make(map[string][]types.ColumnMetadata),
		tables:  make(map[string]*dataset.Table),
		failing: make(map[string]error),
	}
}

func memKey(schema, table string) string {
	return types.CanonicalName(schema) + "." + types.CanonicalName(table)
}

// AddTable registers a table with its metadata and rows. Columns of the
// loaded table are taken from the metadata in order.
func (m *MemoryWarehouse) AddTable(schema, table string, meta []types.ColumnMetadata, rows [][]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	columns := make([]string, len(meta))
	for i, c := range meta {
		columns[i] = c.ColumnName
	}
	copied := make([][]interface{}, len(rows))
	for i, r := range rows {
		copied[i] = append([]interface{}(nil), r...)
	}

	key := memKey(schema, table)
	m.schemas[types.CanonicalName(schema)] = true
	m.meta[key] = meta
	m.tables[key] = dataset.NewTable(columns, copied)
}

// AddSchema registers an empty schema.
func (m *MemoryWarehouse) AddSchema(schema string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[types.CanonicalName(schema)] = true
}

// FailOn makes every lookup of schema.table return err.
func (m *MemoryWarehouse) FailOn(schema, table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[memKey(schema, table)] = err
}

// Ping always succeeds.
func (m *MemoryWarehouse) Ping(ctx context.Context) error {
	return ctx.Err()
}

// SchemaExists reports whether the schema was registered.
func (m *MemoryWarehouse) SchemaExists(_ context.Context, schema string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schemas[types.CanonicalName(schema)], nil
}

// Columns returns the registered metadata; unknown tables yield nil.
func (m *MemoryWarehouse) Columns(_ context.Context, loc Location) ([]types.ColumnMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := memKey(loc.Schema, loc.Table)
	if err := m.failing[key]; err != nil {
		return nil, err
	}
	meta := m.meta[key]
	out := make([]types.ColumnMetadata, len(meta))
	copy(out, meta)
	return out, nil
}

// Load returns a copy of the registered rows.
func (m *MemoryWarehouse) Load(_ context.Context, loc Location) (*dataset.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := memKey(loc.Schema, loc.Table)
	if err := m.failing[key]; err != nil {
		return nil, err
	}
	t, ok := m.tables[key]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", loc)
	}

	rows := make([][]interface{}, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append([]interface{}(nil), r...)
	}
	return &dataset.Table{Columns: append([]string(nil), t.Columns...), Rows: rows}, nil
}

// Close is a no-op.
func (m *MemoryWarehouse) Close() error {
	return nil
}
