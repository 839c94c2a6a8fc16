package types

// ColumnMetadata describes one column of a model as reported by the
// warehouse metadata catalog. Nil pointers and an empty DataType mean the
// attribute is NULL in the catalog.
type ColumnMetadata struct {
	// Table is the owning table name
	Table string `json:"table"`
	// OrdinalPosition is the 1-based column position
	OrdinalPosition int `json:"ordinal_position"`
	// ColumnName is the column name
	ColumnName string `json:"column_name"`
	// DataType is the base type name without parameters, e.g. VARCHAR
	DataType string `json:"data_type"`
	// MaxLength is the character maximum length
	MaxLength *int64 `json:"max_length,omitempty"`
	// NumericPrecision is the numeric precision
	NumericPrecision *int64 `json:"numeric_precision,omitempty"`
	// NumericPrecisionRadix is the radix of NumericPrecision (2 or 10)
	NumericPrecisionRadix *int64 `json:"numeric_precision_radix,omitempty"`
}

// ColumnSignature is the 4-tuple compared by the schema drift check, with
// NULLs replaced by their defaults ('' and 0).
type ColumnSignature struct {
	DataType              string
	MaxLength             int64
	NumericPrecision      int64
	NumericPrecisionRadix int64
}

// Signature returns the column's comparison tuple with defaults substituted.
// A nil receiver yields the all-defaults tuple, which is what a missing
// candidate column is compared as.
func (c *ColumnMetadata) Signature() ColumnSignature {
	if c == nil {
		return ColumnSignature{}
	}
	return ColumnSignature{
		DataType:              c.DataType,
		MaxLength:             valueOrZero(c.MaxLength),
		NumericPrecision:      valueOrZero(c.NumericPrecision),
		NumericPrecisionRadix: valueOrZero(c.NumericPrecisionRadix),
	}
}

func valueOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// Int64 returns a pointer to v. Convenience for building metadata literals.
func Int64(v int64) *int64 {
	return &v
}

// ProjectionSpec is the column set, optional filter and sort key applied
// identically to the reference and candidate datasets before comparison.
type ProjectionSpec struct {
	// RetainedColumns are the compared columns, deduplicated and sorted ascending
	RetainedColumns []string `json:"retained_columns"`
	// Filter is applied before column selection and sorting
	Filter *Filter `json:"filter,omitempty"`
	// SortKey is always equal to RetainedColumns
	SortKey []string `json:"sort_key"`
}
