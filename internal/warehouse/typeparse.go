package warehouse

import (
	"strconv"
	"strings"

	"github.com/arkilian/driftguard/pkg/types"
)

var characterTypes = map[string]bool{
	"CHAR":              true,
	"CHARACTER":         true,
	"VARCHAR":           true,
	"NCHAR":             true,
	"NVARCHAR":          true,
	"TEXT":              true,
	"STRING":            true,
	"CHARACTER VARYING": true,
	"VARYING CHARACTER": true,
	"NATIVE CHARACTER":  true,
	"CLOB":              true,
}

var numericTypes = map[string]bool{
	"NUMBER":  true,
	"NUMERIC": true,
	"DECIMAL": true,
	"DEC":     true,
}

// parseDeclaredType splits a declared column type such as VARCHAR(10) or
// NUMBER(38,0) into the metadata attributes the drift check compares.
// Character types carry a maximum length; exact numeric types carry a
// decimal precision (radix 10). Attributes that are not declared stay NULL.
func parseDeclaredType(declared string) (dataType string, maxLength, precision, radix *int64) {
	declared = strings.ToUpper(strings.TrimSpace(declared))
	if declared == "" {
		return "", nil, nil, nil
	}

	base := declared
	var params []int64
	if open := strings.IndexByte(declared, '('); open >= 0 {
		base = strings.TrimSpace(declared[:open])
		inner := declared[open+1:]
		if end := strings.IndexByte(inner, ')'); end >= 0 {
			inner = inner[:end]
		}
		for _, p := range strings.Split(inner, ",") {
			n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
			if err != nil {
				break
			}
			params = append(params, n)
		}
	}
	base = strings.Join(strings.Fields(base), " ")

	switch {
	case len(params) > 0 && characterTypes[base]:
		maxLength = types.Int64(params[0])
	case len(params) > 0 && numericTypes[base]:
		precision = types.Int64(params[0])
		radix = types.Int64(10)
	}
	return base, maxLength, precision, radix
}
