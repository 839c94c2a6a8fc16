// Package catalog loads the regression configuration: the ordered list of
// models eligible for validation.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	dgerrors "github.com/arkilian/driftguard/internal/errors"
	"github.com/arkilian/driftguard/internal/storage"
	"github.com/arkilian/driftguard/pkg/types"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a catalog document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForKey picks the format from the object extension. JSON is the
// default.
func FormatForKey(key string) Format {
	switch strings.ToLower(path.Ext(key)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// entry is one catalog element as declared in the configuration.
type entry struct {
	Name              string `json:"name" yaml:"name"`
	Database          string `json:"database" yaml:"database"`
	Schema            string `json:"schema" yaml:"schema"`
	FilterColumn      string `json:"filter_column" yaml:"filter_column"`
	FilterOperator    string `json:"filter_operator" yaml:"filter_operator"`
	FilterColumnValue string `json:"filter_column_value" yaml:"filter_column_value"`
}

// Load reads and parses the catalog stored at key.
func Load(ctx context.Context, store storage.ObjectStorage, key string) ([]types.ModelDescriptor, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, dgerrors.NewCatalogParseError("failed to read "+key, err)
	}
	return Parse(data, FormatForKey(key))
}

// Parse decodes a catalog document. Declared order is preserved.
func Parse(data []byte, format Format) ([]types.ModelDescriptor, error) {
	var entries []entry
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &entries)
	default:
		err = json.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, dgerrors.NewCatalogParseError("malformed catalog", err)
	}

	seen := make(map[string]int, len(entries))
	models := make([]types.ModelDescriptor, 0, len(entries))
	for i, e := range entries {
		desc, err := e.descriptor()
		if err != nil {
			return nil, dgerrors.NewCatalogParseError(fmt.Sprintf("entry %d", i), err)
		}
		if prev, dup := seen[desc.Name]; dup {
			return nil, dgerrors.NewCatalogParseError(
				fmt.Sprintf("entry %d: duplicate model %s (first declared at entry %d)", i, desc.Name, prev), nil)
		}
		seen[desc.Name] = i
		models = append(models, desc)
	}
	return models, nil
}

func (e entry) descriptor() (types.ModelDescriptor, error) {
	desc := types.ModelDescriptor{
		Name:     types.CanonicalName(e.Name),
		Database: strings.TrimSpace(e.Database),
		Schema:   strings.TrimSpace(e.Schema),
	}
	switch {
	case desc.Name == "":
		return desc, fmt.Errorf("name is required")
	case desc.Database == "":
		return desc, fmt.Errorf("%s: database is required", desc.Name)
	case desc.Schema == "":
		return desc, fmt.Errorf("%s: schema is required", desc.Name)
	}

	column := strings.TrimSpace(e.FilterColumn)
	op := types.FilterOperator(strings.TrimSpace(e.FilterOperator))
	value := strings.TrimSpace(e.FilterColumnValue)

	// A filter applies only when all three parts are declared
	if column == "" || op == "" || value == "" {
		return desc, nil
	}
	if !op.Valid() {
		return desc, fmt.Errorf("%s: unsupported filter operator %q", desc.Name, op)
	}
	desc.Filter = &types.Filter{
		Column:   types.CanonicalName(column),
		Operator: op,
		Value:    value,
	}
	return desc, nil
}
