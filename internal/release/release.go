// Package release resolves the release scope: the models a release touched
// and the columns it intentionally changed.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	dgerrors "github.com/arkilian/driftguard/internal/errors"
	"github.com/arkilian/driftguard/internal/storage"
	"github.com/arkilian/driftguard/pkg/types"
)

// DefaultPattern matches versioned release manifests.
const DefaultPattern = "release_v*.*.json"

// Manifest is the release manifest document.
type Manifest struct {
	Releases []Release `json:"releases"`
}

// Release is one entry of a manifest. Only the first entry is used.
type Release struct {
	Version        string              `json:"version,omitempty"`
	ModelsImpacted map[string][]string `json:"models_impacted"`
}

// Resolution is a resolved scope and where it came from.
type Resolution struct {
	// Key is the object path of the selected manifest
	Key string
	// Version is the release version, when the manifest declares one
	Version string
	Scope   types.ReleaseScope
}

// Resolver locates and parses the latest release manifest.
type Resolver struct {
	store   storage.ObjectStorage
	prefix  string
	pattern string
}

// NewResolver creates a resolver listing manifests under prefix.
func NewResolver(store storage.ObjectStorage, prefix, pattern string) *Resolver {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &Resolver{store: store, prefix: prefix, pattern: pattern}
}

// Resolve selects the most recently modified manifest matching the pattern
// and returns the scope of its first release. Any failure is reported as
// ManifestUnavailable; a non-empty scope is never fabricated.
func (r *Resolver) Resolve(ctx context.Context) (*Resolution, error) {
	objects, err := r.store.ListObjects(ctx, r.prefix)
	if err != nil {
		return nil, dgerrors.NewManifestUnavailable("failed to list "+r.prefix, err)
	}

	latest, ok := storage.Latest(storage.MatchBase(objects, r.pattern))
	if !ok {
		return nil, dgerrors.NewManifestUnavailable(
			fmt.Sprintf("no manifest matching %s under %q", r.pattern, r.prefix), nil)
	}

	data, err := r.store.Get(ctx, latest.Key)
	if err != nil {
		return nil, dgerrors.NewManifestUnavailable("failed to read "+latest.Key, err)
	}

	rel, err := ParseManifest(data)
	if err != nil {
		return nil, dgerrors.NewManifestUnavailable("failed to parse "+latest.Key, err)
	}

	return &Resolution{
		Key:     latest.Key,
		Version: rel.Version,
		Scope:   types.NewReleaseScope(rel.ModelsImpacted),
	}, nil
}

// ParseManifest decodes a manifest and returns its first release.
func ParseManifest(data []byte) (*Release, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if len(m.Releases) == 0 {
		return nil, fmt.Errorf("manifest has no releases")
	}

	rel := m.Releases[0]
	if rel.ModelsImpacted == nil {
		return nil, fmt.Errorf("first release has no models_impacted")
	}
	for model := range rel.ModelsImpacted {
		if strings.TrimSpace(model) == "" {
			return nil, fmt.Errorf("empty model name in models_impacted")
		}
	}
	return &rel, nil
}
