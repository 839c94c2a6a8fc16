// Package storage provides object storage abstractions used to locate
// release manifests, read the regression configuration and keep artifacts.
package storage

import (
	"context"
	"errors"
	"path"
	"sort"
	"time"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	// Key is the object path relative to the storage root, always '/'-separated
	Key string
	// Size is the object size in bytes
	Size int64
	// LastModified is the object's last modification time
	LastModified time.Time
}

// ObjectStorage abstracts cloud object storage operations.
// Implementations include S3, MinIO, and the local filesystem.
type ObjectStorage interface {
	// Get returns the full content of an object.
	// Returns ErrObjectNotFound if the object does not exist.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Put stores data at objectPath, replacing any existing object.
	Put(ctx context.Context, objectPath string, data []byte) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all objects under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// MatchBase filters objects whose base name matches a path.Match pattern
// (e.g. "release_v*.*.json"). Malformed patterns match nothing.
func MatchBase(objects []ObjectInfo, pattern string) []ObjectInfo {
	var out []ObjectInfo
	for _, obj := range objects {
		ok, err := path.Match(pattern, path.Base(obj.Key))
		if err != nil {
			return nil
		}
		if ok {
			out = append(out, obj)
		}
	}
	return out
}

// Latest returns the most recently modified object. Ties are broken by the
// lexicographically greatest key so the choice is deterministic.
func Latest(objects []ObjectInfo) (ObjectInfo, bool) {
	if len(objects) == 0 {
		return ObjectInfo{}, false
	}
	sorted := make([]ObjectInfo, len(objects))
	copy(sorted, objects)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].LastModified.Equal(sorted[j].LastModified) {
			return sorted[i].LastModified.After(sorted[j].LastModified)
		}
		return sorted[i].Key > sorted[j].Key
	})
	return sorted[0], true
}
