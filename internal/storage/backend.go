package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

var ErrObjectNotFound = errors.New("object not found")

// Object is a stored blob together with its metadata.
type Object struct {
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// ObjectStore keeps file bytes and their metadata blob under a flat key.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	// ReplaceMetadata rewrites the metadata of an existing object in place.
	ReplaceMetadata(ctx context.Context, key string, metadata map[string]string) error
	GetName() string
	Close() error
}

const sidecarSuffix = ".meta.json"

// sidecar is the metadata file written next to objects on file-share backends.
type sidecar struct {
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata"`
}

func encodeSidecar(contentType string, metadata map[string]string) ([]byte, error) {
	return json.Marshal(sidecar{ContentType: contentType, Metadata: metadata})
}

func decodeSidecar(data []byte) (*sidecar, error) {
	var s sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// validKey rejects keys that would escape the storage root.
func validKey(key string) bool {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return false
	}
	return path.Base(key) == key
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return strings.TrimSuffix(base, "/") + "/" + name
}

// statObject checks a single object path on a file-share backend. A missing
// path or a directory is ErrObjectNotFound.
func statObject(stat func(name string) (fs.FileInfo, error), name string) error {
	info, err := stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		return ErrObjectNotFound
	}
	return nil
}
