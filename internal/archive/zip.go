// Package archive lists and extracts ZIP entries and rebuilds their directory tree.
// Every call decodes the archive from scratch; nothing is cached between requests.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"sxbin-backend/internal/models"
)

var (
	ErrMalformedArchive = errors.New("malformed archive")
	ErrEntryNotFound    = errors.New("entry not found in archive")
	ErrNotAZipFile      = errors.New("not a zip file")
)

func open(data []byte) (*zip.Reader, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}
	return r, nil
}

// List returns one entry per file in the archive, sorted by path. Directory
// entries are skipped.
func List(data []byte) ([]models.ArchiveEntry, error) {
	r, err := open(data)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ArchiveEntry, 0, len(r.File))
	for _, f := range r.File {
		if isDirEntry(f) {
			continue
		}
		entries = append(entries, models.ArchiveEntry{
			Name:         path.Base(f.Name),
			Path:         f.Name,
			Size:         int64(f.UncompressedSize64),
			IsDirectory:  false,
			LastModified: f.Modified,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// Extract returns the decompressed bytes of the entry whose name is exactly name.
func Extract(data []byte, name string) ([]byte, error) {
	r, err := open(data)
	if err != nil {
		return nil, err
	}

	for _, f := range r.File {
		if f.Name != name || isDirEntry(f) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
		}
		defer rc.Close()

		out, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
		}
		return out, nil
	}

	return nil, ErrEntryNotFound
}

// IsZip reports whether a stored file should be treated as a ZIP archive.
func IsZip(contentType, fileName string) bool {
	return strings.Contains(contentType, "zip") ||
		strings.HasSuffix(strings.ToLower(fileName), ".zip")
}

func isDirEntry(f *zip.File) bool {
	return strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir()
}
