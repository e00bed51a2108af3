// Package blob stores image bytes outside the record store. Records keep only
// the reference returned by Put.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

// ErrNotFound is returned for a reference with no stored blob.
var ErrNotFound = errors.New("blob not found")

// ErrInvalidRef is returned for references that Put could not have produced.
var ErrInvalidRef = errors.New("invalid blob reference")

var refPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.(jpg|png)$`)

var extByMIME = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

var mimeByExt = map[string]string{
	".jpg": "image/jpeg",
	".png": "image/png",
}

// Dir keeps blobs as files in one directory.
type Dir struct {
	root string
}

// NewDir returns a Dir rooted at root, creating it if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}
	return &Dir{root: root}, nil
}

// Put writes data and returns its new reference.
func (d *Dir) Put(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext, ok := extByMIME[mimeType]
	if !ok {
		return "", fmt.Errorf("unsupported blob type %q", mimeType)
	}
	ref := uuid.NewString() + ext

	tmp, err := os.CreateTemp(d.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.root, ref)); err != nil {
		return "", fmt.Errorf("storing blob: %w", err)
	}
	return ref, nil
}

// Get returns the blob's bytes and MIME type.
func (d *Dir) Get(ctx context.Context, ref string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if !ValidRef(ref) {
		return nil, "", ErrInvalidRef
	}
	data, err := os.ReadFile(filepath.Join(d.root, ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("reading blob: %w", err)
	}
	return data, mimeByExt[filepath.Ext(ref)], nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (d *Dir) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidRef(ref) {
		return ErrInvalidRef
	}
	err := os.Remove(filepath.Join(d.root, ref))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// ValidRef reports whether ref has the shape of a reference made by Put.
func ValidRef(ref string) bool {
	return refPattern.MatchString(ref)
}
