package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"blueprint-editor/application/ports"
	pkgerrors "blueprint-editor/pkg/errors"

	"go.uber.org/zap"
)

// LocalStore keeps blueprints in a directory and serves them under a URL
// prefix such as /blobs/
type LocalStore struct {
	dir     string
	baseURL string
	logger  *zap.Logger
}

// NewLocalStore creates the directory if needed
func NewLocalStore(dir, baseURL string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &LocalStore{dir: dir, baseURL: baseURL, logger: logger}, nil
}

// Dir returns the directory served under the base URL
func (s *LocalStore) Dir() string { return s.dir }

// Put writes the body to a temporary file and renames it into place
func (s *LocalStore) Put(ctx context.Context, pathname string, body io.Reader, size int64, contentType string) (string, error) {
	if err := checkPathname(pathname); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write blob %s: %w", pathname, err)
	}
	if size >= 0 && written != size {
		return "", fmt.Errorf("blob %s: wrote %d of %d bytes", pathname, written, size)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, pathname)); err != nil {
		return "", fmt.Errorf("failed to store blob %s: %w", pathname, err)
	}

	s.logger.Debug("Stored blob",
		zap.String("pathname", pathname),
		zap.Int64("size", written),
		zap.String("content_type", contentType))
	return s.baseURL + pathname, nil
}

// Delete removes a blob; missing blobs are ignored
func (s *LocalStore) Delete(ctx context.Context, pathname string) error {
	if err := checkPathname(pathname); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, pathname))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", pathname, err)
	}
	return nil
}

// List returns the stored blobs, newest first
func (s *LocalStore) List(ctx context.Context) ([]ports.BlobObject, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	out := make([]ports.BlobObject, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, ports.BlobObject{
			URL:         s.baseURL + name,
			Pathname:    name,
			Size:        info.Size(),
			ContentType: contentTypeFor(name),
			UploadedAt:  info.ModTime().UTC(),
		})
	}
	sortNewestFirst(out)
	return out, nil
}

// Open streams a stored blob
func (s *LocalStore) Open(ctx context.Context, pathname string) (io.ReadCloser, error) {
	if err := checkPathname(pathname); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, pathname))
	if os.IsNotExist(err) {
		return nil, pkgerrors.NewNotFoundError("blob " + pathname)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", pathname, err)
	}
	return f, nil
}

// PathnameFromURL strips the base URL
func (s *LocalStore) PathnameFromURL(url string) (string, bool) {
	return trimBase(url, s.baseURL)
}

func trimBase(url, base string) (string, bool) {
	if !strings.HasPrefix(url, base) {
		return "", false
	}
	name := strings.TrimPrefix(url, base)
	if checkPathname(name) != nil {
		return "", false
	}
	return name, true
}

// checkPathname accepts a single path element
func checkPathname(pathname string) error {
	if pathname == "" || pathname != path.Base(pathname) || strings.ContainsAny(pathname, `/\`) ||
		pathname == "." || pathname == ".." || strings.HasPrefix(pathname, ".") {
		return pkgerrors.NewValidationError(fmt.Sprintf("invalid blob pathname %q", pathname))
	}
	return nil
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func sortNewestFirst(objs []ports.BlobObject) {
	sort.SliceStable(objs, func(i, j int) bool {
		if objs[i].UploadedAt.Equal(objs[j].UploadedAt) {
			return objs[i].Pathname < objs[j].Pathname
		}
		return objs[i].UploadedAt.After(objs[j].UploadedAt)
	})
}
