package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalClient stores objects as files under a media root directory.
type LocalClient struct {
	root    string
	baseURL string
}

// NewLocalClient constructs a filesystem backend. baseURL is the prefix the
// HTTP server serves root under, e.g. "/media".
func NewLocalClient(root, baseURL string) (*LocalClient, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("media root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "/media"
	}
	return &LocalClient{root: abs, baseURL: baseURL}, nil
}

// EnsureBucket creates the media root if needed.
func (l *LocalClient) EnsureBucket(_ context.Context) error {
	return os.MkdirAll(l.root, 0o755)
}

// Put writes the object to a temporary file and renames it into place.
func (l *LocalClient) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	target, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// Get opens the object file.
func (l *LocalClient) Get(_ context.Context, key string) (io.ReadCloser, error) {
	target, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes the object file. Deleting a missing object is not an error.
func (l *LocalClient) Delete(_ context.Context, key string) error {
	target, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// URL returns the address the media file server exposes key under.
func (l *LocalClient) URL(key string) string {
	return joinURL(l.baseURL, key)
}

// Bucket returns the media root directory.
func (l *LocalClient) Bucket() string {
	return l.root
}

// path resolves key inside root and rejects keys that escape it.
func (l *LocalClient) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(key, "/")))
	if clean == "." || !filepath.IsLocal(clean) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(l.root, clean), nil
}
