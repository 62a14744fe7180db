package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps avatars under the public directory served as /public
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates a store rooted at dir. publicURL is the URL the
// directory is served under, e.g. "http://localhost:3007/public/".
func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create public directory: %w", err)
	}
	if !strings.HasSuffix(publicURL, "/") {
		publicURL += "/"
	}
	return &LocalStore{dir: dir, baseURL: publicURL}, nil
}

// Save writes the file below dir
func (s *LocalStore) Save(_ context.Context, userID, contentType string, r io.Reader, size int64) (string, error) {
	key := objectName(userID, contentType)
	dst := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create avatar directory: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create avatar file: %w", err)
	}
	written, err := io.Copy(f, io.LimitReader(r, size))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written != size {
		err = fmt.Errorf("short write: %d of %d bytes", written, size)
	}
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to write avatar file: %w", err)
	}
	return s.baseURL + key, nil
}

// Remove deletes a file previously saved for userID
func (s *LocalStore) Remove(_ context.Context, userID, url string) error {
	key, ok := ownedKey(s.baseURL, userID, url)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove avatar file: %w", err)
	}
	return nil
}

// Owns reports whether url is served from the public directory
func (s *LocalStore) Owns(url string) bool {
	_, ok := keyFromURL(s.baseURL, url)
	return ok
}
