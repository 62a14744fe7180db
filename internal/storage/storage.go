// Package storage stores avatar images and returns their public URLs
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrUnsupportedType is returned for files that are not an accepted image type
var ErrUnsupportedType = errors.New("unsupported avatar type")

// ErrTooLarge is returned for files larger than the configured limit
var ErrTooLarge = errors.New("avatar too large")

// AllowedTypes maps accepted content types to file extensions
var AllowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AvatarStore persists avatar files
type AvatarStore interface {
	// Save stores the file and returns its public URL
	Save(ctx context.Context, userID, contentType string, r io.Reader, size int64) (string, error)
	// Remove deletes the file behind a URL previously returned by Save for
	// userID. URLs the store does not own, or that belong to another user,
	// are ignored.
	Remove(ctx context.Context, userID, url string) error
	// Owns reports whether url points into the store
	Owns(url string) bool
}

// Validate checks the content type and size of an upload
func Validate(contentType string, size, maxBytes int64) error {
	if _, ok := AllowedTypes[contentType]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if size <= 0 || (maxBytes > 0 && size > maxBytes) {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	return nil
}

// objectName builds a unique key for a user's avatar
func objectName(userID, contentType string) string {
	return path.Join("avatars", userID, uuid.NewString()+AllowedTypes[contentType])
}

// ownedKey returns the object key of url when it lies below the avatar
// prefix of userID
func ownedKey(baseURL, userID, url string) (string, bool) {
	key, ok := keyFromURL(baseURL, url)
	if !ok || userID == "" || strings.ContainsAny(userID, "/\\") {
		return "", false
	}
	if !strings.HasPrefix(key, path.Join("avatars", userID)+"/") {
		return "", false
	}
	return key, true
}

// keyFromURL returns the object key of url under baseURL, if it is one
func keyFromURL(baseURL, url string) (string, bool) {
	if baseURL == "" || !strings.HasPrefix(url, baseURL) {
		return "", false
	}
	key := strings.TrimPrefix(strings.TrimPrefix(url, baseURL), "/")
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
