// Package storage holds uploaded and sealed documents.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no object exists under a key
	ErrNotFound = errors.New("storage: object not found")
	// ErrPresignUnsupported is returned by backends without URL signing
	ErrPresignUnsupported = errors.New("storage: presigned URLs not supported")
	// ErrInvalidKey is returned for keys that escape the store root
	ErrInvalidKey = errors.New("storage: invalid key")
)

// BlobStore is an object store keyed by slash-separated paths
type BlobStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// PresignGet returns a time-limited download URL
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// DocumentKey builds the key an applicant's upload is stored under
func DocumentKey(ownerID, fileName string, now time.Time) string {
	return fmt.Sprintf("documents/%s/%d-%s", ownerID, now.UnixMilli(), unsafeChars.ReplaceAllString(fileName, "_"))
}

// cleanKey rejects absolute keys and keys that climb out of the root
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
