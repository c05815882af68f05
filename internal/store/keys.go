package store

import (
	"fmt"
	"path"
	"strings"
)

// Storage keys follow the layout album/{userID}/.../filename. The second
// path segment identifies the owning user and the directory portion is the
// album partition, so both identities derive from the key alone.

// ParseOriginalKey extracts the user ID and album ID from a storage key.
// Returns an error for keys that do not match the album/{userID}/... layout;
// such keys cannot be attributed to a user and are rejected at ingestion.
func ParseOriginalKey(originalKey string) (userID, albumID string, err error) {
	parts := strings.Split(originalKey, "/")
	if len(parts) < 3 || parts[0] != "album" || parts[1] == "" {
		return "", "", fmt.Errorf("key %q does not match album/{userID}/... layout", originalKey)
	}
	return parts[1], path.Dir(originalKey), nil
}

// AlbumID returns the album partition a storage key belongs to (its
// directory portion).
func AlbumID(imageKey string) string {
	return path.Dir(imageKey)
}

// AlbumPrefix returns the S3 listing prefix covering every image a user owns.
func AlbumPrefix(userID string) string {
	return "album/" + userID + "/"
}
