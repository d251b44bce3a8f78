package storage

import (
	"errors"
	"fmt"
	"strings"
)

// IsExternalURL reports whether the media reference is an absolute HTTP(S) URL
// rather than a bucket object path.
func IsExternalURL(ref string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(ref))
	return strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://")
}

// NormalizeObjectPath validates and canonicalises a bucket-relative object path.
func NormalizeObjectPath(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return "", errors.New("storage: object path is required")
	}
	if strings.Contains(trimmed, "..") {
		return "", fmt.Errorf("storage: object path %q contains invalid traversal sequence", ref)
	}
	if strings.Contains(trimmed, "\\") {
		return "", fmt.Errorf("storage: object path %q contains invalid path characters", ref)
	}
	return trimmed, nil
}
