package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// maxTokenLength bounds incoming page tokens. Cursors carry at most a couple
// of Firestore sort values, so anything larger is rejected before decoding.
const maxTokenLength = 512

// EncodeToken serialises a cursor into an opaque URL-safe page token. An empty
// cursor yields an empty token so callers can hand it straight to clients.
func EncodeToken(cursor Cursor) (string, error) {
	if len(cursor.StartAfter) == 0 && len(cursor.StartAt) == 0 {
		return "", nil
	}
	payload, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeToken reverses EncodeToken. Blank tokens decode to a zero cursor;
// malformed or oversized tokens fail with ErrInvalidPageToken.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	if len(token) > maxTokenLength {
		return Cursor{}, fmt.Errorf("%w: token exceeds %d characters", ErrInvalidPageToken, maxTokenLength)
	}
	payload, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(payload, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return cursor, nil
}
