// Package idempotency guards mutating endpoints against duplicate
// submissions. A client sends an Idempotency-Key header; the first request
// under that key runs normally and its response is recorded, retries replay
// the recorded response, and reuse of the key for a different request is
// rejected. Checkout is the primary consumer: a retried POST /api/checkout
// must not create a second order.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL bounds how long a recorded response stays replayable.
const DefaultTTL = 24 * time.Hour

// ErrKeyReused reports an idempotency key presented with a request body or
// target that differs from the one the key was first used for.
var ErrKeyReused = errors.New("idempotency: key already used for a different request")

// Outcome says what the caller should do after reserving a key.
type Outcome int

const (
	// OutcomeProceed means the key is freshly reserved; run the handler.
	OutcomeProceed Outcome = iota
	// OutcomeReplay means a recorded response exists; return it as-is.
	OutcomeReplay
	// OutcomeInFlight means another request holds the key right now.
	OutcomeInFlight
)

// Reservation is the result of Reserve. Response is populated only for
// OutcomeReplay.
type Reservation struct {
	Outcome  Outcome
	Response Response
}

// Response is the portion of an HTTP response worth replaying.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Store persists one record per idempotency key. Reserve claims the key (or
// reports what happened to it before), SaveResponse records the handler's
// response for replay, Release frees a key whose request could not complete,
// and CleanupExpired removes stale records.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// recordID derives the storage identifier for a key. Hashing keeps arbitrary
// client-chosen keys safe to use as document ids.
func recordID(key string) string {
	return hashHex([]byte(strings.TrimSpace(key)))
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint condenses the request identity the key is bound to: method,
// path, and body. Two requests with the same key must match on all three.
func Fingerprint(method, path string, body []byte) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(strings.TrimSpace(method)))
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	if len(body) > 0 {
		b.WriteString(hashHex(body))
	}
	return hashHex([]byte(b.String()))
}

// storableHeader copies a response header, dropping entries that describe the
// individual exchange rather than the payload.
func storableHeader(header http.Header) http.Header {
	if len(header) == 0 {
		return nil
	}
	kept := make(http.Header, len(header))
	for name, values := range header {
		if perExchangeHeader(name) {
			continue
		}
		kept[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func perExchangeHeader(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "content-length", "date", "connection", "keep-alive",
		"transfer-encoding", "trailer", "upgrade", "te":
		return true
	}
	return false
}
