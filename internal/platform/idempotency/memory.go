package idempotency

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// memoryRecord is the in-process representation of one key's lifecycle.
type memoryRecord struct {
	fingerprint string
	completed   bool
	statusCode  int
	header      http.Header
	body        []byte
	expiresAt   time.Time
}

func (r memoryRecord) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && !now.Before(r.expiresAt)
}

// MemoryStore keeps idempotency records in process memory. It backs tests and
// single-node deployments; anything load balanced needs the Firestore store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

var _ Store = (*MemoryStore)(nil)

// Reserve claims the key, replacing any expired record. A live record either
// replays its stored response, reports an in-flight holder, or rejects a
// fingerprint mismatch.
func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := recordID(key)
	record, ok := s.records[id]
	if !ok || record.expired(now) {
		s.records[id] = &memoryRecord{
			fingerprint: fingerprint,
			expiresAt:   now.Add(ttl),
		}
		return Reservation{Outcome: OutcomeProceed}, nil
	}
	if record.fingerprint != fingerprint {
		return Reservation{}, ErrKeyReused
	}
	if record.completed {
		return Reservation{Outcome: OutcomeReplay, Response: record.response()}, nil
	}
	return Reservation{Outcome: OutcomeInFlight}, nil
}

// SaveResponse marks the key completed and stores the response for replay.
func (s *MemoryStore) SaveResponse(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := recordID(key)
	record, ok := s.records[id]
	if ok && record.fingerprint != fingerprint {
		return ErrKeyReused
	}
	if !ok {
		record = &memoryRecord{fingerprint: fingerprint}
		s.records[id] = record
	}

	record.completed = true
	record.statusCode = resp.StatusCode
	record.header = storableHeader(resp.Header)
	record.body = append([]byte(nil), resp.Body...)
	record.expiresAt = now.Add(ttl)
	return nil
}

// Release drops the record so a later attempt can start over.
func (s *MemoryStore) Release(_ context.Context, key, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordID(key))
	return nil
}

// CleanupExpired removes up to limit expired records and reports how many went.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, record := range s.records {
		if limit > 0 && removed >= limit {
			break
		}
		if record.expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

func (r *memoryRecord) response() Response {
	resp := Response{StatusCode: r.statusCode}
	if len(r.header) > 0 {
		resp.Header = r.header.Clone()
	}
	if len(r.body) > 0 {
		resp.Body = append([]byte(nil), r.body...)
	}
	return resp
}
