package idempotency

import (
	"context"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/solebound/api/internal/platform/firestore"
)

const defaultCollection = "idempotency_records"

// FirestoreStore persists idempotency records in a Firestore collection so
// replay protection holds across instances. Reserve and SaveResponse run in
// transactions; the claim check and the write commit atomically.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// FirestoreOption adjusts FirestoreStore construction.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection the records live in.
func WithCollection(name string) FirestoreOption {
	return func(s *FirestoreStore) {
		if name != "" {
			s.collection = name
		}
	}
}

// NewFirestoreStore wraps the client into a Store.
func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) *FirestoreStore {
	store := &FirestoreStore{client: client, collection: defaultCollection}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

var _ Store = (*FirestoreStore)(nil)

// recordDoc is the Firestore document layout for one idempotency key.
type recordDoc struct {
	Key         string              `firestore:"key"`
	Fingerprint string              `firestore:"fingerprint"`
	Completed   bool                `firestore:"completed"`
	StatusCode  int                 `firestore:"status_code"`
	Header      map[string][]string `firestore:"header,omitempty"`
	Body        []byte              `firestore:"body,omitempty"`
	CreatedAt   time.Time           `firestore:"created_at"`
	UpdatedAt   time.Time           `firestore:"updated_at"`
	ExpiresAt   time.Time           `firestore:"expires_at"`
}

func (d recordDoc) response() Response {
	resp := Response{StatusCode: d.StatusCode, Body: d.Body}
	if len(d.Header) > 0 {
		header := make(http.Header, len(d.Header))
		for name, values := range d.Header {
			header[name] = append([]string(nil), values...)
		}
		resp.Header = header
	}
	return resp
}

func (d recordDoc) expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && !now.Before(d.ExpiresAt)
}

// Reserve claims the key inside a transaction. Missing and expired records
// become fresh pending claims; live records replay, report in-flight, or
// reject a fingerprint mismatch.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(s.collection).Doc(recordID(key))

	var reservation Reservation
	err := pfirestore.RunTransaction(ctx, s.client, func(_ context.Context, tx *firestore.Transaction) error {
		doc, found, err := readRecord(tx, ref)
		if err != nil {
			return err
		}

		if !found || doc.expired(now) {
			claim := recordDoc{
				Key:         key,
				Fingerprint: fingerprint,
				CreatedAt:   now,
				UpdatedAt:   now,
				ExpiresAt:   now.Add(ttl),
			}
			if err := tx.Set(ref, claim); err != nil {
				return err
			}
			reservation = Reservation{Outcome: OutcomeProceed}
			return nil
		}

		if doc.Fingerprint != fingerprint {
			return ErrKeyReused
		}
		if doc.Completed {
			reservation = Reservation{Outcome: OutcomeReplay, Response: doc.response()}
			return nil
		}
		reservation = Reservation{Outcome: OutcomeInFlight}
		return nil
	})

	return reservation, err
}

// SaveResponse records the handler's response under the key.
func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(s.collection).Doc(recordID(key))

	header := storableHeader(resp.Header)
	body := append([]byte(nil), resp.Body...)

	return pfirestore.RunTransaction(ctx, s.client, func(_ context.Context, tx *firestore.Transaction) error {
		doc, found, err := readRecord(tx, ref)
		if err != nil {
			return err
		}
		if found && doc.Fingerprint != fingerprint {
			return ErrKeyReused
		}
		if !found {
			doc = recordDoc{Key: key, Fingerprint: fingerprint, CreatedAt: now}
		}

		doc.Completed = true
		doc.StatusCode = resp.StatusCode
		doc.Header = header
		doc.Body = body
		doc.UpdatedAt = now
		doc.ExpiresAt = now.Add(ttl)
		return tx.Set(ref, doc)
	})
}

// Release deletes the record; a missing record is already released.
func (s *FirestoreStore) Release(ctx context.Context, key, _ string) error {
	_, err := s.client.Collection(s.collection).Doc(recordID(key)).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

// CleanupExpired batch-deletes records past their expiry, up to limit.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	if limit <= 0 {
		limit = 100
	}

	snaps, err := s.client.Collection(s.collection).
		Where("expires_at", "<=", now).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, err
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	writer := s.client.BulkWriter(ctx)
	for _, snap := range snaps {
		if _, err := writer.Delete(snap.Ref); err != nil {
			writer.End()
			return 0, err
		}
	}
	writer.End()
	return len(snaps), nil
}

func readRecord(tx *firestore.Transaction, ref *firestore.DocumentRef) (recordDoc, bool, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return recordDoc{}, false, nil
		}
		return recordDoc{}, false, err
	}
	var doc recordDoc
	if err := snap.DataTo(&doc); err != nil {
		return recordDoc{}, false, err
	}
	return doc, true, nil
}
