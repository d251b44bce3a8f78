package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/api/iterator"

	domain "github.com/solebound/api/internal/domain"
	pfirestore "github.com/solebound/api/internal/platform/firestore"
	"github.com/solebound/api/internal/repositories"
)

// maxDiagnosticsCollections caps the collection listing returned by Collect.
const maxDiagnosticsCollections = 10

// DiagnosticsRepository probes Firestore connectivity for the diagnostics endpoint.
type DiagnosticsRepository struct {
	provider   *pfirestore.Provider
	databaseID string
}

// NewDiagnosticsRepository constructs a Firestore-backed diagnostics repository.
func NewDiagnosticsRepository(provider *pfirestore.Provider, databaseID string) (*DiagnosticsRepository, error) {
	if provider == nil {
		return nil, errors.New("diagnostics repository requires firestore provider")
	}
	return &DiagnosticsRepository{
		provider:   provider,
		databaseID: strings.TrimSpace(databaseID),
	}, nil
}

// Collect reports datastore connectivity. Failures are folded into the report
// rather than returned, so the endpoint stays usable while the backend is down.
func (r *DiagnosticsRepository) Collect(ctx context.Context) (domain.DiagnosticsReport, error) {
	report := domain.DiagnosticsReport{
		Backend:          "running",
		Database:         "unavailable",
		DatabaseName:     r.databaseID,
		ConnectionStatus: "not_connected",
		Collections:      []string{},
		GeneratedAt:      time.Now().UTC(),
	}
	if r == nil || r.provider == nil {
		return report, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return report, nil
	}
	report.Database = "available"

	iter := client.Collections(ctx)
	for len(report.Collections) < maxDiagnosticsCollections {
		coll, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			report.Database = "error"
			return report, nil
		}
		report.Collections = append(report.Collections, coll.ID)
	}

	report.Database = "connected"
	report.ConnectionStatus = "connected"
	return report, nil
}

var _ repositories.DiagnosticsRepository = (*DiagnosticsRepository)(nil)
