package ports

import (
	"context"

	"github.com/ahrav/go-verity/internal/domain"
)

// EvidenceProvider searches for sources that support or refute a text.
type EvidenceProvider interface {
	// Search returns evidence for the query. The result mode tells the
	// caller whether items are real search results, sample data or
	// absent. An error means the search backend failed.
	Search(ctx context.Context, query string) (domain.EvidenceResult, error)

	// Mode returns the mode the provider produces when it succeeds.
	Mode() domain.EvidenceMode
}

// ReportStore persists reports and the flags users attach to them.
// Implementations return domain.ErrNotFound for unknown ids.
type ReportStore interface {
	// Save stores a new report. Reports are immutable, so saving an id
	// twice overwrites the same content.
	Save(ctx context.Context, report *domain.Report) error

	// Get retrieves a report by id.
	Get(ctx context.Context, id string) (*domain.Report, error)

	// Delete removes a report and its flags.
	Delete(ctx context.Context, id string) error

	// AddFlag attaches a flag to an existing report.
	AddFlag(ctx context.Context, flag domain.Flag) error

	// ListFlags returns the flags of a report, oldest first.
	ListFlags(ctx context.Context, reportID string) ([]domain.Flag, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
