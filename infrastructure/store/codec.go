// Package store implements ports.ReportStore over go-cache, SQLite and
// Redis. All backends serialize reports as JSON so a stored report reads
// back identical regardless of where it was kept.
package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

func encodeReport(r *domain.Report) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil report", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(r.ID) == "" {
		return nil, fmt.Errorf("%w: report has no id", domain.ErrInvalidInput)
	}
	return json.Marshal(r)
}

func decodeReport(b []byte) (*domain.Report, error) {
	var r domain.Report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrCacheCorrupted, err)
	}
	return &r, nil
}

func validateFlag(f domain.Flag) error {
	if strings.TrimSpace(f.ReportID) == "" {
		return fmt.Errorf("%w: flag has no report id", domain.ErrInvalidInput)
	}
	return f.Validate()
}
