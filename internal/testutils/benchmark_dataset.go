package testutils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ahrav/go-verity/internal/domain"
)

// BenchmarkDataset is a collection of labeled analysis inputs used to
// measure how often the pipeline reaches the expected verdict.
type BenchmarkDataset struct {
	// Cases contains every labeled input.
	Cases []BenchmarkCase `json:"cases"`

	// Metadata provides information about the dataset itself.
	Metadata DatasetMetadata `json:"metadata"`
}

// BenchmarkCase is one analysis input with the label a careful human
// reviewer would assign.
type BenchmarkCase struct {
	// ID uniquely identifies this case in the dataset.
	ID string `json:"id"`

	// Input is submitted to the analyzer unchanged.
	Input domain.AnalysisInput `json:"input"`

	// WantLabel is the expected verdict.
	WantLabel domain.Label `json:"expected_label"`

	// Category groups similar cases, such as "wire_report" or
	// "debunked_claim", for per-category accuracy.
	Category string `json:"category,omitempty"`
}

// DatasetMetadata contains information about the benchmark dataset itself,
// including licensing and provenance information.
type DatasetMetadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	License     string `json:"license"`
	Source      string `json:"source"`
	Description string `json:"description"`

	// Size is the number of cases. Zero skips the count check.
	Size int `json:"case_count"`
}

// LoadBenchmarkDataset loads and validates a benchmark dataset from a
// JSON file.
func LoadBenchmarkDataset(path string) (*BenchmarkDataset, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	var dataset BenchmarkDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}
	if err := dataset.Validate(); err != nil {
		return nil, err
	}
	return &dataset, nil
}

// Validate checks that the dataset is non-empty, that case IDs are
// unique and that every case carries a known label and content type.
func (d *BenchmarkDataset) Validate() error {
	verr := domain.NewValidationError("benchmark dataset")
	if len(d.Cases) == 0 {
		verr.AddError("dataset contains no cases")
	}
	if d.Metadata.Size != 0 && d.Metadata.Size != len(d.Cases) {
		verr.AddError(fmt.Sprintf("metadata case_count %d does not match %d cases", d.Metadata.Size, len(d.Cases)))
	}

	seen := make(map[string]bool, len(d.Cases))
	for i, c := range d.Cases {
		if c.ID == "" {
			verr.AddError(fmt.Sprintf("case %d has no id", i))
		} else if seen[c.ID] {
			verr.AddError(fmt.Sprintf("duplicate case id %q", c.ID))
		}
		seen[c.ID] = true

		switch c.WantLabel {
		case domain.LabelTrustworthy, domain.LabelSuspicious, domain.LabelMisinformation:
		default:
			verr.AddError(fmt.Sprintf("case %q has unknown expected_label %q", c.ID, c.WantLabel))
		}
		if !c.Input.Type().Valid() {
			verr.AddError(fmt.Sprintf("case %q has unknown content type %q", c.ID, c.Input.ContentType))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// SaveBenchmarkDataset writes the dataset as indented JSON, creating the
// parent directory when needed.
func SaveBenchmarkDataset(dataset *BenchmarkDataset, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write dataset file: %w", err)
	}
	return nil
}

// DatasetStatistics summarizes the composition of a dataset.
type DatasetStatistics struct {
	TotalCases    int
	LabelCount    map[domain.Label]int
	CategoryCount map[string]int
	ContentCount  map[domain.ContentType]int
	WithSourceURL int
}

// ComputeDatasetStatistics counts cases per label, category and content
// type.
func ComputeDatasetStatistics(dataset *BenchmarkDataset) DatasetStatistics {
	stats := DatasetStatistics{
		TotalCases:    len(dataset.Cases),
		LabelCount:    make(map[domain.Label]int),
		CategoryCount: make(map[string]int),
		ContentCount:  make(map[domain.ContentType]int),
	}
	for _, c := range dataset.Cases {
		stats.LabelCount[c.WantLabel]++
		if c.Category != "" {
			stats.CategoryCount[c.Category]++
		}
		stats.ContentCount[c.Input.Type()]++
		if c.Input.URL != "" {
			stats.WithSourceURL++
		}
	}
	return stats
}
