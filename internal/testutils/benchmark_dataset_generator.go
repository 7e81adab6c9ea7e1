package testutils

import (
	"fmt"
	"math/rand/v2"
)

// GenerateSampleBenchmarkDataset builds a synthetic dataset of size
// cases drawn evenly from the built-in content categories. The same
// seed always yields the same dataset.
func GenerateSampleBenchmarkDataset(size int, seed int64) *BenchmarkDataset {
	if size <= 0 {
		size = len(contentCategories)
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))

	cases := make([]BenchmarkCase, 0, size)
	for i := 0; i < size; i++ {
		cat := contentCategories[i%len(contentCategories)]
		subject := benchmarkSubjects[rng.IntN(len(benchmarkSubjects))]
		text := fmt.Sprintf(cat.texts[rng.IntN(len(cat.texts))], subject)
		host := cat.domains[rng.IntN(len(cat.domains))]

		c := BenchmarkCase{
			ID:        fmt.Sprintf("case-%04d", i+1),
			WantLabel: cat.label,
			Category:  cat.name,
		}
		c.Input.Text = text
		// Roughly one case in five has no source URL so the text signals
		// carry the verdict alone.
		if rng.IntN(5) != 0 {
			c.Input.URL = fmt.Sprintf("https://www.%s/articles/%d", host, rng.IntN(100000))
		}
		cases = append(cases, c)
	}

	return &BenchmarkDataset{
		Cases: cases,
		Metadata: DatasetMetadata{
			Name:        "verity-synthetic",
			Version:     "1",
			License:     "CC0-1.0",
			Source:      "generated",
			Description: "Synthetic credibility cases built from templates; not a substitute for a reviewed corpus.",
			Size:        len(cases),
		},
	}
}
