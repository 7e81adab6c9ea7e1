package application

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/go-verity/internal/domain"
)

func resultOf(score float64, degraded bool, signals ...domain.SignalResult) domain.AggregateResult {
	effective := map[domain.SignalKind]float64{}
	for _, s := range signals {
		if s.Available() {
			effective[s.Kind] = 1
		}
	}
	return domain.AggregateResult{
		OverallScore:     score,
		Label:            domain.LabelForScore(score),
		Signals:          signals,
		EffectiveWeights: effective,
		Degraded:         degraded,
	}
}

// TestExplain tests the sentences produced for the common outcomes.
func TestExplain(t *testing.T) {
	tests := []struct {
		name    string
		input   domain.AnalysisInput
		result  domain.AggregateResult
		ev      domain.EvidenceResult
		want    []string
		notWant []string
	}{
		{
			name:  "trusted source",
			input: domain.AnalysisInput{URL: "https://www.reuters.com/world/x"},
			result: resultOf(0.91, false,
				domain.Scored(domain.SignalDomainTrust, 0.95, 1, ""),
				domain.Scored(domain.SignalLinguistic, 0.85, 0.6, ""),
			),
			ev: domain.EvidenceResult{Mode: domain.EvidenceFound, Items: []domain.EvidenceItem{{}, {}}},
			want: []string{
				"Content appears trustworthy (score: 0.91)",
				"Source (reuters.com) is highly trusted",
				"Language patterns suggest professional journalism",
				"Found 2 related fact check(s)",
				"Content meets credibility standards.",
			},
			notWant: []string{"Degraded"},
		},
		{
			name:  "unknown source and clickbait",
			input: domain.AnalysisInput{URL: "http://blog.example/post"},
			result: resultOf(0.2, false,
				domain.Abstained(domain.SignalDomainTrust, "unknown domain"),
				domain.Scored(domain.SignalLinguistic, 0.2, 0.6, ""),
			),
			ev: domain.EvidenceResult{Mode: domain.EvidenceNone},
			want: []string{
				"Content shows signs of misinformation (score: 0.20)",
				"Source credibility could not be verified",
				"Language contains clickbait or manipulation patterns",
				"No related fact checks were found",
				"Strongly recommend verifying with trusted sources.",
			},
		},
		{
			name:  "degraded with simulated evidence",
			input: domain.AnalysisInput{Text: "some text"},
			result: resultOf(0.55, true,
				domain.Scored(domain.SignalLinguistic, 0.55, 0.6, ""),
				domain.Unavailable(domain.SignalTextModel, "timed out"),
			),
			ev: domain.EvidenceResult{Mode: domain.EvidenceSimulated},
			want: []string{
				"Content shows mixed signals (score: 0.55)",
				"Text model was unavailable",
				"Degraded mode: only 1 signal(s) contributed",
				"sample data, not search results",
				"Recommend verifying with additional sources.",
			},
		},
		{
			name:   "url without a domain signal",
			input:  domain.AnalysisInput{URL: "https://example.org/x"},
			result: resultOf(0.5, false, domain.Scored(domain.SignalTextModel, 0.5, 0.9, "")),
			ev:     domain.EvidenceResult{Mode: domain.EvidenceUnavailable},
			want: []string{
				"Text model rated the content 0.50",
				"Source credibility could not be verified",
				"Evidence search was unavailable",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Explain(tt.input, tt.result, tt.ev)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, got, w)
			}
			assert.True(t, strings.HasSuffix(got, "."))
			assert.NotContains(t, got, "..")
		})
	}
}
