package application

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-verity/infrastructure/signals"
	"github.com/ahrav/go-verity/internal/domain"
)

// Explain writes the human readable summary of an analysis: a label
// sentence with the score, one sentence per notable signal, a warning
// when the result is degraded, the provenance of the evidence and a
// recommendation.
func Explain(in domain.AnalysisInput, result domain.AggregateResult, ev domain.EvidenceResult) string {
	parts := []string{labelSentence(result)}

	for _, s := range result.Signals {
		if sentence := signalSentence(in, s); sentence != "" {
			parts = append(parts, sentence)
		}
	}
	if !hasSignal(result, domain.SignalDomainTrust) && strings.TrimSpace(in.URL) != "" {
		parts = append(parts, "Source credibility could not be verified")
	}

	if result.Degraded {
		parts = append(parts, fmt.Sprintf(
			"Degraded mode: only %d signal(s) contributed because some providers were unavailable",
			result.AvailableCount()))
	}
	if sentence := evidenceSentence(ev); sentence != "" {
		parts = append(parts, sentence)
	}
	parts = append(parts, recommendation(result.OverallScore))

	return strings.Join(parts, ". ") + "."
}

func labelSentence(r domain.AggregateResult) string {
	switch r.Label {
	case domain.LabelTrustworthy:
		return fmt.Sprintf("Content appears trustworthy (score: %.2f)", r.OverallScore)
	case domain.LabelSuspicious:
		return fmt.Sprintf("Content shows mixed signals (score: %.2f)", r.OverallScore)
	case domain.LabelMisinformation:
		return fmt.Sprintf("Content shows signs of misinformation (score: %.2f)", r.OverallScore)
	default:
		return fmt.Sprintf("Content scored %.2f", r.OverallScore)
	}
}

func signalSentence(in domain.AnalysisInput, s domain.SignalResult) string {
	if s.Status == domain.StatusUnavailable {
		return s.Kind.DisplayName() + " was unavailable"
	}

	switch s.Kind {
	case domain.SignalDomainTrust:
		if !s.Available() {
			return "Source credibility could not be verified"
		}
		score := s.ScoreValue()
		switch {
		case score >= 0.90:
			host := signals.NormalizeDomain(in.URL)
			if host == "" {
				host = "source"
			}
			return fmt.Sprintf("Source (%s) is highly trusted", host)
		case score >= 0.75:
			return "Source has a good reputation in journalism"
		case score < 0.30:
			return "Source has a history of unreliable content"
		}
	case domain.SignalLinguistic:
		if !s.Available() {
			return ""
		}
		switch score := s.ScoreValue(); {
		case score >= 0.70:
			return "Language patterns suggest professional journalism"
		case score < 0.40:
			return "Language contains clickbait or manipulation patterns"
		}
	case domain.SignalTextModel, domain.SignalImageModel, domain.SignalAudioModel:
		if !s.Available() {
			return ""
		}
		return fmt.Sprintf("%s rated the content %.2f", s.Kind.DisplayName(), s.ScoreValue())
	}
	return ""
}

func evidenceSentence(ev domain.EvidenceResult) string {
	switch ev.Mode {
	case domain.EvidenceFound:
		return fmt.Sprintf("Found %d related fact check(s)", len(ev.Items))
	case domain.EvidenceNone:
		return "No related fact checks were found"
	case domain.EvidenceSimulated:
		return "Evidence shown is sample data, not search results"
	case domain.EvidenceUnavailable:
		return "Evidence search was unavailable"
	default:
		return ""
	}
}

func recommendation(score float64) string {
	switch {
	case score >= domain.TrustworthyThreshold:
		return "Content meets credibility standards"
	case score >= domain.SuspiciousThreshold:
		return "Recommend verifying with additional sources"
	default:
		return "Strongly recommend verifying with trusted sources"
	}
}

func hasSignal(r domain.AggregateResult, kind domain.SignalKind) bool {
	for _, s := range r.Signals {
		if s.Kind == kind {
			return true
		}
	}
	return false
}
