package evidence

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

// snippetQueryChars is how much of the query a sample snippet echoes.
const snippetQueryChars = 100

type sampleDesk struct {
	url, source, lead, blurb string
}

var sampleDesks = []sampleDesk{
	{
		url:    "https://www.reuters.com/fact-check",
		source: "Reuters",
		lead:   "Fact-checking related to",
		blurb:  "Reuters provides independent verification of claims and news stories.",
	},
	{
		url:    "https://www.bbc.com/news/reality_check",
		source: "BBC Reality Check",
		lead:   "Analysis of claims regarding",
		blurb:  "BBC Reality Check team investigates the facts behind the stories.",
	},
	{
		url:    "https://apnews.com/hub/fact-checking",
		source: "AP News",
		lead:   "Fact-check on",
		blurb:  "Associated Press verifies claims with rigorous journalistic standards.",
	},
}

// SimulatedProvider returns fixed sample items pointing at well known
// fact-check desks. Its results are always marked simulated and it is
// only used when configured explicitly, for demos and local development.
type SimulatedProvider struct {
	maxResults int
}

var _ ports.EvidenceProvider = (*SimulatedProvider)(nil)

// NewSimulatedProvider creates a SimulatedProvider returning at most
// maxResults items.
func NewSimulatedProvider(maxResults int) *SimulatedProvider {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &SimulatedProvider{maxResults: maxResults}
}

// Mode returns domain.EvidenceSimulated.
func (p *SimulatedProvider) Mode() domain.EvidenceMode { return domain.EvidenceSimulated }

// Search returns the sample items with the query echoed in each snippet.
func (p *SimulatedProvider) Search(ctx context.Context, query string) (domain.EvidenceResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EvidenceResult{}, err
	}
	echo := query
	if utf8.RuneCountInString(echo) > snippetQueryChars {
		echo = string([]rune(echo)[:snippetQueryChars])
	}
	items := make([]domain.EvidenceItem, 0, len(sampleDesks))
	for _, d := range sampleDesks {
		items = append(items, domain.EvidenceItem{
			URL:     d.url,
			Source:  d.source,
			Snippet: fmt.Sprintf("%s: %s... %s", d.lead, echo, d.blurb),
		})
	}
	return domain.EvidenceResult{Mode: domain.EvidenceSimulated, Items: Dedupe(items, p.maxResults)}, nil
}

// DisabledProvider is used when no evidence backend is configured.
type DisabledProvider struct{}

var _ ports.EvidenceProvider = DisabledProvider{}

// Mode returns domain.EvidenceUnavailable.
func (DisabledProvider) Mode() domain.EvidenceMode { return domain.EvidenceUnavailable }

// Search returns an empty unavailable result.
func (DisabledProvider) Search(context.Context, string) (domain.EvidenceResult, error) {
	return domain.EvidenceResult{Mode: domain.EvidenceUnavailable}, nil
}
