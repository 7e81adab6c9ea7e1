package signals

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

// linguisticConfidence is reported with every heuristic score. Pattern
// matching is a weak signal compared to a trained model.
const linguisticConfidence = 0.6

// Category names reported in penalties.
const (
	CategoryExcessiveCaps      = "excessive_caps"
	CategoryExcessivePunct     = "excessive_punctuation"
	CategoryClickbait          = "clickbait"
	CategoryUrgencyFear        = "urgency_fear"
	CategoryConspiracy         = "conspiracy"
	CategoryDebunkedClaim      = "debunked_claim"
	CategoryUnsourcedAuthority = "unsourced_authority"
	CategoryThinContent        = "thin_content"
	CategoryAttribution        = "attribution"
	CategoryParagraphs         = "paragraph_structure"
	CategoryLongForm           = "long_form"
)

const (
	minWordsForSubstantialText = 50
	minWordsForLongForm        = 300
	structureCredit            = 0.05
	// Shorter texts give a meaningless uppercase ratio.
	minLettersForCapsHeuristics = 20
)

var apostrophes = strings.NewReplacer("\u2019", "'", "\u2018", "'")

// phraseCategory charges per occurrence of any phrase, up to limit.
type phraseCategory struct {
	name    string
	phrases []string
	each    float64
	limit   float64
}

var phraseCategories = []phraseCategory{
	{
		name: CategoryClickbait,
		phrases: []string{
			"you won't believe", "doctors hate", "what happens next will shock you",
			"they don't want you to know", "secret they're hiding", "big pharma doesn't want",
			"mainstream media won't tell you", "this one weird trick",
		},
		each: 0.20, limit: 0.40,
	},
	{
		name: CategoryUrgencyFear,
		phrases: []string{
			"act now", "before it's too late", "last chance to", "limited time only",
			"shocking", "horrifying", "outrageous", "devastating", "share before it's deleted",
		},
		each: 0.08, limit: 0.30,
	},
	{
		name: CategoryConspiracy,
		phrases: []string{
			"wake up sheeple", "deep state", "false flag", "new world order",
			"do your own research", "cover-up", "the elites",
		},
		each: 0.15, limit: 0.30,
	},
	{
		name: CategoryDebunkedClaim,
		phrases: []string{
			"earth is flat", "flat earth", "vaccines cause autism", "5g causes",
			"moon landing was faked", "moon landing was fake", "chemtrails",
			"climate change is a hoax",
		},
		each: 0.50, limit: 0.50,
	},
}

var (
	authorityPhrases = []string{
		"scientists confirm", "experts agree", "studies show", "doctors say",
		"researchers found", "science says",
	}
	attributionPhrases = []string{
		"according to", "study published in", "peer-reviewed", "reported by",
		"confirmed by", "verified by", "officials said", "data from", "meta-analysis",
	}
)

// Penalty is one matched category and what it cost. Credits for
// attribution and for paragraph or long-form structure are negative.
type Penalty struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Matches  int     `json:"matches"`
}

// LinguisticAnalysis is the outcome of the heuristic over one text.
type LinguisticAnalysis struct {
	Score     float64   `json:"score"`
	Penalties []Penalty `json:"penalties"`
}

// AnalyzeText runs the heuristic. It is pure and deterministic.
func AnalyzeText(text string) LinguisticAnalysis {
	folded := apostrophes.Replace(cases.Fold().String(text))
	var penalties []Penalty

	if p, ok := capsPenalty(text); ok {
		penalties = append(penalties, p)
	}
	if p, ok := punctuationPenalty(text); ok {
		penalties = append(penalties, p)
	}

	for _, cat := range phraseCategories {
		n := countPhrases(folded, cat.phrases)
		if n == 0 {
			continue
		}
		penalties = append(penalties, Penalty{
			Category: cat.name,
			Amount:   math.Min(cat.each*float64(n), cat.limit),
			Matches:  n,
		})
	}

	attributions := countPhrases(folded, attributionPhrases)
	if n := countPhrases(folded, authorityPhrases); n > 0 && attributions == 0 {
		penalties = append(penalties, Penalty{Category: CategoryUnsourcedAuthority, Amount: 0.20, Matches: n})
	}
	switch words := len(strings.Fields(text)); {
	case words < minWordsForSubstantialText:
		penalties = append(penalties, Penalty{Category: CategoryThinContent, Amount: 0.15, Matches: words})
	case words > minWordsForLongForm:
		penalties = append(penalties, Penalty{Category: CategoryLongForm, Amount: -structureCredit, Matches: words})
	}
	if n := countParagraphs(text); n >= 2 {
		penalties = append(penalties, Penalty{Category: CategoryParagraphs, Amount: -structureCredit, Matches: n})
	}
	if attributions > 0 {
		penalties = append(penalties, Penalty{
			Category: CategoryAttribution,
			Amount:   -math.Min(0.05*float64(attributions), 0.15),
			Matches:  attributions,
		})
	}

	total := 0.0
	for _, p := range penalties {
		total += p.Amount
	}
	return LinguisticAnalysis{Score: clamp01(1 - total), Penalties: penalties}
}

func capsPenalty(text string) (Penalty, bool) {
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters < minLettersForCapsHeuristics {
		return Penalty{}, false
	}
	ratio := float64(upper) / float64(letters)
	switch {
	case ratio > 0.30:
		return Penalty{Category: CategoryExcessiveCaps, Amount: 0.20, Matches: upper}, true
	case ratio > 0.15:
		return Penalty{Category: CategoryExcessiveCaps, Amount: 0.10, Matches: upper}, true
	default:
		return Penalty{}, false
	}
}

func punctuationPenalty(text string) (Penalty, bool) {
	var amount float64
	matches := 0
	if n := strings.Count(text, "!"); n > 5 {
		amount += 0.15
		matches += n
	}
	if n := strings.Count(text, "?"); n > 8 {
		amount += 0.08
		matches += n
	}
	if n := strings.Count(text, "!!") + strings.Count(text, "?!"); n > 0 {
		amount += 0.05
		matches += n
	}
	if amount == 0 {
		return Penalty{}, false
	}
	return Penalty{Category: CategoryExcessivePunct, Amount: amount, Matches: matches}, true
}

// countParagraphs counts non-blank blocks separated by an empty line.
func countParagraphs(text string) int {
	n := 0
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if strings.TrimSpace(block) != "" {
			n++
		}
	}
	return n
}

func countPhrases(folded string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		n += strings.Count(folded, p)
	}
	return n
}

// LinguisticProvider scores text with AnalyzeText. It never abstains on
// non-empty text, which makes it the fallback of last resort.
type LinguisticProvider struct{}

var _ ports.SignalProvider = LinguisticProvider{}

// NewLinguisticProvider returns the heuristic provider.
func NewLinguisticProvider() LinguisticProvider { return LinguisticProvider{} }

// Kind returns domain.SignalLinguistic.
func (LinguisticProvider) Kind() domain.SignalKind { return domain.SignalLinguistic }

// Applicable reports whether there is text to analyze.
func (LinguisticProvider) Applicable(in domain.AnalysisInput) bool {
	return strings.TrimSpace(in.Text) != ""
}

// Evaluate scores in.Text. Matched categories are listed in Detail.
func (p LinguisticProvider) Evaluate(_ context.Context, in domain.AnalysisInput) (domain.SignalResult, error) {
	a := AnalyzeText(in.Text)
	return domain.Scored(p.Kind(), a.Score, linguisticConfidence, describePenalties(a.Penalties)), nil
}

func describePenalties(penalties []Penalty) string {
	if len(penalties) == 0 {
		return "no manipulation patterns detected"
	}
	names := make([]string, 0, len(penalties))
	for _, p := range penalties {
		names = append(names, fmt.Sprintf("%s(%+.2f)", p.Category, -p.Amount))
	}
	sort.Strings(names)
	return "matched " + strings.Join(names, ", ")
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
