// Package signals implements the signal providers that feed the
// aggregator: domain reputation, linguistic heuristics and the adapters
// that turn classifier backends into signals.
//
// Every provider is stateless after construction and safe for concurrent
// use. Providers report "no opinion" as an abstained SignalResult rather
// than an error; errors are reserved for genuine failures.
package signals

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/publicsuffix"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

const (
	// subdomainDiscount scales a trusted parent's score for its subdomains.
	subdomainDiscount = 0.95

	// Hosts with more than maxHostDots dots lose nestedHostPenalty.
	maxHostDots       = 3
	nestedHostPenalty = 0.08

	exactMatchConfidence  = 0.9
	parentMatchConfidence = 0.8
	suffixRuleConfidence  = 0.7
)

// DomainTables holds the reputation tables. Scores are in [0,1].
type DomainTables struct {
	Trusted   map[string]float64 `yaml:"trusted"`
	Untrusted map[string]float64 `yaml:"untrusted"`
	// Suffixes scores hosts by their public suffix, e.g. "gov" or "edu".
	Suffixes map[string]float64 `yaml:"suffixes"`
}

// Validate checks every score is within [0,1].
func (t DomainTables) Validate() error {
	verr := domain.NewConfigValidationError("domain_tables")
	for name, table := range map[string]map[string]float64{
		"trusted":   t.Trusted,
		"untrusted": t.Untrusted,
		"suffixes":  t.Suffixes,
	} {
		for d, s := range table {
			if err := domain.ValidateScore(s); err != nil {
				verr.AddError(fmt.Sprintf("%s[%s]: %v", name, d, err))
			}
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Merge overlays other on t. Entries in other win.
func (t DomainTables) Merge(other DomainTables) DomainTables {
	out := DomainTables{
		Trusted:   mergeScores(t.Trusted, other.Trusted),
		Untrusted: mergeScores(t.Untrusted, other.Untrusted),
		Suffixes:  mergeScores(t.Suffixes, other.Suffixes),
	}
	return out
}

func mergeScores(a, b map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(a)+len(b))
	for k, v := range a {
		out[strings.ToLower(k)] = v
	}
	for k, v := range b {
		out[strings.ToLower(k)] = v
	}
	return out
}

// LoadDomainTables reads tables from a YAML file. When replace is false the
// file extends the built-in tables.
func LoadDomainTables(path string, replace bool) (DomainTables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DomainTables{}, ports.NewConfigError("domains_file", err)
	}
	var file DomainTables
	if err := yaml.Unmarshal(data, &file); err != nil {
		return DomainTables{}, ports.NewConfigError("domains_file", fmt.Errorf("parse %s: %w", path, err))
	}

	base := DomainTables{}
	if !replace {
		base = DefaultDomainTables()
	}
	tables := base.Merge(file)
	if err := tables.Validate(); err != nil {
		return DomainTables{}, err
	}
	return tables, nil
}

// DomainTrustProvider scores the page's domain against reputation tables.
type DomainTrustProvider struct {
	tables DomainTables
}

var _ ports.SignalProvider = (*DomainTrustProvider)(nil)

// NewDomainTrustProvider validates and normalizes the tables.
func NewDomainTrustProvider(tables DomainTables) (*DomainTrustProvider, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &DomainTrustProvider{tables: DomainTables{}.Merge(tables)}, nil
}

// Kind returns domain.SignalDomainTrust.
func (p *DomainTrustProvider) Kind() domain.SignalKind { return domain.SignalDomainTrust }

// Applicable reports whether the input carries a page URL.
func (p *DomainTrustProvider) Applicable(in domain.AnalysisInput) bool {
	return strings.TrimSpace(in.URL) != ""
}

// Evaluate looks the domain up. Unknown domains abstain.
func (p *DomainTrustProvider) Evaluate(_ context.Context, in domain.AnalysisInput) (domain.SignalResult, error) {
	host := NormalizeDomain(in.URL)
	if host == "" {
		return domain.Abstained(p.Kind(), "url has no host"), nil
	}
	score, conf, detail, ok := p.Lookup(host)
	if !ok {
		return domain.Abstained(p.Kind(), fmt.Sprintf("%s is not in the reputation tables", host)), nil
	}
	return domain.Scored(p.Kind(), score, conf, detail), nil
}

// Lookup scores a normalized host. The order is exact untrusted, exact
// trusted, parent domains up to the registrable domain, then suffix rules.
// A matched host nested under many subdomains is scored lower.
func (p *DomainTrustProvider) Lookup(host string) (score, confidence float64, detail string, ok bool) {
	score, confidence, detail, ok = p.lookup(host)
	if ok && strings.Count(host, ".") > maxHostDots {
		score = max(0, score-nestedHostPenalty)
		detail += fmt.Sprintf("; %s is nested under an unusual number of subdomains", host)
	}
	return score, confidence, detail, ok
}

func (p *DomainTrustProvider) lookup(host string) (score, confidence float64, detail string, ok bool) {
	if s, found := p.tables.Untrusted[host]; found {
		return s, exactMatchConfidence, host + " is a known unreliable source", true
	}
	if s, found := p.tables.Trusted[host]; found {
		return s, exactMatchConfidence, host + " is a trusted source", true
	}

	for _, parent := range parentDomains(host) {
		if s, found := p.tables.Untrusted[parent]; found {
			return s, parentMatchConfidence, fmt.Sprintf("%s belongs to unreliable source %s", host, parent), true
		}
		if s, found := p.tables.Trusted[parent]; found {
			return s * subdomainDiscount, parentMatchConfidence, fmt.Sprintf("%s belongs to trusted source %s", host, parent), true
		}
	}

	suffix, _ := publicsuffix.PublicSuffix(host)
	for _, candidate := range []string{suffix, lastLabel(host)} {
		if s, found := p.tables.Suffixes[candidate]; found {
			return s, suffixRuleConfidence, fmt.Sprintf("%s is under the .%s domain", host, candidate), true
		}
	}
	return 0, 0, "", false
}

// NormalizeDomain reduces a URL or bare host to a lowercase host without
// scheme, port, path or leading "www.". It returns "" when no host can be
// found.
func NormalizeDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	host = strings.TrimPrefix(host, "www.")
	return host
}

// parentDomains lists the strict parents of host from most to least
// specific, stopping at the registrable domain.
func parentDomains(host string) []string {
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil || registrable == host {
		return nil
	}
	var parents []string
	rest := host
	for {
		i := strings.IndexByte(rest, '.')
		if i < 0 {
			break
		}
		rest = rest[i+1:]
		parents = append(parents, rest)
		if rest == registrable {
			break
		}
	}
	return parents
}

func lastLabel(host string) string {
	if i := strings.LastIndexByte(host, '.'); i >= 0 {
		return host[i+1:]
	}
	return host
}
