package signals

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-verity/internal/domain"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.bbc.com/news/x", "bbc.com"},
		{"http://BBC.com:8080/path?q=1", "bbc.com"},
		{"www.reuters.com", "reuters.com"},
		{"reuters.com/world", "reuters.com"},
		{"https://news.bbc.co.uk.", "news.bbc.co.uk"},
		{"", ""},
		{"   ", ""},
		{"https://", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDomain(tt.in))
		})
	}
}

func TestDomainTrustProvider_Evaluate(t *testing.T) {
	p, err := NewDomainTrustProvider(DefaultDomainTables())
	require.NoError(t, err)

	tests := []struct {
		name      string
		url       string
		wantScore *float64
	}{
		{name: "trusted exact", url: "https://www.bbc.com/news/x", wantScore: ptr(0.97)},
		{name: "untrusted exact", url: "https://infowars.com/a", wantScore: ptr(0.15)},
		{name: "trusted subdomain is discounted", url: "https://edition.cnn.com/2024/story", wantScore: ptr(0.87 * subdomainDiscount)},
		{name: "untrusted subdomain keeps score", url: "https://shop.naturalnews.com", wantScore: ptr(0.20)},
		{name: "trusted entry below registrable domain", url: "https://abcnews.go.com/US", wantScore: ptr(0.88)},
		{name: "gov suffix", url: "https://www.whitehouse.gov/briefing", wantScore: ptr(0.92)},
		{name: "edu suffix", url: "https://cs.stanford.edu/people", wantScore: ptr(0.88)},
		{name: "unknown abstains", url: "http://random-blog.example/post"},
		{name: "suspicious tld", url: "https://www.conspiracy-truth-revealed.xyz/moon-fake", wantScore: ptr(0.35)},
		{name: "free tld", url: "http://free-news.tk/x", wantScore: ptr(0.35)},
		{name: "nested host under suspicious tld", url: "https://a.b.c.d.example.info/", wantScore: ptr(0.35 - nestedHostPenalty)},
		{name: "nested host under trusted parent", url: "https://a.b.c.news.bbc.com/", wantScore: ptr(0.97*subdomainDiscount - nestedHostPenalty)},
		{name: "nested unknown host abstains", url: "https://a.b.c.d.random.example/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := domain.AnalysisInput{Text: "body", URL: tt.url}
			require.True(t, p.Applicable(in))

			res, err := p.Evaluate(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, domain.SignalDomainTrust, res.Kind)

			if tt.wantScore == nil {
				assert.Equal(t, domain.StatusAbstained, res.Status)
				assert.Nil(t, res.Score)
				assert.False(t, res.Available())
				return
			}
			require.True(t, res.Available())
			assert.InDelta(t, *tt.wantScore, res.ScoreValue(), 1e-9)
			assert.NotEmpty(t, res.Detail)
		})
	}
}

func TestDomainTrustProvider_NotApplicableWithoutURL(t *testing.T) {
	p, err := NewDomainTrustProvider(DefaultDomainTables())
	require.NoError(t, err)
	assert.False(t, p.Applicable(domain.AnalysisInput{Text: "text only"}))
}

func TestDomainTrustProvider_InvalidTables(t *testing.T) {
	_, err := NewDomainTrustProvider(DomainTables{Trusted: map[string]float64{"x.com": 1.5}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestLoadDomainTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.yaml")
	body := `
trusted:
  local-paper.example: 0.81
  BBC.com: 0.5
untrusted:
  hoax.example: 0.05
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Run("extends defaults", func(t *testing.T) {
		tables, err := LoadDomainTables(path, false)
		require.NoError(t, err)

		assert.InDelta(t, 0.81, tables.Trusted["local-paper.example"], 1e-9)
		assert.InDelta(t, 0.5, tables.Trusted["bbc.com"], 1e-9, "file entries win and keys are lowercased")
		assert.InDelta(t, 0.98, tables.Trusted["reuters.com"], 1e-9)
		assert.InDelta(t, 0.92, tables.Suffixes["gov"], 1e-9)
	})

	t.Run("replaces defaults", func(t *testing.T) {
		tables, err := LoadDomainTables(path, true)
		require.NoError(t, err)

		assert.NotContains(t, tables.Trusted, "reuters.com")
		assert.Contains(t, tables.Untrusted, "hoax.example")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadDomainTables(filepath.Join(t.TempDir(), "none.yaml"), false)
		require.Error(t, err)
	})

	t.Run("out of range score", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("trusted:\n  x.example: 2\n"), 0o600))
		_, err := LoadDomainTables(bad, false)
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})
}

func ptr(v float64) *float64 { return &v }
