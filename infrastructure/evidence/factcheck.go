package evidence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/factchecktools/v1alpha1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

const (
	// DefaultFactCheckPageSize is the number of claims requested per search.
	DefaultFactCheckPageSize = 5
	defaultLanguageCode      = "en"
)

// FactCheckConfig configures the Google Fact Check Tools backend.
type FactCheckConfig struct {
	// APIKey authenticates against the Fact Check Tools API.
	APIKey string `yaml:"-" json:"-"`

	// Endpoint overrides the API base URL, mainly for tests.
	Endpoint string `yaml:"endpoint" json:"endpoint" validate:"omitempty,url"`

	// PageSize is the number of claims requested per search.
	PageSize int64 `yaml:"page_size" json:"page_size" validate:"omitempty,min=1,max=50"`

	// LanguageCode restricts results to one BCP-47 language.
	LanguageCode string `yaml:"language_code" json:"language_code"`

	// MaxResults bounds the returned items after near-duplicate removal.
	MaxResults int `yaml:"max_results" json:"max_results" validate:"omitempty,min=1,max=20"`
}

// FactCheckProvider searches published claim reviews. Results carry mode
// found or none; backend failures are returned as errors.
type FactCheckProvider struct {
	svc *factchecktools.Service
	cfg FactCheckConfig
}

var _ ports.EvidenceProvider = (*FactCheckProvider)(nil)

// NewFactCheckProvider creates the Fact Check Tools client. An API key is
// required unless an Endpoint override is set.
func NewFactCheckProvider(ctx context.Context, cfg FactCheckConfig) (*FactCheckProvider, error) {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultFactCheckPageSize
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = defaultLanguageCode
	}

	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	default:
		return nil, ports.NewConfigError("evidence.factcheck.api_key", ports.ErrConfigNotFound)
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := factchecktools.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating fact check client: %w", err)
	}
	return &FactCheckProvider{svc: svc, cfg: cfg}, nil
}

// Mode returns domain.EvidenceFound, the mode of a successful search with
// results.
func (p *FactCheckProvider) Mode() domain.EvidenceMode { return domain.EvidenceFound }

// Search queries claims:search and turns every claim review into an item.
func (p *FactCheckProvider) Search(ctx context.Context, query string) (domain.EvidenceResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.EvidenceResult{Mode: domain.EvidenceNone}, nil
	}

	resp, err := p.svc.Claims.Search().
		Query(query).
		PageSize(p.cfg.PageSize).
		LanguageCode(p.cfg.LanguageCode).
		Context(ctx).
		Do()
	if err != nil {
		return domain.EvidenceResult{}, classifySearchError(ctx, err)
	}

	var items []domain.EvidenceItem
	for _, claim := range resp.Claims {
		if claim == nil {
			continue
		}
		for _, review := range claim.ClaimReview {
			if review == nil || review.Url == "" {
				continue
			}
			items = append(items, reviewItem(claim, review))
		}
	}
	items = Dedupe(items, p.cfg.MaxResults)
	if len(items) == 0 {
		return domain.EvidenceResult{Mode: domain.EvidenceNone}, nil
	}
	return domain.EvidenceResult{Mode: domain.EvidenceFound, Items: items}, nil
}

func reviewItem(claim *factchecktools.GoogleFactcheckingFactchecktoolsV1alpha1Claim,
	review *factchecktools.GoogleFactcheckingFactchecktoolsV1alpha1ClaimReview) domain.EvidenceItem {
	source := ""
	if review.Publisher != nil {
		source = review.Publisher.Name
		if source == "" {
			source = review.Publisher.Site
		}
	}
	snippet := claim.Text
	if snippet == "" {
		snippet = review.Title
	}
	if claim.Claimant != "" {
		snippet = fmt.Sprintf("%s (claimed by %s)", snippet, claim.Claimant)
	}
	return domain.EvidenceItem{
		URL:     review.Url,
		Source:  source,
		Snippet: snippet,
		Rating:  review.TextualRating,
	}
}

func classifySearchError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("fact check search: %w: %w", ports.ErrTimeout, err)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch {
		case gErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("fact check search: %w: %w", ports.ErrRateLimited, err)
		case gErr.Code == http.StatusUnauthorized || gErr.Code == http.StatusForbidden:
			return fmt.Errorf("fact check search: %w: %w", ports.ErrAuthenticationFailed, err)
		case gErr.Code >= http.StatusInternalServerError:
			return fmt.Errorf("fact check search: %w: %w", ports.ErrServiceUnavailable, err)
		}
		return fmt.Errorf("fact check search: %w: %w", ports.ErrInvalidResponse, err)
	}
	return fmt.Errorf("fact check search: %w: %w", ports.ErrServiceUnavailable, err)
}
