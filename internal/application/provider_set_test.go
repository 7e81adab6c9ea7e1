package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
	"github.com/ahrav/go-verity/internal/testutils"
)

// TestNewProviderSet tests keying, ordering and rejection of bad providers.
func TestNewProviderSet(t *testing.T) {
	t.Run("orders by kind", func(t *testing.T) {
		ps, err := NewProviderSet(
			map[domain.SignalKind]time.Duration{domain.SignalTextModel: time.Second},
			testutils.ScoredProvider(domain.SignalTextModel, 0.5),
			nil,
			testutils.ScoredProvider(domain.SignalDomainTrust, 0.5),
		)
		require.NoError(t, err)
		require.Equal(t, 2, ps.Len())

		providers := ps.Providers()
		assert.Equal(t, domain.SignalDomainTrust, providers[0].Kind())
		assert.Equal(t, domain.SignalTextModel, providers[1].Kind())
		assert.Equal(t, time.Second, ps.Timeout(domain.SignalTextModel))
		assert.Zero(t, ps.Timeout(domain.SignalDomainTrust))
		assert.Zero(t, ps.Timeout(domain.SignalAudioModel))
	})

	t.Run("duplicate kind", func(t *testing.T) {
		_, err := NewProviderSet(nil,
			testutils.ScoredProvider(domain.SignalLinguistic, 0.5),
			testutils.ScoredProvider(domain.SignalLinguistic, 0.6),
		)
		assert.ErrorIs(t, err, domain.ErrDuplicateSignal)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := NewProviderSet(nil, testutils.ScoredProvider("sentiment", 0.5))
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})
}

// TestBuildProviderSet tests construction of providers from configuration.
func TestBuildProviderSet(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(cfg *Config, deps *ProviderDeps)
		wantErr error
		errMsg  string
		verify  func(t *testing.T, ps *ProviderSet)
	}{
		{
			name: "defaults enable the local providers",
			verify: func(t *testing.T, ps *ProviderSet) {
				assert.Equal(t, 2, ps.Len())
				h := ps.Health(context.Background())
				assert.Equal(t, ProviderHealth{Enabled: true, Ready: true, Backend: "domain_tables"}, h[domain.SignalDomainTrust])
				assert.Equal(t, ProviderHealth{Enabled: true, Ready: true, Backend: "heuristics"}, h[domain.SignalLinguistic])
				assert.False(t, h[domain.SignalTextModel].Enabled)
				assert.Equal(t, time.Second, ps.Timeout(domain.SignalLinguistic))
			},
		},
		{
			name: "nothing enabled",
			setup: func(cfg *Config, _ *ProviderDeps) {
				cfg.Providers.DomainTrust.Enabled = false
				cfg.Providers.Linguistic.Enabled = false
			},
			verify: func(t *testing.T, ps *ProviderSet) {
				assert.Zero(t, ps.Len())
				assert.Empty(t, ps.Providers())
			},
		},
		{
			name: "classifier override keeps the middleware chain",
			setup: func(cfg *Config, deps *ProviderDeps) {
				cfg.Providers.TextModel.Enabled = true
				cfg.Providers.TextModel.Cache.Enabled = true
				deps.Classifiers = map[domain.SignalKind]ports.Classifier{
					domain.SignalTextModel: &testutils.StubClassifier{
						ClassifierName: "stub-text",
						Inference:      ports.Inference{Probability: 0.2, Confidence: 0.9},
					},
				}
			},
			verify: func(t *testing.T, ps *ProviderSet) {
				assert.Equal(t, 3, ps.Len())
				assert.Equal(t, 10*time.Second, ps.Timeout(domain.SignalTextModel))

				var text ports.SignalProvider
				for _, p := range ps.Providers() {
					if p.Kind() == domain.SignalTextModel {
						text = p
					}
				}
				require.NotNil(t, text)
				res, err := text.Evaluate(context.Background(), domain.AnalysisInput{Text: flatEarth})
				require.NoError(t, err)
				require.True(t, res.Available())
				assert.InDelta(t, 0.2, res.ScoreValue(), 1e-9)
				assert.Equal(t, "stub-text", ps.Health(context.Background())[domain.SignalTextModel].Backend)
			},
		},
		{
			name: "remote backend",
			setup: func(cfg *Config, _ *ProviderDeps) {
				cfg.Providers.ImageModel.Enabled = true
				cfg.Providers.ImageModel.Remote.Endpoint = "http://models.internal/image"
			},
			verify: func(t *testing.T, ps *ProviderSet) {
				assert.Equal(t, "remote:image_model", ps.Health(context.Background())[domain.SignalImageModel].Backend)
				assert.Equal(t, 15*time.Second, ps.Timeout(domain.SignalImageModel))
			},
		},
		{
			name: "llm backend",
			setup: func(cfg *Config, _ *ProviderDeps) {
				cfg.Providers.TextModel.Enabled = true
				cfg.Providers.TextModel.LLM.Provider = "openai"
				cfg.Providers.TextModel.LLM.Model = "gpt-4o-mini"
				cfg.Providers.TextModel.LLM.APIKey = "sk-test"
			},
			verify: func(t *testing.T, ps *ProviderSet) {
				assert.Equal(t, "llm:gpt-4o-mini", ps.Health(context.Background())[domain.SignalTextModel].Backend)
			},
		},
		{
			name: "unknown llm provider",
			setup: func(cfg *Config, _ *ProviderDeps) {
				cfg.Providers.TextModel.Enabled = true
				cfg.Providers.TextModel.LLM.Provider = "oracle"
				cfg.Providers.TextModel.LLM.APIKey = "k"
			},
			errMsg: "build text_model provider",
		},
		{
			name: "unknown backend",
			setup: func(cfg *Config, _ *ProviderDeps) {
				cfg.Providers.AudioModel.Enabled = true
				cfg.Providers.AudioModel.Backend = "grpc"
			},
			wantErr: domain.ErrInvalidConfiguration,
		},
		{
			name: "unknown cache backend",
			setup: func(cfg *Config, _ *ProviderDeps) {
				cfg.Providers.ImageModel.Enabled = true
				cfg.Providers.ImageModel.Remote.Endpoint = "http://models.internal/image"
				cfg.Providers.ImageModel.Cache.Enabled = true
				cfg.Cache.Backend = "memcached"
			},
			wantErr: domain.ErrInvalidConfiguration,
		},
		{
			name: "missing domain tables file",
			setup: func(cfg *Config, _ *ProviderDeps) {
				cfg.Providers.DomainTrust.TablesPath = filepath.Join(os.TempDir(), "verity-no-such-tables.yaml")
			},
			errMsg: "build domain_trust provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			var deps ProviderDeps
			if tt.setup != nil {
				tt.setup(cfg, &deps)
			}

			ps, err := BuildProviderSet(context.Background(), cfg, deps)
			if tt.wantErr != nil || tt.errMsg != "" {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = ps.Close() })
			tt.verify(t, ps)
		})
	}
}

func TestBuildProviderSet_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildProviderSet(ctx, DefaultConfig(), ProviderDeps{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProviderSet_CloseReleasesBackends(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.TextModel.Enabled = true
	stub := &testutils.StubClassifier{ClassifierName: "stub-text"}

	ps, err := BuildProviderSet(context.Background(), cfg, ProviderDeps{
		Classifiers: map[domain.SignalKind]ports.Classifier{domain.SignalTextModel: stub},
	})
	require.NoError(t, err)

	require.NoError(t, ps.Close())
	assert.True(t, stub.Closed.Load())
}
