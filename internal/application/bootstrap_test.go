package application

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-verity/internal/domain"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuildEvidenceProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      EvidenceConfig
		wantMode domain.EvidenceMode
		wantErr  error
	}{
		{name: "disabled", cfg: EvidenceConfig{Mode: EvidenceModeDisabled}, wantMode: domain.EvidenceUnavailable},
		{name: "unset", cfg: EvidenceConfig{}, wantMode: domain.EvidenceUnavailable},
		{name: "simulated", cfg: EvidenceConfig{Mode: EvidenceModeSimulated, MaxResults: 2}, wantMode: domain.EvidenceSimulated},
		{name: "unknown", cfg: EvidenceConfig{Mode: "crystal_ball"}, wantErr: domain.ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := BuildEvidenceProvider(context.Background(), tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, p.Mode())
		})
	}

	t.Run("factcheck without credentials", func(t *testing.T) {
		_, err := BuildEvidenceProvider(context.Background(), EvidenceConfig{Mode: EvidenceModeFactCheck})
		assert.Error(t, err)
	})
}

func TestOpenReportStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		s, err := OpenReportStore(StoreConfig{Backend: StoreMemory}, discardLogger())
		require.NoError(t, err)
		defer s.Close()
		assert.NoError(t, s.Ping(context.Background()))
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports.db")
		s, err := OpenReportStore(StoreConfig{Backend: StoreSQLite, SQLitePath: path}, discardLogger())
		require.NoError(t, err)
		defer s.Close()
		assert.NoError(t, s.Ping(context.Background()))
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := OpenReportStore(StoreConfig{Backend: "etcd"}, discardLogger())
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})
}

// TestNewService tests the default wiring end to end: a request analyzed
// through the service is stored and readable afterwards.
func TestNewService(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Evidence.Mode = EvidenceModeSimulated

	svc, err := NewService(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, svc.Close()) })

	require.NotNil(t, svc.Metrics)
	assert.Equal(t, 2, svc.Providers.Len())

	ctx := context.Background()
	report, err := svc.Analyzer.Analyze(ctx, domain.AnalysisInput{
		Text: flatEarth,
		URL:  "https://www.nasa.gov/news/earth",
	})
	require.NoError(t, err)

	// (1.2*0.98 + 1.0*0.15) / 2.2
	assert.InDelta(t, 1.326/2.2, report.Result.OverallScore, 1e-9)
	assert.Equal(t, domain.LabelSuspicious, report.Result.Label)
	assert.InDelta(t, 0.65, report.Result.Confidence, 1e-9)
	assert.Equal(t, domain.EvidenceSimulated, report.EvidenceMode)

	got, err := svc.Analyzer.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, got.ID)

	assert.Equal(t, HealthHealthy, svc.Analyzer.Health(ctx).Status)
}

func TestNewService_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = "etcd"

	_, err := NewService(context.Background(), cfg, discardLogger())
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
