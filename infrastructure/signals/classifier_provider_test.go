package signals

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-verity/infrastructure/classifiers"
	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

type stubClassifier struct {
	inf    ports.Inference
	err    error
	got    ports.ClassifierInput
	closed bool
	ready  bool
}

func (s *stubClassifier) Name() string { return "stub" }

func (s *stubClassifier) Classify(_ context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	s.got = in
	return s.inf, s.err
}

func (s *stubClassifier) Close() error { s.closed = true; return nil }

func (s *stubClassifier) Ready(context.Context) bool { return s.ready }

func TestClassifierProvider_Evaluate(t *testing.T) {
	tests := []struct {
		name       string
		inf        ports.Inference
		err        error
		wantStatus domain.SignalStatus
		wantErr    bool
	}{
		{name: "score verbatim", inf: ports.Inference{Probability: 0.37, Confidence: 0.9, Rationale: "r"}, wantStatus: domain.StatusOK},
		{name: "low confidence abstains", inf: ports.Inference{Probability: 0.9, Confidence: 0.2}, wantStatus: domain.StatusAbstained},
		{name: "backend error", err: ports.ErrTimeout, wantErr: true},
		{name: "invalid probability", inf: ports.Inference{Probability: math.NaN(), Confidence: 0.9}, wantErr: true},
		{name: "probability above one", inf: ports.Inference{Probability: 1.2, Confidence: 0.9}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubClassifier{inf: tt.inf, err: tt.err}
			p, err := NewClassifierProvider(domain.SignalTextModel, stub, 0.5)
			require.NoError(t, err)

			res, err := p.Evaluate(context.Background(), domain.AnalysisInput{Text: "body", URL: "https://x.example"})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
				var pe *domain.ProviderError
				require.True(t, errors.As(err, &pe))
				assert.Equal(t, domain.SignalTextModel, pe.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			if tt.wantStatus == domain.StatusOK {
				assert.Equal(t, tt.inf.Probability, res.ScoreValue())
				assert.Equal(t, "stub: r", res.Detail)
			}
			assert.Equal(t, "https://x.example", stub.got.SourceURL)
		})
	}
}

func TestClassifierProvider_Applicability(t *testing.T) {
	in := domain.AnalysisInput{Text: "caption", ImageURL: "https://cdn.example/a.png"}

	text, err := NewClassifierProvider(domain.SignalTextModel, &stubClassifier{}, 0)
	require.NoError(t, err)
	image, err := NewClassifierProvider(domain.SignalImageModel, &stubClassifier{}, 0)
	require.NoError(t, err)
	audio, err := NewClassifierProvider(domain.SignalAudioModel, &stubClassifier{}, 0)
	require.NoError(t, err)

	assert.True(t, text.Applicable(in))
	assert.True(t, image.Applicable(in))
	assert.False(t, audio.Applicable(in), "no audio url means the audio model is not attempted")
}

func TestClassifierProvider_MediaRouting(t *testing.T) {
	stub := &stubClassifier{inf: ports.Inference{Probability: 0.5, Confidence: 1}}
	p, err := NewClassifierProvider(domain.SignalAudioModel, stub, 0)
	require.NoError(t, err)

	_, err = p.Evaluate(context.Background(), domain.AnalysisInput{ImageURL: "https://i", AudioURL: "https://a"})
	require.NoError(t, err)
	assert.Equal(t, "https://a", stub.got.MediaURL)
}

func TestNewClassifierProvider_Validation(t *testing.T) {
	_, err := NewClassifierProvider(domain.SignalLinguistic, &stubClassifier{}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = NewClassifierProvider(domain.SignalTextModel, nil, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = NewClassifierProvider(domain.SignalTextModel, &stubClassifier{}, 1.5)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestClassifierProvider_ReadyAndCloseThroughMiddleware(t *testing.T) {
	stub := &stubClassifier{ready: true}
	chained := classifiers.Chain(stub, classifiers.MetricsMiddleware(nil, "x"), classifiers.RetryMiddleware(1, 0, 0))
	p, err := NewClassifierProvider(domain.SignalTextModel, chained, 0)
	require.NoError(t, err)

	assert.True(t, p.Ready(context.Background()))
	stub.ready = false
	assert.False(t, p.Ready(context.Background()))

	require.NoError(t, p.Close())
	assert.True(t, stub.closed)
	assert.Equal(t, "stub", p.Backend())
}

// closingLayer is a middleware layer that owns a resource of its own.
type closingLayer struct {
	next   ports.Classifier
	closed bool
	err    error
}

func (l *closingLayer) Name() string { return "closing(" + l.next.Name() + ")" }

func (l *closingLayer) Classify(ctx context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	return l.next.Classify(ctx, in)
}

func (l *closingLayer) Unwrap() ports.Classifier { return l.next }

func (l *closingLayer) Close() error { l.closed = true; return l.err }

// TestClassifierProvider_CloseClosesEveryLayer tests that a closable
// middleware does not stop the backend beneath it from being closed.
func TestClassifierProvider_CloseClosesEveryLayer(t *testing.T) {
	stub := &stubClassifier{}
	layer := &closingLayer{next: stub}
	chained := classifiers.Chain(layer, classifiers.MetricsMiddleware(nil, "x"))
	p, err := NewClassifierProvider(domain.SignalTextModel, chained, 0)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.True(t, layer.closed)
	assert.True(t, stub.closed)

	stub.closed = false
	layer.err = errors.New("flush failed")
	err = p.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, layer.err)
	assert.True(t, stub.closed, "backend still closed after an outer layer fails")
}
