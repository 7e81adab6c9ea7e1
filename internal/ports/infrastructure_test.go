package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-verity/internal/domain"
)

// mockLLMClient implements LLMClient interface
type mockLLMClient struct{ model string }

func (m *mockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	return `{"credibility_score": 0.5}`, nil
}

func (m *mockLLMClient) EstimateTokens(text string) (int, error) { return len(text) / 4, nil }

func (m *mockLLMClient) GetModel() string { return m.model }

// mockCacheStore implements CacheStore interface
type mockCacheStore struct{ data map[string][]byte }

func newMockCacheStore() *mockCacheStore {
	return &mockCacheStore{data: make(map[string][]byte)}
}

func (m *mockCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, exists := m.data[key]
	return val, exists, nil
}

func (m *mockCacheStore) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mockCacheStore) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockCacheStore) Clear(ctx context.Context) error {
	m.data = make(map[string][]byte)
	return nil
}

// mockMetricsCollector implements MetricsCollector interface
type mockMetricsCollector struct {
	latencies  []time.Duration
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
}

func newMockMetricsCollector() *mockMetricsCollector {
	return &mockMetricsCollector{
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (m *mockMetricsCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	m.latencies = append(m.latencies, duration)
}

func (m *mockMetricsCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	m.counters[metric] += value
}

func (m *mockMetricsCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	m.gauges[metric] = value
}

func (m *mockMetricsCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.histograms[metric] = append(m.histograms[metric], value)
}

// stubClassifier implements Classifier interface
type stubClassifier struct{ inf Inference }

func (s stubClassifier) Classify(ctx context.Context, in ClassifierInput) (Inference, error) {
	return s.inf, nil
}

func (s stubClassifier) Name() string { return "stub" }

// stubProvider implements SignalProvider interface
type stubProvider struct{}

func (stubProvider) Kind() domain.SignalKind { return domain.SignalLinguistic }

func (stubProvider) Applicable(in domain.AnalysisInput) bool { return in.Text != "" }

func (stubProvider) Evaluate(ctx context.Context, in domain.AnalysisInput) (domain.SignalResult, error) {
	return domain.Scored(domain.SignalLinguistic, 0.7, 1, ""), nil
}

func TestInterfaces_Implementation(t *testing.T) {
	var _ LLMClient = (*mockLLMClient)(nil)
	var _ CacheStore = (*mockCacheStore)(nil)
	var _ MetricsCollector = (*mockMetricsCollector)(nil)
	var _ Classifier = stubClassifier{}
	var _ SignalProvider = stubProvider{}

	llm := &mockLLMClient{model: "test-model"}
	assert.Equal(t, "test-model", llm.GetModel())

	ctx := context.Background()
	response, err := llm.Complete(ctx, "test prompt", nil)
	require.NoError(t, err)
	assert.Contains(t, response, "credibility_score")

	inf, err := stubClassifier{inf: Inference{Probability: 0.2, Confidence: 0.9}}.Classify(ctx, ClassifierInput{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, 0.2, inf.Probability)

	p := stubProvider{}
	assert.False(t, p.Applicable(domain.AnalysisInput{}))
	res, err := p.Evaluate(ctx, domain.AnalysisInput{Text: "hello"})
	require.NoError(t, err)
	assert.True(t, res.Available())
}

func TestCacheStore_Operations(t *testing.T) {
	ctx := context.Background()
	cache := newMockCacheStore()

	require.NoError(t, cache.Set(ctx, "key1", []byte("value1"), time.Hour))

	val, exists, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []byte("value1"), val)

	_, exists, err = cache.Get(ctx, "nonexistent")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, cache.Delete(ctx, "key1"))
	_, exists, _ = cache.Get(ctx, "key1")
	assert.False(t, exists)

	require.NoError(t, cache.Set(ctx, "key2", []byte("v"), 0))
	require.NoError(t, cache.Clear(ctx))
	assert.Empty(t, cache.data)
}

func TestMetricsCollector_Recording(t *testing.T) {
	metrics := newMockMetricsCollector()
	labels := map[string]string{"kind": "linguistic"}

	metrics.RecordLatency("provider", 100*time.Millisecond, labels)
	assert.Len(t, metrics.latencies, 1)

	metrics.RecordCounter("analyses", 1, labels)
	metrics.RecordCounter("analyses", 2, labels)
	assert.Equal(t, float64(3), metrics.counters["analyses"])

	metrics.RecordGauge("inflight", 10, labels)
	metrics.RecordGauge("inflight", 5, labels)
	assert.Equal(t, float64(5), metrics.gauges["inflight"])

	metrics.RecordHistogram("score", 0.4, labels)
	metrics.RecordHistogram("score", 0.9, labels)
	assert.Len(t, metrics.histograms["score"], 2)
}
