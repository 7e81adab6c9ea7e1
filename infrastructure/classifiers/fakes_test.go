package classifiers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahrav/go-verity/internal/ports"
)

// fakeClassifier returns results in order, repeating the last one.
type fakeClassifier struct {
	name    string
	results []fakeResult
	delay   time.Duration
	calls   atomic.Int32
}

type fakeResult struct {
	inf ports.Inference
	err error
}

func newFakeClassifier(results ...fakeResult) *fakeClassifier {
	if len(results) == 0 {
		results = []fakeResult{{inf: ports.Inference{Probability: 0.8, Confidence: 0.9}}}
	}
	return &fakeClassifier{name: "fake", results: results}
}

func (f *fakeClassifier) Name() string { return f.name }

func (f *fakeClassifier) Classify(ctx context.Context, _ ports.ClassifierInput) (ports.Inference, error) {
	n := int(f.calls.Add(1)) - 1
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ports.Inference{}, ctx.Err()
		}
	}
	if n >= len(f.results) {
		n = len(f.results) - 1
	}
	return f.results[n].inf, f.results[n].err
}

func (f *fakeClassifier) Calls() int { return int(f.calls.Load()) }

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
	sets int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

type recordingCollector struct {
	mu         sync.Mutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string]int
	labels     []map[string]string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string]int),
	}
}

func (r *recordingCollector) RecordLatency(string, time.Duration, map[string]string) {}

func (r *recordingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] += value
	r.labels = append(r.labels, labels)
}

func (r *recordingCollector) RecordGauge(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[metric] = value
}

func (r *recordingCollector) RecordHistogram(metric string, _ float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric]++
}

type fakeLLM struct {
	response string
	err      error
	prompt   string
	options  map[string]any
}

func (f *fakeLLM) Complete(_ context.Context, prompt string, options map[string]any) (string, error) {
	f.prompt = prompt
	f.options = options
	return f.response, f.err
}

func (f *fakeLLM) EstimateTokens(text string) (int, error) { return len(text) / 4, nil }

func (f *fakeLLM) GetModel() string { return "test-model" }
