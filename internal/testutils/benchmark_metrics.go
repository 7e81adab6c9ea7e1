package testutils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-verity/internal/domain"
)

var benchmarkLabels = []domain.Label{domain.LabelTrustworthy, domain.LabelSuspicious, domain.LabelMisinformation}

// BenchmarkMetrics accumulates the outcome of running a dataset through
// the analyzer. It is safe for concurrent use.
type BenchmarkMetrics struct {
	mu sync.Mutex

	total        int
	succeeded    int
	correct      int
	degraded     int
	insufficient int

	// confusion[want][got] counts verdicts; failed cases are not counted.
	confusion  map[domain.Label]map[domain.Label]int
	categories map[string]*tally
	errorTypes map[string]int
	latencies  []time.Duration
	confidence []confidencePoint
}

type tally struct{ correct, total int }

type confidencePoint struct {
	confidence float64
	correct    bool
}

// NewBenchmarkMetrics creates an empty collector.
func NewBenchmarkMetrics() *BenchmarkMetrics {
	m := &BenchmarkMetrics{
		confusion:  make(map[domain.Label]map[domain.Label]int),
		categories: make(map[string]*tally),
		errorTypes: make(map[string]int),
	}
	for _, l := range benchmarkLabels {
		m.confusion[l] = make(map[domain.Label]int)
	}
	return m
}

// Record adds the outcome of one case. A failed analysis counts as an
// incorrect verdict.
func (m *BenchmarkMetrics) Record(c BenchmarkCase, report *domain.Report, err error, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.latencies = append(m.latencies, latency)
	t := m.categories[c.Category]
	if t == nil {
		t = &tally{}
		m.categories[c.Category] = t
	}
	t.total++

	if err != nil || report == nil {
		kind := classifyBenchmarkError(err)
		if kind == "insufficient_signals" {
			m.insufficient++
		}
		m.errorTypes[kind]++
		return
	}

	m.succeeded++
	got := report.Result.Label
	if m.confusion[c.WantLabel] == nil {
		m.confusion[c.WantLabel] = make(map[domain.Label]int)
	}
	m.confusion[c.WantLabel][got]++
	if report.Result.Degraded {
		m.degraded++
	}

	ok := got == c.WantLabel
	if ok {
		m.correct++
		t.correct++
	}
	m.confidence = append(m.confidence, confidencePoint{confidence: report.Result.Confidence, correct: ok})
}

func classifyBenchmarkError(err error) string {
	switch {
	case err == nil:
		return "missing_report"
	case errors.Is(err, domain.ErrInsufficientSignals):
		return "insufficient_signals"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}

// BenchmarkSummary holds the derived metrics of a run.
type BenchmarkSummary struct {
	Total        int `json:"total"`
	Succeeded    int `json:"succeeded"`
	Insufficient int `json:"insufficient_signals"`

	// Accuracy is correct verdicts over all cases.
	Accuracy     float64 `json:"accuracy"`
	ErrorRate    float64 `json:"error_rate"`
	DegradedRate float64 `json:"degraded_rate"`

	Precision          map[domain.Label]float64             `json:"precision"`
	Recall             map[domain.Label]float64             `json:"recall"`
	AccuracyByCategory map[string]float64                   `json:"accuracy_by_category"`
	Confusion          map[domain.Label]map[domain.Label]int `json:"confusion"`
	ErrorTypes         map[string]int                       `json:"error_types"`

	// CalibrationError is the mean gap between reported confidence and
	// observed accuracy over ten confidence buckets.
	CalibrationError float64 `json:"calibration_error"`

	P50Latency time.Duration `json:"p50_latency"`
	P95Latency time.Duration `json:"p95_latency"`
	P99Latency time.Duration `json:"p99_latency"`
}

// Summary computes the derived metrics from what was recorded so far.
func (m *BenchmarkMetrics) Summary() BenchmarkSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := BenchmarkSummary{
		Total:              m.total,
		Succeeded:          m.succeeded,
		Insufficient:       m.insufficient,
		Precision:          make(map[domain.Label]float64),
		Recall:             make(map[domain.Label]float64),
		AccuracyByCategory: make(map[string]float64),
		Confusion:          make(map[domain.Label]map[domain.Label]int),
		ErrorTypes:         make(map[string]int),
	}
	if m.total > 0 {
		s.Accuracy = float64(m.correct) / float64(m.total)
		s.ErrorRate = float64(m.total-m.succeeded) / float64(m.total)
	}
	if m.succeeded > 0 {
		s.DegradedRate = float64(m.degraded) / float64(m.succeeded)
	}

	for _, l := range benchmarkLabels {
		tp := m.confusion[l][l]
		predicted, actual := 0, 0
		for _, want := range benchmarkLabels {
			predicted += m.confusion[want][l]
			actual += m.confusion[l][want]
		}
		if predicted > 0 {
			s.Precision[l] = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			s.Recall[l] = float64(tp) / float64(actual)
		}
	}
	for want, row := range m.confusion {
		s.Confusion[want] = make(map[domain.Label]int, len(row))
		for got, n := range row {
			s.Confusion[want][got] = n
		}
	}
	for name, t := range m.categories {
		if t.total > 0 {
			s.AccuracyByCategory[name] = float64(t.correct) / float64(t.total)
		}
	}
	for k, v := range m.errorTypes {
		s.ErrorTypes[k] = v
	}

	s.CalibrationError = calibrationError(m.confidence)

	sorted := slices.Clone(m.latencies)
	slices.Sort(sorted)
	s.P50Latency = percentile(sorted, 50)
	s.P95Latency = percentile(sorted, 95)
	s.P99Latency = percentile(sorted, 99)
	return s
}

// percentile returns the nearest-rank percentile of sorted latencies.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func calibrationError(points []confidencePoint) float64 {
	if len(points) == 0 {
		return 0
	}
	const buckets = 10
	var conf, hits [buckets]float64
	var counts [buckets]int
	for _, p := range points {
		b := int(p.confidence * buckets)
		if b >= buckets {
			b = buckets - 1
		}
		if b < 0 {
			b = 0
		}
		conf[b] += p.confidence
		if p.correct {
			hits[b]++
		}
		counts[b]++
	}

	var weighted float64
	for b := range buckets {
		if counts[b] == 0 {
			continue
		}
		n := float64(counts[b])
		weighted += n * math.Abs(conf[b]/n-hits[b]/n)
	}
	return weighted / float64(len(points))
}

// Report renders the summary for a terminal.
func (s BenchmarkSummary) Report() string {
	var b strings.Builder
	b.WriteString("=== Benchmark Report ===\n\n")
	fmt.Fprintf(&b, "Cases: %d (succeeded %d, insufficient signals %d)\n", s.Total, s.Succeeded, s.Insufficient)
	fmt.Fprintf(&b, "Accuracy: %.2f%%\n", s.Accuracy*100)
	fmt.Fprintf(&b, "Error rate: %.2f%%\n", s.ErrorRate*100)
	fmt.Fprintf(&b, "Degraded rate: %.2f%%\n", s.DegradedRate*100)
	fmt.Fprintf(&b, "Calibration error: %.3f\n\n", s.CalibrationError)

	b.WriteString("Per label:\n")
	for _, l := range benchmarkLabels {
		fmt.Fprintf(&b, "  %-15s precision %.2f  recall %.2f\n", l, s.Precision[l], s.Recall[l])
	}

	b.WriteString("\nConfusion (expected -> predicted):\n")
	for _, want := range benchmarkLabels {
		fmt.Fprintf(&b, "  %-15s", want)
		for _, got := range benchmarkLabels {
			fmt.Fprintf(&b, " %s=%d", got, s.Confusion[want][got])
		}
		b.WriteString("\n")
	}

	if len(s.AccuracyByCategory) > 0 {
		b.WriteString("\nAccuracy by category:\n")
		names := make([]string, 0, len(s.AccuracyByCategory))
		for name := range s.AccuracyByCategory {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %-28s %.2f%%\n", name, s.AccuracyByCategory[name]*100)
		}
	}

	if len(s.ErrorTypes) > 0 {
		b.WriteString("\nErrors:\n")
		for kind, n := range s.ErrorTypes {
			fmt.Fprintf(&b, "  %s: %d\n", kind, n)
		}
	}

	fmt.Fprintf(&b, "\nLatency: p50 %s  p95 %s  p99 %s\n", s.P50Latency, s.P95Latency, s.P99Latency)
	return b.String()
}
