package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-verity/infrastructure/metrics"
	"github.com/ahrav/go-verity/infrastructure/signals"
	"github.com/ahrav/go-verity/infrastructure/store"
	"github.com/ahrav/go-verity/internal/application"
	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
	"github.com/ahrav/go-verity/internal/testutils"
)

const flatEarth = "Scientists confirm Earth is flat"

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type testServer struct {
	router http.Handler
	store  *store.MemoryStore
}

func newTestServer(t *testing.T, storeFail map[string]bool, providers ...ports.SignalProvider) testServer {
	t.Helper()

	ps, err := application.NewProviderSet(nil, providers...)
	require.NoError(t, err)
	agg, err := domain.NewWeightedAggregator(nil, domain.DefaultConfidencePolicy())
	require.NoError(t, err)

	mem := store.NewMemoryStore(0)
	t.Cleanup(func() { _ = mem.Close() })
	var reports ports.ReportStore = mem
	if storeFail != nil {
		reports = &testutils.FailingStore{ReportStore: mem, Err: errors.New("connection refused"), Fail: storeFail}
	}

	analyzer, err := application.NewAnalyzer(ps, agg, reports, application.AnalyzerOptions{Logger: quietLogger()})
	require.NoError(t, err)

	prom := metrics.NewPrometheusMetrics()
	router := NewRouter(analyzer, Options{
		Mode:           gin.TestMode,
		CORSOrigins:    []string{"*"},
		MetricsHandler: prom.Handler(),
		MetricsPath:    "/metrics",
		Logger:         quietLogger(),
		Version:        "test",
	})
	return testServer{router: router, store: mem}
}

func (s testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func localProviders(t *testing.T) []ports.SignalProvider {
	t.Helper()
	dt, err := signals.NewDomainTrustProvider(signals.DefaultDomainTables())
	require.NoError(t, err)
	return []ports.SignalProvider{dt, signals.NewLinguisticProvider()}
}

// TestAnalyzeAndReportLifecycle tests analysis followed by every report
// endpoint.
func TestAnalyzeAndReportLifecycle(t *testing.T) {
	s := newTestServer(t, nil, localProviders(t)...)

	w := s.do(t, http.MethodPost, "/analyze", map[string]string{
		"text": flatEarth,
		"url":  "https://www.nasa.gov/news/earth",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[analyzeResponse](t, w)
	assert.InDelta(t, 1.326/2.2, resp.Score, 1e-9)
	assert.Equal(t, domain.LabelSuspicious, resp.Label)
	assert.InDelta(t, 0.65, resp.Confidence, 1e-9)
	assert.False(t, resp.Degraded)
	assert.Len(t, resp.Signals, 2)
	assert.NotNil(t, resp.Evidence)
	assert.Equal(t, domain.EvidenceUnavailable, resp.EvidenceStatus)
	assert.NotEmpty(t, resp.Explanation)
	assert.NotEmpty(t, resp.ReportID)
	assert.False(t, resp.Timestamp.IsZero())

	id := resp.ReportID

	w = s.do(t, http.MethodGet, "/report/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[domain.Report](t, w)
	assert.Equal(t, id, report.ID)
	assert.Equal(t, flatEarth, report.Input.Text)

	w = s.do(t, http.MethodPost, "/report/"+id+"/flag", map[string]string{"flag_type": "incorrect", "comment": "wrong"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	flag := decode[domain.Flag](t, w)
	assert.Equal(t, domain.FlagIncorrect, flag.Type)

	w = s.do(t, http.MethodGet, "/report/"+id+"/flags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	flags := decode[struct {
		Flags []domain.Flag `json:"flags"`
	}](t, w)
	assert.Len(t, flags.Flags, 1)

	w = s.do(t, http.MethodDelete, "/report/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/report/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, codeNotFound, decode[errorBody](t, w).Code)
}

// TestErrorMapping tests the status and code of every failure class.
func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		providers  []ports.SignalProvider
		storeFail  map[string]bool
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "text too short",
			method:     http.MethodPost,
			path:       "/analyze",
			body:       map[string]string{"text": "short"},
			wantStatus: http.StatusBadRequest,
			wantCode:   codeInvalidInput,
			wantMsg:    "at least 10",
		},
		{
			name:       "malformed json",
			method:     http.MethodPost,
			path:       "/analyze/text",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
			wantCode:   codeInvalidInput,
		},
		{
			name:       "bad url",
			method:     http.MethodPost,
			path:       "/analyze",
			body:       map[string]string{"text": flatEarth, "url": "ftp://example.com"},
			wantStatus: http.StatusBadRequest,
			wantCode:   codeInvalidInput,
		},
		{
			name:       "image endpoint without image",
			method:     http.MethodPost,
			path:       "/analyze/image",
			body:       map[string]string{"text": flatEarth},
			wantStatus: http.StatusBadRequest,
			wantCode:   codeInvalidInput,
			wantMsg:    "image_url is required",
		},
		{
			name:       "every provider abstains",
			providers:  []ports.SignalProvider{testutils.AbstainingProvider(domain.SignalDomainTrust)},
			method:     http.MethodPost,
			path:       "/analyze",
			body:       map[string]string{"text": flatEarth},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   codeInsufficientSignals,
			wantMsg:    "no analysis possible",
		},
		{
			name:       "store failure",
			providers:  []ports.SignalProvider{testutils.ScoredProvider(domain.SignalLinguistic, 0.8)},
			storeFail:  map[string]bool{"save": true},
			method:     http.MethodPost,
			path:       "/analyze",
			body:       map[string]string{"text": flatEarth},
			wantStatus: http.StatusInternalServerError,
			wantCode:   codeInternal,
			wantMsg:    "internal error",
		},
		{
			name:       "unknown report",
			method:     http.MethodGet,
			path:       "/report/nope",
			wantStatus: http.StatusNotFound,
			wantCode:   codeNotFound,
		},
		{
			name:       "flag unknown report",
			method:     http.MethodPost,
			path:       "/report/nope/flag",
			body:       map[string]string{"flag_type": "helpful"},
			wantStatus: http.StatusNotFound,
			wantCode:   codeNotFound,
		},
		{
			name:       "flag without type",
			method:     http.MethodPost,
			path:       "/report/nope/flag",
			body:       map[string]string{"comment": "hi"},
			wantStatus: http.StatusBadRequest,
			wantCode:   codeInvalidInput,
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			path:       "/nowhere",
			wantStatus: http.StatusNotFound,
			wantCode:   codeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers := tt.providers
			if providers == nil {
				providers = localProviders(t)
			}
			s := newTestServer(t, tt.storeFail, providers...)

			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			body := decode[errorBody](t, w)
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.wantMsg != "" {
				assert.Contains(t, body.Error, tt.wantMsg)
			}
			assert.NotContains(t, body.Error, "connection refused")
		})
	}
}

func TestMediaEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      map[string]string
		provider  ports.SignalProvider
		wantScore float64
	}{
		{
			name:      "image endpoint",
			path:      "/analyze/image",
			body:      map[string]string{"image_url": "https://cdn.example/a.jpg"},
			provider:  testutils.ScoredProvider(domain.SignalImageModel, 0.3),
			wantScore: 0.3,
		},
		{
			name:      "audio endpoint",
			path:      "/analyze/audio",
			body:      map[string]string{"audio_url": "https://cdn.example/a.mp3"},
			provider:  testutils.ScoredProvider(domain.SignalAudioModel, 0.9),
			wantScore: 0.9,
		},
		{
			name:      "generic endpoint infers image",
			path:      "/analyze",
			body:      map[string]string{"image_url": "https://cdn.example/b.jpg"},
			provider:  testutils.ScoredProvider(domain.SignalImageModel, 0.3),
			wantScore: 0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil, tt.provider)
			w := s.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.InDelta(t, tt.wantScore, decode[analyzeResponse](t, w).Score, 1e-9)
		})
	}
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, nil, localProviders(t)...)
		w := s.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decode[healthResponse](t, w)
		assert.Equal(t, application.HealthHealthy, body.Status)
		assert.True(t, body.Store)
		assert.Equal(t, "test", body.Version)
		assert.True(t, body.Providers[domain.SignalLinguistic].Enabled)
	})

	t.Run("store down", func(t *testing.T) {
		s := newTestServer(t, map[string]bool{"ping": true}, localProviders(t)...)
		w := s.do(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, application.HealthDegraded, decode[healthResponse](t, w).Status)
	})
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, nil, localProviders(t)...)

	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")

	t.Run("restricted origins", func(t *testing.T) {
		r := gin.New()
		r.Use(cors([]string{"https://allowed.example"}))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		for origin, want := range map[string]string{
			"https://allowed.example": "https://allowed.example",
			"https://other.example":   "",
		} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, want, w.Header().Get("Access-Control-Allow-Origin"), origin)
		}
	})
}

func TestIndexAndMetrics(t *testing.T) {
	s := newTestServer(t, nil, localProviders(t)...)

	w := s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "POST /analyze")

	w = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServeListener_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeListener(ctx, ln, ServerConfig{ShutdownTimeout: time.Second}, handler, quietLogger())
	}()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
