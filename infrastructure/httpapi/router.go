// Package httpapi exposes the analysis pipeline over HTTP with gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-verity/internal/application"
	"github.com/ahrav/go-verity/internal/domain"
)

// Service is the part of the analysis pipeline the HTTP layer calls.
// *application.Analyzer implements it.
type Service interface {
	Analyze(ctx context.Context, in domain.AnalysisInput) (*domain.Report, error)
	GetReport(ctx context.Context, id string) (*domain.Report, error)
	DeleteReport(ctx context.Context, id string) error
	FlagReport(ctx context.Context, id string, flagType domain.FlagType, comment string) (domain.Flag, error)
	ListFlags(ctx context.Context, id string) ([]domain.Flag, error)
	Health(ctx context.Context) application.HealthReport
}

var _ Service = (*application.Analyzer)(nil)

// Options configures the router.
type Options struct {
	// Mode is the gin mode: debug, release or test. Empty keeps the
	// current mode.
	Mode string
	// CORSOrigins lists the allowed origins. "*" allows any origin and
	// an empty list disables CORS headers.
	CORSOrigins []string
	// MetricsHandler is served at MetricsPath when both are set.
	MetricsHandler http.Handler
	MetricsPath    string
	Logger         *slog.Logger
	Version        string
}

// NewRouter builds the gin engine serving every endpoint.
func NewRouter(svc Service, opts Options) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	// The binding engine shares the webpage tag with input validation.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := application.RegisterInputValidators(v); err != nil {
			logger.Error("failed to register request validators", "error", err)
		}
	}

	h := &handlers{svc: svc, logger: logger, version: opts.Version}

	r := gin.New()
	r.Use(recovery(logger), requestLogger(logger))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors(opts.CORSOrigins))
	}

	r.GET("/", h.index)
	r.GET("/health", h.health)
	if opts.MetricsHandler != nil && opts.MetricsPath != "" {
		r.GET(opts.MetricsPath, gin.WrapH(opts.MetricsHandler))
	}

	analyze := r.Group("/analyze")
	{
		analyze.POST("", h.analyze)
		analyze.POST("/text", h.analyzeText)
		analyze.POST("/image", h.analyzeImage)
		analyze.POST("/audio", h.analyzeAudio)
	}

	report := r.Group("/report/:id")
	{
		report.GET("", h.getReport)
		report.DELETE("", h.deleteReport)
		report.POST("/flag", h.flagReport)
		report.GET("/flags", h.listFlags)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "route not found", Code: codeNotFound})
	})
	return r
}
