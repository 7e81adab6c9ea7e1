package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ahrav/go-verity/internal/application"
	"github.com/ahrav/go-verity/internal/domain"
)

type handlers struct {
	svc     Service
	logger  *slog.Logger
	version string
}

// analyzeRequest is the body of POST /analyze. The per-media endpoints
// accept the same body and fix the content type.
type analyzeRequest struct {
	Text     string `json:"text"`
	URL      string `json:"url" binding:"omitempty,webpage"`
	ImageURL string `json:"image_url" binding:"omitempty,webpage"`
	AudioURL string `json:"audio_url" binding:"omitempty,webpage"`
}

// contentType picks text when text is present, otherwise the kind of the
// media URL given.
func (r analyzeRequest) contentType() domain.ContentType {
	switch {
	case strings.TrimSpace(r.Text) != "":
		return domain.ContentText
	case r.ImageURL != "":
		return domain.ContentImage
	case r.AudioURL != "":
		return domain.ContentAudio
	default:
		return domain.ContentText
	}
}

type analyzeResponse struct {
	Score          float64               `json:"score"`
	Label          domain.Label          `json:"label"`
	Confidence     float64               `json:"confidence"`
	Degraded       bool                  `json:"degraded"`
	Signals        []domain.SignalResult `json:"signals"`
	Evidence       []domain.EvidenceItem `json:"evidence"`
	EvidenceStatus domain.EvidenceMode   `json:"evidence_status"`
	Explanation    string                `json:"explanation"`
	ReportID       string                `json:"report_id"`
	Timestamp      time.Time             `json:"timestamp"`
}

func newAnalyzeResponse(r *domain.Report) analyzeResponse {
	return analyzeResponse{
		Score:          r.Result.OverallScore,
		Label:          r.Result.Label,
		Confidence:     r.Result.Confidence,
		Degraded:       r.Result.Degraded,
		Signals:        r.Result.Signals,
		Evidence:       r.Evidence,
		EvidenceStatus: r.EvidenceMode,
		Explanation:    r.Explanation,
		ReportID:       r.ID,
		Timestamp:      r.CreatedAt,
	}
}

type flagRequest struct {
	FlagType domain.FlagType `json:"flag_type" binding:"required"`
	Comment  string          `json:"comment" binding:"max=1000"`
}

func (h *handlers) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "verity",
		"version": h.version,
		"endpoints": []string{
			"POST /analyze",
			"POST /analyze/text",
			"POST /analyze/image",
			"POST /analyze/audio",
			"GET /report/:id",
			"DELETE /report/:id",
			"POST /report/:id/flag",
			"GET /report/:id/flags",
			"GET /health",
		},
	})
}

func (h *handlers) analyze(c *gin.Context)      { h.runAnalysis(c, "") }
func (h *handlers) analyzeText(c *gin.Context)  { h.runAnalysis(c, domain.ContentText) }
func (h *handlers) analyzeImage(c *gin.Context) { h.runAnalysis(c, domain.ContentImage) }
func (h *handlers) analyzeAudio(c *gin.Context) { h.runAnalysis(c, domain.ContentAudio) }

// runAnalysis binds the body and runs the pipeline. An empty content
// type is inferred from the body.
func (h *handlers) runAnalysis(c *gin.Context, ct domain.ContentType) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError("request body", err))
		return
	}
	if ct == "" {
		ct = req.contentType()
	}

	in := domain.AnalysisInput{
		Text:        req.Text,
		URL:         req.URL,
		ImageURL:    req.ImageURL,
		AudioURL:    req.AudioURL,
		ContentType: ct,
	}
	report, err := h.svc.Analyze(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newAnalyzeResponse(report))
}

func (h *handlers) getReport(c *gin.Context) {
	report, err := h.svc.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handlers) deleteReport(c *gin.Context) {
	if err := h.svc.DeleteReport(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) flagReport(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError("flag", err))
		return
	}

	flag, err := h.svc.FlagReport(c.Request.Context(), c.Param("id"), req.FlagType, req.Comment)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, flag)
}

func (h *handlers) listFlags(c *gin.Context) {
	flags, err := h.svc.ListFlags(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report_id": c.Param("id"), "flags": flags})
}

// health answers 503 only when the store is unreachable. Unready
// providers degrade the status but the service still answers requests.
func (h *handlers) health(c *gin.Context) {
	report := h.svc.Health(c.Request.Context())
	status := http.StatusOK
	if !report.Store {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, healthResponse{HealthReport: report, Version: h.version})
}

type healthResponse struct {
	application.HealthReport
	Version string `json:"version,omitempty"`
}
