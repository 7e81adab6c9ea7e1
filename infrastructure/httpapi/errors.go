package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ahrav/go-verity/internal/domain"
)

// Error codes returned in errorBody.Code.
const (
	codeInvalidInput        = "invalid_input"
	codeNotFound            = "not_found"
	codeInsufficientSignals = "insufficient_signals"
	codeInternal            = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusOf maps a pipeline error to its HTTP status and code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, codeInvalidInput
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrInsufficientSignals):
		return http.StatusServiceUnavailable, codeInsufficientSignals
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// writeError aborts the request with the mapped error body. Internal
// errors are logged and their details withheld from the client.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := statusOf(err)
	msg := err.Error()
	switch code {
	case codeInsufficientSignals:
		msg = "no analysis possible: every signal provider abstained or was unavailable"
	case codeInternal:
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorBody{Error: msg, Code: code})
}

// bindError reports a body that failed to decode or bind as invalid input.
func bindError(entity string, err error) error {
	verr := domain.NewValidationError(entity)
	verr.AddError(err.Error())
	return verr
}
