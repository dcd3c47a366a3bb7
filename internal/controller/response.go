package controller

import (
	"log/slog"
	"net/http"
	"time"

	"water-monitoring/internal/apperr"

	"github.com/gin-gonic/gin"
)

// writeError maps a classified failure to the {"error","message"} body.
// Unclassified errors never leak their text to the client.
func writeError(ctx *gin.Context, logger *slog.Logger, err error, startTime time.Time, extra gin.H) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"error": http.StatusText(status)}

	if appErr, ok := apperr.As(err); ok {
		body["message"] = appErr.Message
		body["retryable"] = appErr.Retryable()
	} else {
		body["message"] = "An unexpected error occurred"
		body["retryable"] = true
	}
	for k, v := range extra {
		body[k] = v
	}

	latency := time.Since(startTime)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"path", ctx.Request.URL.Path,
			"status", status,
			"error", err.Error(),
			"latency_ms", latency.Milliseconds(),
		)
	} else {
		logger.Warn("request rejected",
			"path", ctx.Request.URL.Path,
			"status", status,
			"error", err.Error(),
			"latency_ms", latency.Milliseconds(),
		)
	}
	ctx.JSON(status, body)
}
