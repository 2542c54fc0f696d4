package server

import (
	"context"
	"net/http"

	"github.com/cnosuke/link-preview/preview"
	"github.com/cnosuke/link-preview/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgMissingParameter = "URL parameter is required"
	msgInvalidRequest   = "Invalid URL or failed to fetch"
	msgFetchFailed      = "Failed to fetch metadata"
)

// Previewer produces a link preview for a URL.
type Previewer interface {
	Get(ctx context.Context, targetURL string) (*types.PreviewResult, error)
}

// errorStatus maps a preview failure to its HTTP status and client message.
func errorStatus(err error) (int, string) {
	switch preview.KindOf(err) {
	case preview.KindMissingParameter:
		return http.StatusBadRequest, msgMissingParameter
	case preview.KindFetchFailed:
		return http.StatusInternalServerError, msgFetchFailed
	default:
		// Invalid URLs and anything unexpected share one message.
		return http.StatusBadRequest, msgInvalidRequest
	}
}

// linkPreviewHandler - GET /api/link-preview?url=<targetUrl>
func linkPreviewHandler(p Previewer) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetURL := c.Query("url")

		result, err := p.Get(c.Request.Context(), targetURL)
		if err != nil {
			status, msg := errorStatus(err)
			zap.S().Errorw("error fetching link preview",
				"url", targetURL,
				"status", status,
				"kind", preview.KindOf(err).String(),
				"error", err)
			c.JSON(status, types.ErrorResponse{Error: msg})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
