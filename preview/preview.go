package preview

import (
	"context"
	"time"

	"github.com/cnosuke/link-preview/scraper"
	"github.com/cnosuke/link-preview/types"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// DefaultTimeout bounds the single upstream fetch of a preview.
const DefaultTimeout = 5000 * time.Millisecond

// Service builds link previews on top of a Scraper. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	scraper  scraper.Scraper
	timeout  time.Duration
	validate *validator.Validate
}

// NewService creates a Service. A non-positive timeout falls back to DefaultTimeout.
func NewService(s scraper.Scraper, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		scraper:  s,
		timeout:  timeout,
		validate: validator.New(),
	}
}

// Get validates targetURL, scrapes it once and returns the preview.
// Every failure is returned as an *Error; panics raised while producing the
// preview are recovered and reported as KindInvalidRequest.
func (s *Service) Get(ctx context.Context, targetURL string) (result *types.PreviewResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("error fetching link preview", "url", targetURL, "panic", r)
			result = nil
			err = newError(KindInvalidRequest, errors.Newf("recovered: %v", r))
		}
	}()

	if targetURL == "" {
		return nil, newError(KindMissingParameter, nil)
	}

	if verr := s.validateURL(targetURL); verr != nil {
		zap.S().Warnw("rejected link preview URL", "url", targetURL, "error", verr)
		return nil, newError(KindInvalidURL, verr)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	meta, err := s.scraper.Scrape(ctx, targetURL)
	if err != nil {
		zap.S().Errorw("failed to fetch link preview metadata", "url", targetURL, "error", err)
		return nil, newError(KindFetchFailed, err)
	}
	if meta == nil {
		zap.S().Errorw("scraper returned no metadata", "url", targetURL)
		return nil, newError(KindInvalidRequest, errors.New("scraper returned no metadata"))
	}

	result = Build(meta, targetURL)
	zap.S().Debugw("built link preview",
		"url", targetURL,
		"has_title", result.Title != "",
		"has_description", result.Description != "",
		"has_image", result.Image != "")

	return result, nil
}

// validateURL accepts only well-formed absolute URLs.
func (s *Service) validateURL(targetURL string) error {
	if err := s.validate.Var(targetURL, "url"); err != nil {
		return errors.Wrapf(err, "%q is not an absolute URL", targetURL)
	}
	return nil
}

// Build picks each preview field from meta in a fixed preference order.
// URL is always targetURL, whatever redirects the scraper followed.
func Build(meta *types.Metadata, targetURL string) *types.PreviewResult {
	return &types.PreviewResult{
		Title:       firstNonEmpty(meta.OGTitle, meta.TwitterTitle, meta.DCTitle),
		Description: firstNonEmpty(meta.OGDescription, meta.TwitterDescription, meta.DCDescription),
		Image:       firstNonEmpty(firstImageURL(meta.OGImage), firstImageURL(meta.TwitterImage)),
		SiteName:    meta.OGSiteName,
		URL:         targetURL,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstImageURL(images []types.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
