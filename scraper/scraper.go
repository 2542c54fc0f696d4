package scraper

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"time"
	"unicode/utf8"

	ierrors "github.com/cnosuke/link-preview/internal/errors"
	"github.com/cnosuke/link-preview/types"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

var (
	// ErrUnexpectedStatus is returned when the page answers with a 4xx or 5xx status.
	ErrUnexpectedStatus = errors.New("server returned an error status")
	// ErrNotHTML is returned when the page is not an HTML document.
	ErrNotHTML = errors.New("page is not an HTML document")
	// ErrTooManyRedirects is returned when the redirect limit is exceeded.
	ErrTooManyRedirects = errors.New("too many redirects")
)

type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	MaxRedirects int
}

// Scraper fetches a page and extracts its Open Graph, Twitter Card and
// Dublin Core metadata.
type Scraper interface {
	// Scrape performs exactly one page fetch (following redirects) and
	// returns the metadata found in the document.
	Scrape(ctx context.Context, urlStr string) (*types.Metadata, error)
}

// httpScraper implements the Scraper interface using HTTP.
type httpScraper struct {
	client       *http.Client
	timeout      time.Duration
	userAgent    string
	maxBodyBytes int64
}

// NewHTTPScraper creates a new httpScraper.
func NewHTTPScraper(cfg *Config) (Scraper, error) {
	if cfg.Timeout <= 0 {
		return nil, errors.Newf("scraper timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.MaxBodyBytes <= 0 {
		return nil, errors.Newf("scraper body limit must be positive, got %d", cfg.MaxBodyBytes)
	}

	zap.S().Infow("creating new HTTP scraper",
		"timeout", cfg.Timeout,
		"user_agent", cfg.UserAgent,
		"max_body_bytes", cfg.MaxBodyBytes,
		"max_redirects", cfg.MaxRedirects)

	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.Wrapf(ErrTooManyRedirects, "stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &httpScraper{
		client:       client,
		timeout:      cfg.Timeout,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
	}, nil
}

type page struct {
	requestURL  string
	finalURL    string
	status      int
	contentType string
	charset     string
	body        []byte
}

func (s *httpScraper) fetch(ctx context.Context, urlStr string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to execute request")
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.Wrapf(ErrUnexpectedStatus, "%s answered %d", finalURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodyBytes))
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to read response body")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	zap.S().Debugw(
		"response received",
		"url", urlStr,
		"final_url", finalURL,
		"status", resp.StatusCode,
		"content-length", resp.ContentLength,
		"bytes", len(body),
		"content_type", contentType,
	)

	if !isHTML(contentType) {
		return nil, errors.Wrapf(ErrNotHTML, "content type %q", contentType)
	}

	decoded, name, err := decodeBody(body, contentType)
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to decode response body")
	}

	return &page{
		requestURL:  urlStr,
		finalURL:    finalURL,
		status:      resp.StatusCode,
		contentType: contentType,
		charset:     name,
		body:        decoded,
	}, nil
}

// Scrape fetches urlStr and extracts its metadata.
func (s *httpScraper) Scrape(ctx context.Context, urlStr string) (*types.Metadata, error) {
	zap.S().Debugw("scraping URL", "url", urlStr, "timeout", s.timeout)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.fetch(ctx, urlStr)
	if err != nil {
		// Error is already wrapped in s.fetch
		return nil, err
	}

	meta, err := extract(bytes.NewReader(p.body), p.finalURL)
	if err != nil {
		return nil, err
	}
	meta.RequestURL = p.requestURL
	meta.FinalURL = p.finalURL
	meta.ContentType = p.contentType
	meta.Charset = p.charset
	meta.StatusCode = p.status

	zap.S().Debugw("extracted metadata",
		"url", urlStr,
		"og_title", meta.OGTitle,
		"twitter_title", meta.TwitterTitle,
		"dc_title", meta.DCTitle,
		"og_images", len(meta.OGImage),
		"twitter_images", len(meta.TwitterImage))

	return meta, nil
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// decodeBody converts body to UTF-8 using a BOM, the Content-Type charset or
// a <meta charset> declaration, in that order of precedence. Undeclared
// bodies that are valid UTF-8 are kept as is.
func decodeBody(body []byte, contentType string) ([]byte, string, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(body)) {
		return body, "utf-8", nil
	}
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return nil, name, err
	}
	return decoded, name, nil
}
