package types

import "time"

// PreviewResult - Link preview returned to clients
type PreviewResult struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"siteName,omitempty"`
	// URL always echoes the validated input, even if the page redirected.
	URL string `json:"url"`
}

// ErrorResponse - Error body for failed requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// Image - Image entry from og:image or twitter:image
type Image struct {
	URL    string `json:"url"`
	Type   string `json:"type,omitempty"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Metadata - Raw page metadata extracted by the scraper
type Metadata struct {
	OGTitle       string  `json:"og_title,omitempty"`
	OGDescription string  `json:"og_description,omitempty"`
	OGSiteName    string  `json:"og_site_name,omitempty"`
	OGType        string  `json:"og_type,omitempty"`
	OGURL         string  `json:"og_url,omitempty"`
	OGImage       []Image `json:"og_image,omitempty"`

	TwitterCard        string  `json:"twitter_card,omitempty"`
	TwitterTitle       string  `json:"twitter_title,omitempty"`
	TwitterDescription string  `json:"twitter_description,omitempty"`
	TwitterImage       []Image `json:"twitter_image,omitempty"`

	DCTitle       string `json:"dc_title,omitempty"`
	DCDescription string `json:"dc_description,omitempty"`

	RequestURL string `json:"request_url"`
	// FinalURL differs from RequestURL only when redirects were followed.
	FinalURL    string `json:"final_url"`
	ContentType string `json:"content_type"`
	Charset     string `json:"charset,omitempty"`
	StatusCode  int    `json:"status_code"`
}

// User - Identity returned by the OAuth provider
type User struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// Session - Signed-in session as exposed on /auth/session
type Session struct {
	User    *User     `json:"user"`
	Expires time.Time `json:"expires"`
}
