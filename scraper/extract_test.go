package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		check func(t *testing.T, title, desc, site string, ogImages, twImages []string)
	}{
		{
			name: "first value wins",
			html: `<meta property="og:title" content="First"><meta property="og:title" content="Second">`,
			check: func(t *testing.T, title, _, _ string, _, _ []string) {
				assert.Equal(t, "First", title)
			},
		},
		{
			name: "og via name attribute and mixed case",
			html: `<meta name="OG:Title" content="Named"><meta NAME="og:site_name" content="Site">`,
			check: func(t *testing.T, title, _, site string, _, _ []string) {
				assert.Equal(t, "Named", title)
				assert.Equal(t, "Site", site)
			},
		},
		{
			name: "empty content is skipped",
			html: `<meta property="og:title" content="  "><meta property="og:title" content="Real">`,
			check: func(t *testing.T, title, _, _ string, _, _ []string) {
				assert.Equal(t, "Real", title)
			},
		},
		{
			name: "secure url replaces the preceding image",
			html: `<meta property="og:image" content="http://example.com/a.png"><meta property="og:image:secure_url" content="https://example.com/a.png">`,
			check: func(t *testing.T, _, _, _ string, og, _ []string) {
				assert.Equal(t, []string{"https://example.com/a.png"}, og)
			},
		},
		{
			name: "twitter image src alias",
			html: `<meta name="twitter:image:src" content="https://example.com/t.png">`,
			check: func(t *testing.T, _, _, _ string, _, tw []string) {
				assert.Equal(t, []string{"https://example.com/t.png"}, tw)
			},
		},
		{
			name: "dublin core variants",
			html: `<meta name="dcterms.title" content="Terms Title"><meta name="DC:description" content="Colon Desc">`,
			check: func(t *testing.T, _, desc, _ string, _, _ []string) {
				assert.Equal(t, "Colon Desc", desc)
			},
		},
		{
			name: "no metadata",
			html: `<html><head><title>Plain</title></head></html>`,
			check: func(t *testing.T, title, desc, site string, og, tw []string) {
				assert.Empty(t, title)
				assert.Empty(t, desc)
				assert.Empty(t, site)
				assert.Empty(t, og)
				assert.Empty(t, tw)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := extract(strings.NewReader(tt.html), "https://example.com/page")
			require.NoError(t, err)

			var og, tw []string
			for _, img := range meta.OGImage {
				og = append(og, img.URL)
			}
			for _, img := range meta.TwitterImage {
				tw = append(tw, img.URL)
			}
			tt.check(t, meta.OGTitle, meta.DCDescription, meta.OGSiteName, og, tw)
		})
	}
}

func TestResolve(t *testing.T) {
	meta, err := extract(strings.NewReader(`<meta property="og:image" content="../img/p.png">`), "https://example.com/blog/post/")
	require.NoError(t, err)
	require.Len(t, meta.OGImage, 1)
	assert.Equal(t, "https://example.com/blog/img/p.png", meta.OGImage[0].URL)
}
