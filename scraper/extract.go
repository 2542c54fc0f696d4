package scraper

import (
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	ierrors "github.com/cnosuke/link-preview/internal/errors"
	"github.com/cnosuke/link-preview/types"
)

// extract parses an HTML document and collects Open Graph, Twitter Card and
// Dublin Core meta tags. Scalar fields keep the first non-empty value seen.
// Image URLs are resolved against baseURL.
func extract(r io.Reader, baseURL string) (*types.Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to parse HTML")
	}

	base, _ := url.Parse(baseURL)
	meta := &types.Metadata{}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := metaKey(s)
		if key == "" {
			return
		}
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}

		switch key {
		case "og:title":
			setOnce(&meta.OGTitle, content)
		case "og:description":
			setOnce(&meta.OGDescription, content)
		case "og:site_name":
			setOnce(&meta.OGSiteName, content)
		case "og:type":
			setOnce(&meta.OGType, content)
		case "og:url":
			setOnce(&meta.OGURL, content)
		case "og:image", "og:image:url":
			meta.OGImage = append(meta.OGImage, types.Image{URL: resolve(base, content)})
		case "og:image:secure_url":
			if img := lastImage(meta.OGImage); img != nil {
				img.URL = resolve(base, content)
			} else {
				meta.OGImage = append(meta.OGImage, types.Image{URL: resolve(base, content)})
			}
		case "og:image:type", "og:image:alt", "og:image:width", "og:image:height":
			applyImageProperty(lastImage(meta.OGImage), strings.TrimPrefix(key, "og:image:"), content)

		case "twitter:card":
			setOnce(&meta.TwitterCard, content)
		case "twitter:title":
			setOnce(&meta.TwitterTitle, content)
		case "twitter:description":
			setOnce(&meta.TwitterDescription, content)
		case "twitter:image", "twitter:image:src", "twitter:image:url":
			meta.TwitterImage = append(meta.TwitterImage, types.Image{URL: resolve(base, content)})
		case "twitter:image:alt", "twitter:image:width", "twitter:image:height":
			applyImageProperty(lastImage(meta.TwitterImage), strings.TrimPrefix(key, "twitter:image:"), content)

		case "dc.title", "dc:title", "dcterms.title", "dcterms:title":
			setOnce(&meta.DCTitle, content)
		case "dc.description", "dc:description", "dcterms.description", "dcterms:description":
			setOnce(&meta.DCDescription, content)
		}
	})

	return meta, nil
}

// metaKey returns the lowercased property or name of a meta tag.
// Sites mix the two attributes freely for og: and twitter: tags.
func metaKey(s *goquery.Selection) string {
	if v, ok := s.Attr("property"); ok && v != "" {
		return strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := s.Attr("name"); ok && v != "" {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return ""
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func lastImage(images []types.Image) *types.Image {
	if len(images) == 0 {
		return nil
	}
	return &images[len(images)-1]
}

func applyImageProperty(img *types.Image, prop, content string) {
	if img == nil {
		return
	}
	switch prop {
	case "type":
		img.Type = content
	case "alt":
		img.Alt = content
	case "width":
		if n, err := strconv.Atoi(content); err == nil {
			img.Width = n
		}
	case "height":
		if n, err := strconv.Atoi(content); err == nil {
			img.Height = n
		}
	}
}

// resolve turns a possibly relative reference into an absolute URL.
// Unparseable references are returned unchanged.
func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil || u.IsAbs() {
		return ref
	}
	return base.ResolveReference(u).String()
}
