// Package extract turns raw HTML pages into clean article content plus the
// metadata the page declares about itself.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/newsforge/newsforge/internal/news"
)

// Extraction is the usable content of one page.
type Extraction struct {
	Title        string
	BodyText     string
	CanonicalURL string
	Author       string
	PublishedAt  *time.Time
}

// Extractor parses article pages. Pages whose readable text is shorter than
// MinBodyChars are rejected as non-articles (hubs, paywalled stubs,
// error pages).
type Extractor struct {
	MinBodyChars int
}

// New builds an Extractor. minBodyChars <= 0 disables the length check.
func New(minBodyChars int) *Extractor {
	return &Extractor{MinBodyChars: minBodyChars}
}

// Extract runs readability over the page and collects canonical URL, author,
// and publication time from the document head. Returns
// news.ErrEmptyExtraction when no usable body is found.
func (e *Extractor) Extract(page news.RawPage) (Extraction, error) {
	pageURL, err := url.Parse(page.URL)
	if err != nil {
		return Extraction{}, fmt.Errorf("parse page url %s: %w", page.URL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(page.Body), pageURL)
	if err != nil {
		return Extraction{}, fmt.Errorf("readability %s: %w", page.URL, err)
	}

	body := NormalizeText(article.TextContent)
	if body == "" || (e.MinBodyChars > 0 && len(body) < e.MinBodyChars) {
		return Extraction{}, news.ErrEmptyExtraction
	}

	out := Extraction{
		Title:    strings.TrimSpace(article.Title),
		BodyText: body,
		Author:   strings.TrimSpace(article.Byline),
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err == nil {
		e.fillMeta(doc, pageURL, &out)
	}
	return out, nil
}

func (e *Extractor) fillMeta(doc *goquery.Document, pageURL *url.URL, out *Extraction) {
	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		if abs, err := pageURL.Parse(strings.TrimSpace(href)); err == nil {
			out.CanonicalURL = abs.String()
		}
	}
	if out.Author == "" {
		if name, ok := doc.Find(`meta[name="author"]`).Attr("content"); ok {
			out.Author = strings.TrimSpace(name)
		}
	}
	if ts, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
		if parsed, err := parseTimestamp(strings.TrimSpace(ts)); err == nil {
			out.PublishedAt = &parsed
		}
	}
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// NormalizeText collapses all runs of whitespace to single spaces and trims
// the ends. Equal bodies with different formatting hash identically
// afterward.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
