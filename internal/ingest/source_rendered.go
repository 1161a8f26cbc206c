package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

var errNoTitle = errors.New("element has no title and no fallback is configured")

// RenderedPageSource scrapes a portal whose listings only exist after client-side rendering.
type RenderedPageSource struct {
	cfg      SourceConfig
	renderer Renderer
	logger   *logrus.Entry
}

func NewRenderedPageSource(cfg SourceConfig, renderer Renderer, logger *logrus.Entry) *RenderedPageSource {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RenderedPageSource{cfg: cfg, renderer: renderer, logger: logger.WithField("source", cfg.ID)}
}

func (s *RenderedPageSource) Name() string { return s.cfg.Name }

func (s *RenderedPageSource) Fetch(ctx context.Context) ([]RawListing, error) {
	html, err := s.renderer.Render(ctx, s.cfg.BaseURL, s.cfg.SettleDelay())
	if err != nil {
		return nil, err
	}
	return s.extract(html)
}

// extract walks candidate elements in document order up to the configured cap.
// Blank elements such as spacer rows are ignored; elements that cannot be read
// are skipped and counted.
func (s *RenderedPageSource) extract(html string) ([]RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}

	var (
		listings []RawListing
		failures []error
	)
	doc.Find(s.cfg.Selectors.Container).EachWithBreak(func(i int, el *goquery.Selection) bool {
		if s.cfg.MaxItems > 0 && i >= s.cfg.MaxItems {
			return false
		}
		listing, ok, err := s.extractElement(el)
		if err != nil {
			failures = append(failures, fmt.Errorf("element %d: %w", i, err))
			return true
		}
		if ok {
			listings = append(listings, listing)
		}
		return true
	})

	if len(failures) > 0 {
		s.logger.WithField("skipped", len(failures)).Debug("some elements could not be extracted")
		return listings, &PartialError{FailedItems: len(failures), Err: errors.Join(failures...)}
	}
	return listings, nil
}

func (s *RenderedPageSource) extractElement(el *goquery.Selection) (RawListing, bool, error) {
	text := normalizeSpace(el.Text())
	if text == "" {
		return RawListing{}, false, nil
	}

	title := ""
	if s.cfg.Selectors.Title != "" {
		title = normalizeSpace(el.Find(s.cfg.Selectors.Title).First().Text())
	}
	if title == "" {
		title = s.cfg.FallbackTitle
	}
	if title == "" {
		return RawListing{}, false, errNoTitle
	}

	return RawListing{
		Title:    title,
		Deadline: extractDateFromText(text),
		Notes:    s.cfg.Notes,
	}, true, nil
}
