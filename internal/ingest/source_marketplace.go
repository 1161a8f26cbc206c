package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// MarketplaceSource scrapes a static listing page, picking elements by class keyword.
type MarketplaceSource struct {
	cfg     SourceConfig
	fetcher collyPageFetcher
	logger  *logrus.Entry
}

func NewMarketplaceSource(cfg SourceConfig, transport http.RoundTripper, logger *logrus.Entry) *MarketplaceSource {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MarketplaceSource{
		cfg:     cfg,
		fetcher: collyPageFetcher{Timeout: cfg.Timeout(), Transport: transport},
		logger:  logger.WithField("source", cfg.ID),
	}
}

func (s *MarketplaceSource) Name() string { return s.cfg.Name }

func (s *MarketplaceSource) Fetch(ctx context.Context) ([]RawListing, error) {
	body, err := s.fetcher.Fetch(ctx, s.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	listings, err := extractMarketplaceListings(body, s.cfg)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("candidates", len(listings)).Debug("marketplace page parsed")
	return listings, nil
}

// extractMarketplaceListings picks div, tr and li elements whose class attribute
// contains one of the configured keywords, case-insensitively, in document order.
func extractMarketplaceListings(body []byte, cfg SourceConfig) ([]RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse marketplace page: %w", err)
	}

	keywords := make([]string, 0, len(cfg.ClassKeywords))
	for _, k := range cfg.ClassKeywords {
		keywords = append(keywords, strings.ToLower(k))
	}

	var listings []RawListing
	doc.Find("div, tr, li").Each(func(_ int, el *goquery.Selection) {
		if cfg.MaxItems > 0 && len(listings) >= cfg.MaxItems {
			return
		}
		class, ok := el.Attr("class")
		if !ok || !containsAny(strings.ToLower(class), keywords) {
			return
		}

		title := truncateRunes(normalizeSpace(el.Text()), cfg.MaxTitleLength)
		if title == "" {
			title = cfg.FallbackTitle
		}
		listings = append(listings, RawListing{Title: title, Notes: cfg.Notes})
	})
	return listings, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
