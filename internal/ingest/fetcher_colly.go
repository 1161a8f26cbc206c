package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

const maxPageBody = 10 * 1024 * 1024

// collyPageFetcher downloads single pages with colly. Transport nil keeps colly's default.
type collyPageFetcher struct {
	Timeout   time.Duration
	Transport http.RoundTripper
}

func (f collyPageFetcher) buildCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(browserUserAgent),
		colly.MaxBodySize(maxPageBody),
		colly.DetectCharset(),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	if f.Transport != nil {
		c.WithTransport(f.Transport)
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c.SetRequestTimeout(timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})
	return c
}

// Fetch returns the body of a successful response.
func (f collyPageFetcher) Fetch(ctx context.Context, targetURL string) ([]byte, error) {
	c := f.buildCollector(ctx)

	var (
		body     []byte
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("unexpected status code %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	if err := c.Visit(targetURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fmt.Errorf("visit %s: %w", targetURL, fetchErr)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if body == nil {
		return nil, fmt.Errorf("no response received for %s", targetURL)
	}
	return body, nil
}
