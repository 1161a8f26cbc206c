package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

const samPage = `{
  "_embedded": {"results": [
    {"noticeId": "N1", "title": "Freight Lane Management", "department": {"name": "Department of the Navy"},
     "awardCeiling": "$2,000,000.00", "responseDeadLine": "2026-06-01T17:00:00-04:00", "competitionType": "Full and Open Competition"},
    {"noticeId": "N2", "title": "Courier Support", "department": "GSA", "awardCeiling": 50, "responseDeadLine": null}
  ]},
  "page": {"totalPages": 1}
}`

func samConfig(baseURL string, codes ...string) SourceConfig {
	return SourceConfig{
		ID:                  "sam_gov",
		Name:                "SAM.gov",
		Strategy:            StrategySAMGov,
		BaseURL:             baseURL,
		ClassificationCodes: codes,
		PageSize:            25,
		MaxPages:            1,
	}
}

func TestSAMGovSource_FetchAndParse(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "opp", q.Get("index"))
		assert.Equal(t, `naicsCode:"488510"`, q.Get("q"))
		assert.Equal(t, "0", q.Get("page"))
		assert.Equal(t, "25", q.Get("size"))
		assert.Equal(t, "-modifiedDate", q.Get("sort"))
		assert.Equal(t, "search", q.Get("mode"))
		_, _ = w.Write([]byte(samPage))
	}))
	defer srv.Close()

	src := NewSAMGovSource(samConfig(srv.URL+"/search/", "488510"), srv.Client(), nil)
	listings, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.EqualValues(t, 1, hits.Load())

	first := listings[0]
	assert.Equal(t, "Freight Lane Management", first.Title)
	assert.Equal(t, "Department of the Navy", first.Agency)
	assert.Equal(t, "488510", first.Classification)
	require.NotNil(t, first.Value)
	assert.Equal(t, 2_000_000.0, *first.Value)
	require.NotNil(t, first.Deadline)
	assert.Equal(t, time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC), first.Deadline.UTC())
	assert.Equal(t, FullAndOpenCompetition, first.CompetitionType)
	assert.Equal(t, "Source: SAM.gov | ID: N1", first.Notes)

	second := listings[1]
	assert.Equal(t, "GSA", second.Agency)
	assert.Equal(t, 50.0, *second.Value)
	assert.Nil(t, second.Deadline)
}

func TestSAMGovSource_OneCodeFailsIsPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("q"), "541614") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(samPage))
	}))
	defer srv.Close()

	src := NewSAMGovSource(samConfig(srv.URL, "488510", "541614", "332311"), srv.Client(), nil)
	listings, err := src.Fetch(context.Background())

	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.Zero(t, partial.FailedItems)
	assert.Contains(t, err.Error(), "541614")
	assert.Len(t, listings, 4)
}

func TestSAMGovSource_AllCodesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	src := NewSAMGovSource(samConfig(srv.URL, "488510", "541614"), srv.Client(), nil)
	listings, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Nil(t, listings)
	var partial *PartialError
	assert.False(t, errors.As(err, &partial))
}

func TestSAMGovSource_Paginates(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages = append(pages, r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"_embedded":{"results":[{"title":"A listing title"}]},"page":{"totalPages":3}}`))
	}))
	defer srv.Close()

	cfg := samConfig(srv.URL, "488510")
	cfg.PageSize = 1
	cfg.MaxPages = 5
	listings, err := NewSAMGovSource(cfg, srv.Client(), nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, listings, 3)
	assert.Equal(t, []string{"0", "1", "2"}, pages)
}

func TestSAMGovSource_PacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"_embedded":{"results":[]}}`))
	}))
	defer srv.Close()

	cfg := samConfig(srv.URL, "1", "2", "3")
	cfg.RequestDelayMS = 40
	start := time.Now()
	_, err := NewSAMGovSource(cfg, srv.Client(), nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
}

func TestSAMGovSource_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(samPage))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSAMGovSource(samConfig(srv.URL, "488510"), srv.Client(), nil).Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func marketplaceConfig(baseURL string) SourceConfig {
	return SourceConfig{
		ID:             "unison",
		Name:           "Unison",
		Strategy:       StrategyMarketplace,
		BaseURL:        baseURL,
		ClassKeywords:  []string{"opportunity", "contract"},
		MaxItems:       20,
		MaxTitleLength: 200,
		FallbackTitle:  "Unison Opportunity",
		Notes:          "Source: Unison Marketplace",
	}
}

func TestExtractMarketplaceListings(t *testing.T) {
	body, err := os.ReadFile("testdata/marketplace.html")
	require.NoError(t, err)

	listings, err := extractMarketplaceListings(body, marketplaceConfig(""))
	require.NoError(t, err)

	var titles []string
	for _, l := range listings {
		titles = append(titles, l.Title)
		assert.Equal(t, "Source: Unison Marketplace", l.Notes)
	}
	assert.Equal(t, []string{
		"Freight forwarding services for regional depots",
		"Tiny",
		"Marine vessel repair and drydock maintenance",
		"Unison Opportunity",
	}, titles)
}

func TestExtractMarketplaceListings_CapsAndTruncates(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 30; i++ {
		b.WriteString(`<div class="opportunity">` + strings.Repeat("x", 300) + `</div>`)
	}
	b.WriteString("</body></html>")

	listings, err := extractMarketplaceListings([]byte(b.String()), marketplaceConfig(""))
	require.NoError(t, err)
	assert.Len(t, listings, 20)
	assert.Len(t, listings[0].Title, 200)
}

func TestMarketplaceSource_Fetch(t *testing.T) {
	page, err := os.ReadFile("testdata/marketplace.html")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/opportunities" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}))
	defer srv.Close()

	listings, err := NewMarketplaceSource(marketplaceConfig(srv.URL+"/opportunities"), nil, nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, listings, 4)

	_, err = NewMarketplaceSource(marketplaceConfig(srv.URL+"/missing"), nil, nil).Fetch(context.Background())
	assert.Error(t, err)
}

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, _ string, _ time.Duration) (string, error) {
	f.calls++
	return f.html, f.err
}

func renderedConfig() SourceConfig {
	return SourceConfig{
		ID:            "miami_dade",
		Name:          "Miami-Dade",
		Strategy:      StrategyRenderedPage,
		BaseURL:       "https://example.invalid/solicitations",
		Selectors:     SelectorConfig{Container: ".solicitation-item, .bid-item, tr", Title: "td:first-child, .title, h3, a"},
		MaxItems:      25,
		FallbackTitle: "Miami-Dade Contract",
		Notes:         "Source: Miami-Dade County Portal",
	}
}

func TestRenderedPageSource_Extract(t *testing.T) {
	html, err := os.ReadFile("testdata/solicitations.html")
	require.NoError(t, err)

	src := NewRenderedPageSource(renderedConfig(), &fakeRenderer{html: string(html)}, nil)
	listings, err := src.Fetch(context.Background())
	require.NoError(t, err, "blank spacer rows are not extraction failures")
	require.Len(t, listings, 4)

	assert.Equal(t, "RFP-2026-001 Logistics consulting for seaport", listings[0].Title)
	require.NotNil(t, listings[0].Deadline)
	assert.Equal(t, "2026-03-15", listings[0].Deadline.Format("2006-01-02"))

	assert.Equal(t, "2026-04-01", listings[1].Deadline.Format("2006-01-02"))

	assert.Equal(t, "Miami-Dade Contract", listings[2].Title)
	assert.Equal(t, "2026-12-31", listings[2].Deadline.Format("2006-01-02"))

	assert.Equal(t, "Short", listings[3].Title)
	assert.Nil(t, listings[3].Deadline)
}

func TestRenderedPageSource_SpacerRowsAndMissingTitles(t *testing.T) {
	html := `<html><body><table>
  <tr><td>RFP-2026-002 Janitorial services</td><td>Due 05/01/2026</td></tr>
  <tr><td> </td><td></td></tr>
  <tr></tr>
</table></body></html>`

	listings, err := NewRenderedPageSource(renderedConfig(), &fakeRenderer{html: html}, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "RFP-2026-002 Janitorial services", listings[0].Title)

	cfg := renderedConfig()
	cfg.Selectors.Title = "h3"
	cfg.FallbackTitle = ""
	html = `<html><body>
<div class="solicitation-item"><h3>Bridge inspection services</h3></div>
<div class="bid-item">Courier services 12-31-2026</div>
<div class="bid-item">   </div>
</body></html>`

	listings, err = NewRenderedPageSource(cfg, &fakeRenderer{html: html}, nil).Fetch(context.Background())
	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.FailedItems)
	assert.ErrorIs(t, err, errNoTitle)
	require.Len(t, listings, 1)
	assert.Equal(t, "Bridge inspection services", listings[0].Title)
}

func TestRenderedPageSource_CapsElements(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for i := 0; i < 40; i++ {
		b.WriteString("<tr><td>Solicitation row with a long title</td></tr>")
	}
	b.WriteString("</table></body></html>")

	listings, err := NewRenderedPageSource(renderedConfig(), &fakeRenderer{html: b.String()}, nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, listings, 25)
}

func TestRenderedPageSource_RenderError(t *testing.T) {
	boom := errors.New("navigation timeout")
	_, err := NewRenderedPageSource(renderedConfig(), &fakeRenderer{err: boom}, nil).Fetch(context.Background())
	assert.ErrorIs(t, err, boom)
}
