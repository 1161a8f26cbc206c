package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxAPIBody = 10 << 20

// SAMGovSource queries the SAM.gov search API once per classification code.
type SAMGovSource struct {
	cfg     SourceConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *logrus.Entry
}

func NewSAMGovSource(cfg SourceConfig, client *http.Client, logger *logrus.Entry) *SAMGovSource {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 25
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	limit := rate.Inf
	if d := cfg.RequestDelay(); d > 0 {
		limit = rate.Every(d)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SAMGovSource{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.WithField("source", cfg.ID),
	}
}

func (s *SAMGovSource) Name() string { return s.cfg.Name }

type samSearchResponse struct {
	Embedded struct {
		Results []samNotice `json:"results"`
	} `json:"_embedded"`
	Page struct {
		TotalPages int `json:"totalPages"`
	} `json:"page"`
}

type samNotice struct {
	NoticeID         looseString     `json:"noticeId"`
	Title            looseString     `json:"title"`
	Department       json.RawMessage `json:"department"`
	AwardCeiling     looseString     `json:"awardCeiling"`
	ResponseDeadline looseString     `json:"responseDeadLine"`
	CompetitionType  looseString     `json:"competitionType"`
}

// departmentName accepts {"name": "..."} or a bare string.
func departmentName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Name looseString `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return string(obj.Name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// Fetch walks every classification code. A failing code is skipped and reported
// through *PartialError; only when every code fails is the whole fetch an error.
func (s *SAMGovSource) Fetch(ctx context.Context) ([]RawListing, error) {
	var (
		listings []RawListing
		failures []error
	)

	for _, code := range s.cfg.ClassificationCodes {
		got, err := s.fetchCode(ctx, code)
		listings = append(listings, got...)
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.WithError(err).WithField("naics", code).Warn("classification code failed, continuing")
		failures = append(failures, fmt.Errorf("naics %s: %w", code, err))
	}

	switch {
	case len(failures) == 0:
		return listings, nil
	case len(failures) == len(s.cfg.ClassificationCodes) && len(listings) == 0:
		return nil, fmt.Errorf("all classification codes failed: %w", errors.Join(failures...))
	default:
		return listings, &PartialError{Err: errors.Join(failures...)}
	}
}

func (s *SAMGovSource) fetchCode(ctx context.Context, code string) ([]RawListing, error) {
	var listings []RawListing
	for page := 0; page < s.cfg.MaxPages; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return listings, err
		}

		resp, err := s.fetchPage(ctx, code, page)
		if err != nil {
			return listings, err
		}

		for _, n := range resp.Embedded.Results {
			listings = append(listings, s.toListing(code, n))
		}

		s.logger.WithFields(logrus.Fields{"naics": code, "page": page, "results": len(resp.Embedded.Results)}).Debug("fetched page")

		if len(resp.Embedded.Results) < s.cfg.PageSize || page+1 >= resp.Page.TotalPages {
			break
		}
	}
	return listings, nil
}

func (s *SAMGovSource) searchURL(code string, page int) string {
	q := url.Values{}
	q.Set("index", "opp")
	q.Set("q", fmt.Sprintf("naicsCode:%q", code))
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(s.cfg.PageSize))
	q.Set("sort", "-modifiedDate")
	q.Set("mode", "search")
	return s.cfg.BaseURL + "?" + q.Encode()
}

func (s *SAMGovSource) fetchPage(ctx context.Context, code string, page int) (*samSearchResponse, error) {
	req, err := newGetRequest(ctx, s.searchURL(code, page), "application/json")
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var out samSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func (s *SAMGovSource) toListing(code string, n samNotice) RawListing {
	return RawListing{
		Title:           string(n.Title),
		Agency:          departmentName(n.Department),
		Classification:  code,
		Value:           parseCurrency(string(n.AwardCeiling)),
		Deadline:        parseISODeadline(string(n.ResponseDeadline)),
		CompetitionType: strings.TrimSpace(string(n.CompetitionType)),
		NoticeID:        string(n.NoticeID),
		Notes:           fmt.Sprintf("Source: %s | ID: %s", s.cfg.Name, n.NoticeID),
	}
}
