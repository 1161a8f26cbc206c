package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/david/contract-broker/internal/db"
	"github.com/david/contract-broker/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrAllSourcesFailed = errors.New("every source failed")

// ContractStore persists candidate contracts inside one transaction per source.
type ContractStore interface {
	WithContractBatch(ctx context.Context, fn func(db.ContractBatch) error) error
}

// RunLedger records one entry per source per cycle.
type RunLedger interface {
	AppendRun(ctx context.Context, run *models.ScrapingRun) error
}

// Coordinator runs ingestion cycles: sources in registry order, one at a time.
type Coordinator struct {
	Store    ContractStore
	Ledger   RunLedger
	Registry *Registry
	Factory  *StrategyFactory
	Browser  BrowserLauncher // nil disables browser-rendered sources
	Logger   *logrus.Logger

	HTTPClient *http.Client      // nil builds the SSRF-safe client per source
	Transport  http.RoundTripper // nil keeps colly's default transport
	Now        func() time.Time
}

func NewCoordinator(store ContractStore, ledger RunLedger, registry *Registry, browser BrowserLauncher, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		Store:     store,
		Ledger:    ledger,
		Registry:  registry,
		Factory:   DefaultStrategies(),
		Browser:   browser,
		Logger:    logger,
		Transport: NewSafeTransport(),
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run ingests the named sources, or every active one. A failing source never
// stops the others; the returned map always has an entry per selected source.
// The error is non-nil when storage failed or when every source failed.
func (c *Coordinator) Run(ctx context.Context, sourceIDs ...string) (map[string]SourceSummary, error) {
	sources, err := c.Registry.Select(sourceIDs...)
	if err != nil {
		return nil, err
	}

	cycleID := uuid.New()
	log := c.Logger.WithField("cycle", cycleID)
	log.WithField("sources", len(sources)).Info("ingestion cycle started")

	env := AdapterEnv{HTTPClient: c.HTTPClient, Transport: c.Transport, Logger: log}
	if session := c.openBrowser(ctx, sources, &env); session != nil {
		defer func() {
			if err := session.Close(); err != nil {
				log.WithError(err).Warn("browser close failed")
			}
		}()
	}

	results := make(map[string]SourceSummary, len(sources))
	failed := 0
	for i, src := range sources {
		summary, err := c.runSource(ctx, cycleID, src, env)
		results[src.ID] = summary
		if err != nil {
			c.abortRemaining(ctx, cycleID, sources[i+1:], results, err)
			return results, fmt.Errorf("ingest %s: %w", src.ID, err)
		}
		if summary.Outcome == models.RunError {
			failed++
		}
	}

	log.WithField("failed", failed).Info("ingestion cycle finished")
	if len(sources) > 0 && failed == len(sources) {
		return results, ErrAllSourcesFailed
	}
	return results, nil
}

func (c *Coordinator) openBrowser(ctx context.Context, sources []SourceConfig, env *AdapterEnv) BrowserSession {
	needed := false
	for _, src := range sources {
		if c.Factory.NeedsBrowser(src.Strategy) {
			needed = true
			break
		}
	}
	if !needed || c.Browser == nil {
		return nil
	}

	session, err := c.Browser.Launch(ctx)
	if err != nil {
		c.Logger.WithError(err).Warn("browser launch failed; rendered sources will be marked failed")
		env.RendererErr = err
		return nil
	}
	env.Renderer = session
	return session
}

// runSource only returns an error for storage failures; source failures land in the summary.
func (c *Coordinator) runSource(ctx context.Context, cycleID uuid.UUID, src SourceConfig, env AdapterEnv) (SourceSummary, error) {
	log := env.Logger.WithField("source", src.ID)
	summary := SourceSummary{Source: src.Name, Outcome: models.RunSuccess}

	listings, fetchErr := c.fetch(ctx, src, env)
	var partial *PartialError
	switch {
	case fetchErr == nil:
	case errors.As(fetchErr, &partial):
		summary.Outcome = models.RunPartial
		summary.Error = fetchErr.Error()
		summary.Found = partial.FailedItems
	default:
		log.WithError(fetchErr).Error("source failed")
		summary.Outcome = models.RunError
		summary.Error = fetchErr.Error()
		return summary, c.record(ctx, cycleID, summary)
	}
	summary.Found += len(listings)

	added, err := c.persist(ctx, src, listings)
	if err != nil {
		summary.Outcome = models.RunError
		summary.Error = err.Error()
		summary.Added = 0
		if recErr := c.record(ctx, cycleID, summary); recErr != nil {
			log.WithError(recErr).Error("ledger write failed after storage failure")
		}
		return summary, err
	}
	summary.Added = added

	log.WithFields(logrus.Fields{"found": summary.Found, "added": added, "outcome": summary.Outcome}).Info("source ingested")
	return summary, c.record(ctx, cycleID, summary)
}

func (c *Coordinator) fetch(ctx context.Context, src SourceConfig, env AdapterEnv) (listings []RawListing, err error) {
	adapter, err := c.Factory.Build(src, env)
	if err != nil {
		return nil, err
	}

	// Adapters parse untrusted markup; a panic there fails the source, not the cycle.
	defer func() {
		if r := recover(); r != nil {
			listings, err = nil, fmt.Errorf("adapter %s panicked: %v", adapter.Name(), r)
		}
	}()
	return adapter.Fetch(ctx)
}

func (c *Coordinator) persist(ctx context.Context, src SourceConfig, listings []RawListing) (int, error) {
	now := c.Now()
	added := 0
	err := c.Store.WithContractBatch(ctx, func(batch db.ContractBatch) error {
		added = 0
		for _, l := range listings {
			contract, ok := toContract(src, l, now)
			if !ok {
				continue
			}
			exists, err := batch.Exists(ctx, contract.Title, contract.Agency)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := batch.Insert(ctx, contract); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// toContract applies source defaults, the title filter and scoring.
func toContract(src SourceConfig, l RawListing, now time.Time) (*models.Contract, bool) {
	title := cleanText(l.Title)
	if title == "" || len([]rune(title)) < src.MinTitleLength {
		return nil, false
	}

	agency := cleanText(l.Agency)
	if agency == "" {
		agency = src.DefaultAgency
	}
	classification := l.Classification
	if classification == "" {
		classification = src.DefaultClassification
	}
	notes := l.Notes
	if notes == "" {
		notes = src.Notes
	}

	score := src.FixedScore
	if score > 0 {
		score = clampScore(score)
	} else {
		score = Score(l.Value, l.CompetitionType, DaysUntil(l.Deadline, now))
	}

	return &models.Contract{
		Title:            title,
		Agency:           agency,
		NAICSCode:        classification,
		Value:            l.Value,
		Deadline:         l.Deadline,
		Status:           models.ContractStatusActive,
		OpportunityScore: &score,
		Notes:            notes,
	}, true
}

func (c *Coordinator) record(ctx context.Context, cycleID uuid.UUID, s SourceSummary) error {
	run := &models.ScrapingRun{
		CycleID:        cycleID,
		Source:         s.Source,
		ContractsFound: s.Found,
		ContractsAdded: s.Added,
		Outcome:        s.Outcome,
		ErrorMessage:   s.Error,
		ScrapedAt:      c.Now(),
	}
	if err := c.Ledger.AppendRun(ctx, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// abortRemaining gives every unprocessed source an error entry so the ledger stays complete.
func (c *Coordinator) abortRemaining(ctx context.Context, cycleID uuid.UUID, rest []SourceConfig, results map[string]SourceSummary, cause error) {
	for _, src := range rest {
		summary := SourceSummary{
			Source:  src.Name,
			Outcome: models.RunError,
			Error:   fmt.Sprintf("cycle aborted: %v", cause),
		}
		results[src.ID] = summary
		if err := c.record(ctx, cycleID, summary); err != nil {
			c.Logger.WithError(err).WithField("source", src.ID).Error("ledger write failed during abort")
		}
	}
}
