package ingest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	StrategySAMGov       = "api_sam_gov"
	StrategyRenderedPage = "rendered_page"
	StrategyMarketplace  = "html_marketplace"
)

var (
	ErrUnknownStrategy    = errors.New("unknown strategy")
	ErrBrowserUnavailable = errors.New("headless browser unavailable")
)

// AdapterEnv carries the per-run resources adapters are built from.
type AdapterEnv struct {
	HTTPClient  *http.Client      // JSON API sources
	Transport   http.RoundTripper // page sources fetched with colly; nil keeps colly's default
	Renderer    Renderer          // nil when no browser session is open
	RendererErr error             // why Renderer is nil, if a launch was attempted
	Logger      *logrus.Entry
}

type AdapterBuilder func(cfg SourceConfig, env AdapterEnv) (SourceAdapter, error)

type strategy struct {
	build        AdapterBuilder
	needsBrowser bool
}

// StrategyFactory maps strategy IDs (from sources.yaml) to adapter builders.
type StrategyFactory struct {
	strategies map[string]strategy
}

func NewStrategyFactory() *StrategyFactory {
	return &StrategyFactory{strategies: make(map[string]strategy)}
}

func (f *StrategyFactory) Register(id string, build AdapterBuilder) {
	f.strategies[id] = strategy{build: build}
}

// RegisterBrowser registers a strategy whose adapters render pages in the run's browser session.
func (f *StrategyFactory) RegisterBrowser(id string, build AdapterBuilder) {
	f.strategies[id] = strategy{build: build, needsBrowser: true}
}

func (f *StrategyFactory) NeedsBrowser(id string) bool {
	return f.strategies[id].needsBrowser
}

func (f *StrategyFactory) adapterBuilder(id string) (AdapterBuilder, error) {
	s, ok := f.strategies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, id)
	}
	return s.build, nil
}

func (f *StrategyFactory) Build(cfg SourceConfig, env AdapterEnv) (SourceAdapter, error) {
	build, err := f.adapterBuilder(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	return build(cfg, env)
}

// DefaultStrategies registers the three portal adapters.
func DefaultStrategies() *StrategyFactory {
	f := NewStrategyFactory()
	f.Register(StrategySAMGov, func(cfg SourceConfig, env AdapterEnv) (SourceAdapter, error) {
		client := env.HTTPClient
		if client == nil {
			client = NewSafeClient(cfg.Timeout())
		}
		return NewSAMGovSource(cfg, client, env.Logger), nil
	})
	f.RegisterBrowser(StrategyRenderedPage, func(cfg SourceConfig, env AdapterEnv) (SourceAdapter, error) {
		if env.Renderer == nil {
			if env.RendererErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, env.RendererErr)
			}
			return nil, ErrBrowserUnavailable
		}
		return NewRenderedPageSource(cfg, env.Renderer, env.Logger), nil
	})
	f.Register(StrategyMarketplace, func(cfg SourceConfig, env AdapterEnv) (SourceAdapter, error) {
		return NewMarketplaceSource(cfg, env.Transport, env.Logger), nil
	})
	return f
}
