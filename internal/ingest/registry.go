package ingest

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

var ErrUnknownSource = errors.New("unknown source")

// Registry holds the configuration for all opportunity sources, in run order.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

type SourceConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"` // recorded in the run ledger
	Strategy string `yaml:"strategy"`
	Active   bool   `yaml:"active"`
	BaseURL  string `yaml:"base_url"`

	// Structured API sources.
	ClassificationCodes []string `yaml:"classification_codes,omitempty"`
	PageSize            int      `yaml:"page_size,omitempty"`
	MaxPages            int      `yaml:"max_pages,omitempty"`
	RequestDelayMS      int      `yaml:"request_delay_ms,omitempty"`
	TimeoutSeconds      int      `yaml:"timeout_seconds,omitempty"`

	// Page sources.
	Selectors      SelectorConfig `yaml:"selectors,omitempty"`
	ClassKeywords  []string       `yaml:"class_keywords,omitempty"`
	MaxItems       int            `yaml:"max_items,omitempty"`
	MaxTitleLength int            `yaml:"max_title_length,omitempty"`
	SettleSeconds  int            `yaml:"settle_seconds,omitempty"`

	// Defaults applied to every listing from this source.
	DefaultAgency         string `yaml:"default_agency,omitempty"`
	DefaultClassification string `yaml:"default_classification,omitempty"`
	FallbackTitle         string `yaml:"fallback_title,omitempty"`
	Notes                 string `yaml:"notes,omitempty"`

	// FixedScore, when set, replaces computed scoring for this source.
	FixedScore     int `yaml:"fixed_score,omitempty"`
	MinTitleLength int `yaml:"min_title_length,omitempty"`
}

type SelectorConfig struct {
	Container string `yaml:"container,omitempty"`
	Title     string `yaml:"title,omitempty"`
}

func (c SourceConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

func (c SourceConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c SourceConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleSeconds) * time.Second
}

// LoadRegistry reads the embedded sources.yaml, or the file at path when given.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read source registry: %w", err)
	}
	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*Registry, error) {
	// Expand environment variables within the YAML content (e.g. ${SAM_API_KEY})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse source registry: %w", err)
	}

	seen := make(map[string]bool, len(reg.Sources))
	for _, src := range reg.Sources {
		if src.ID == "" || src.Strategy == "" {
			return nil, fmt.Errorf("source %q: id and strategy are required", src.Name)
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
	}
	return &reg, nil
}

// Select returns the named sources in registry order, or every active source when ids is empty.
// Naming an inactive source selects it anyway.
func (r *Registry) Select(ids ...string) ([]SourceConfig, error) {
	if len(ids) == 0 {
		var active []SourceConfig
		for _, src := range r.Sources {
			if src.Active {
				active = append(active, src)
			}
		}
		return active, nil
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var selected []SourceConfig
	for _, src := range r.Sources {
		if want[src.ID] {
			selected = append(selected, src)
			delete(want, src.ID)
		}
	}
	for id := range want {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return selected, nil
}
