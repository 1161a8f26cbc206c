package notify

import (
	_ "embed"
	"fmt"

	"github.com/david/contract-broker/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultTemplate is the built-in content and bookkeeping for one template type.
type DefaultTemplate struct {
	Subject      string `yaml:"subject"`
	Body         string `yaml:"body"`
	FollowUpDays int    `yaml:"follow_up_days"`
	Outcome      string `yaml:"outcome"`
}

type Defaults map[models.TemplateType]DefaultTemplate

var templateTypes = []models.TemplateType{
	models.TemplateIntroduction,
	models.TemplateFollowUp,
	models.TemplateAlert,
}

// LoadDefaults parses the embedded defaults. Every template type must be present.
func LoadDefaults() (Defaults, error) {
	return parseDefaults(defaultsYAML)
}

func parseDefaults(data []byte) (Defaults, error) {
	var doc struct {
		Templates Defaults `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse default templates: %w", err)
	}
	for _, t := range templateTypes {
		d, ok := doc.Templates[t]
		if !ok || d.Subject == "" || d.Body == "" {
			return nil, fmt.Errorf("default template %q missing or empty", t)
		}
		if d.FollowUpDays <= 0 {
			return nil, fmt.Errorf("default template %q: follow_up_days must be positive", t)
		}
	}
	return doc.Templates, nil
}
