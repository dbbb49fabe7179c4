package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelConfig holds per-dimension LLM call parameters.
type ModelConfig struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Retry       bool    `yaml:"retry"`
}

// DimensionConfig configures one scoring dimension. The prompt is a Go
// text template executed with the turn's question, answer, stage and the
// stage guidance text.
type DimensionConfig struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Prompt      string       `yaml:"prompt"`
	Model       *ModelConfig `yaml:"model"`
}

// RubricsConfig is the full scoring rubric configuration loaded from YAML.
type RubricsConfig struct {
	Dimensions    []DimensionConfig `yaml:"dimensions"`
	StageGuidance map[string]string `yaml:"stage_guidance"`
}

// ScoringDimensions is the fixed set of sub-scores every answer receives.
var ScoringDimensions = []string{"content", "technical_accuracy", "communication", "relevance"}

// LoadRubrics reads the rubric configuration from path, or from
// RUBRICS_CONFIG_PATH / configs/rubrics.yaml when path is empty.
func LoadRubrics(path string) (*RubricsConfig, error) {
	if path == "" {
		path = os.Getenv("RUBRICS_CONFIG_PATH")
	}
	if path == "" {
		path = "configs/rubrics.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RubricsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *RubricsConfig) {
	for i := range cfg.Dimensions {
		if cfg.Dimensions[i].Model == nil {
			cfg.Dimensions[i].Model = &ModelConfig{}
		}
		if cfg.Dimensions[i].Model.MaxTokens == 0 {
			cfg.Dimensions[i].Model.MaxTokens = 256
		}
	}
}

// Validate checks that every scoring dimension has exactly one rubric
// with a non-empty prompt.
func (c *RubricsConfig) Validate() error {
	seen := make(map[string]bool)
	for _, dim := range c.Dimensions {
		if dim.Name == "" {
			return fmt.Errorf("rubric dimension with empty name")
		}
		if dim.Prompt == "" {
			return fmt.Errorf("rubric dimension %s has empty prompt", dim.Name)
		}
		if seen[dim.Name] {
			return fmt.Errorf("duplicate rubric dimension %s", dim.Name)
		}
		seen[dim.Name] = true
	}

	for _, name := range ScoringDimensions {
		if !seen[name] {
			return fmt.Errorf("missing rubric dimension %s", name)
		}
	}

	return nil
}

// Dimension returns the rubric for the named dimension.
func (c *RubricsConfig) Dimension(name string) (DimensionConfig, bool) {
	for _, dim := range c.Dimensions {
		if dim.Name == name {
			return dim, true
		}
	}
	return DimensionConfig{}, false
}
