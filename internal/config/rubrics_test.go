package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRubrics(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "rubrics.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}

const validRubrics = `dimensions:
  - name: content
    description: "Depth and substance"
    prompt: |
      Rate the answer: {{.Answer}}
      {"score": <float>, "reason": "<string>"}
    model:
      max_tokens: 128
      temperature: 0.0
      retry: true

  - name: technical_accuracy
    description: "Correctness"
    prompt: |
      Question: {{.Question}}
      Answer: {{.Answer}}
      {"score": <float>, "reason": "<string>"}

  - name: communication
    description: "Clarity"
    prompt: |
      Answer: {{.Answer}}
      {"score": <float>, "reason": "<string>"}

  - name: relevance
    description: "On-topic"
    prompt: |
      Stage: {{.Stage}}
      {{.Guidance}}
      {"score": <float>, "reason": "<string>"}

stage_guidance:
  technical_skills: "Weight depth of technical reasoning heavily."
  behavioral: "Look for concrete situations and outcomes."
`

func TestLoadRubrics_Success(t *testing.T) {
	configPath := writeRubrics(t, validRubrics)

	cfg, err := LoadRubrics(configPath)
	if err != nil {
		t.Fatalf("LoadRubrics() failed: %v", err)
	}

	if len(cfg.Dimensions) != 4 {
		t.Errorf("Expected 4 dimensions, got %d", len(cfg.Dimensions))
	}

	// Explicit model config preserved
	content, ok := cfg.Dimension("content")
	if !ok {
		t.Fatal("Expected content dimension")
	}
	if content.Model.MaxTokens != 128 {
		t.Errorf("Expected content max_tokens=128, got %d", content.Model.MaxTokens)
	}
	if !content.Model.Retry {
		t.Error("Expected content retry=true")
	}

	// Defaults applied where the model block is absent
	technical, _ := cfg.Dimension("technical_accuracy")
	if technical.Model == nil {
		t.Fatal("Expected default model config to be populated")
	}
	if technical.Model.MaxTokens != 256 {
		t.Errorf("Expected default max_tokens=256, got %d", technical.Model.MaxTokens)
	}

	if cfg.StageGuidance["technical_skills"] == "" {
		t.Error("Expected stage guidance for technical_skills")
	}
}

func TestLoadRubrics_EnvVarPath(t *testing.T) {
	configPath := writeRubrics(t, validRubrics)

	os.Setenv("RUBRICS_CONFIG_PATH", configPath)
	defer os.Unsetenv("RUBRICS_CONFIG_PATH")

	cfg, err := LoadRubrics("")
	if err != nil {
		t.Fatalf("LoadRubrics() with env path failed: %v", err)
	}
	if len(cfg.Dimensions) != 4 {
		t.Errorf("Expected 4 dimensions, got %d", len(cfg.Dimensions))
	}
}

func TestLoadRubrics_MissingDimension(t *testing.T) {
	configPath := writeRubrics(t, `dimensions:
  - name: content
    prompt: "Rate {{.Answer}}"
  - name: communication
    prompt: "Rate {{.Answer}}"
  - name: relevance
    prompt: "Rate {{.Answer}}"
`)

	if _, err := LoadRubrics(configPath); err == nil {
		t.Fatal("Expected error for missing technical_accuracy dimension")
	}
}

func TestLoadRubrics_EmptyPrompt(t *testing.T) {
	configPath := writeRubrics(t, `dimensions:
  - name: content
    prompt: ""
  - name: technical_accuracy
    prompt: "p"
  - name: communication
    prompt: "p"
  - name: relevance
    prompt: "p"
`)

	if _, err := LoadRubrics(configPath); err == nil {
		t.Fatal("Expected error for empty prompt")
	}
}

func TestLoadRubrics_DuplicateDimension(t *testing.T) {
	configPath := writeRubrics(t, `dimensions:
  - name: content
    prompt: "p"
  - name: content
    prompt: "p"
  - name: technical_accuracy
    prompt: "p"
  - name: communication
    prompt: "p"
  - name: relevance
    prompt: "p"
`)

	if _, err := LoadRubrics(configPath); err == nil {
		t.Fatal("Expected error for duplicate dimension")
	}
}

func TestLoadRubrics_FileMissing(t *testing.T) {
	if _, err := LoadRubrics(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}
