package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/config"
	"github.com/voxhire/interview-agent/internal/llm"
	"github.com/voxhire/interview-agent/internal/models"
)

// dimensionJudge scores one dimension of an answer with a configurable
// rubric prompt. A capability failure is returned as an error, distinct
// from a low score.
type dimensionJudge struct {
	name           string
	promptTemplate *template.Template
	modelConfig    config.ModelConfig
	guidance       map[string]string
	llmClient      llm.LLMClient
	logger         *zerolog.Logger
}

type judgeResponse struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

type promptData struct {
	Question string
	Answer   string
	Stage    string
	Guidance string
}

func newDimensionJudge(
	dimCfg config.DimensionConfig,
	guidance map[string]string,
	llmClient llm.LLMClient,
	logger *zerolog.Logger,
) (*dimensionJudge, error) {
	tmpl, err := template.New(dimCfg.Name).Parse(dimCfg.Prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template for dimension %s: %w", dimCfg.Name, err)
	}

	if dimCfg.Model == nil {
		return nil, fmt.Errorf("dimension %s has nil model config (should be populated by config loader)", dimCfg.Name)
	}

	return &dimensionJudge{
		name:           dimCfg.Name,
		promptTemplate: tmpl,
		modelConfig:    *dimCfg.Model,
		guidance:       guidance,
		llmClient:      llmClient,
		logger:         logger,
	}, nil
}

// evaluate runs one rubric call and returns the clamped score.
func (j *dimensionJudge) evaluate(ctx context.Context, question, answer string, stage models.Stage) (float64, error) {
	prompt, err := j.buildPrompt(question, answer, stage)
	if err != nil {
		return 0, fmt.Errorf("failed to build rubric prompt for %s: %w", j.name, err)
	}

	request := llm.LLMRequest{
		Prompt:      prompt,
		MaxTokens:   j.modelConfig.MaxTokens,
		Temperature: j.modelConfig.Temperature,
	}

	var resp *llm.LLMResponse
	if j.modelConfig.Retry {
		resp, err = j.llmClient.InvokeModelWithRetry(ctx, request)
	} else {
		resp, err = j.llmClient.InvokeModel(ctx, request)
	}
	if err != nil {
		return 0, fmt.Errorf("rubric call for %s failed: %w", j.name, err)
	}

	content := stripMarkdownCodeBlock(resp.Content)
	var parsed judgeResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		j.logger.Error().
			Err(err).
			Str("dimension", j.name).
			Str("content", resp.Content).
			Msg("failed to deserialize rubric response")
		return 0, fmt.Errorf("undecodable rubric response for %s: %w", j.name, err)
	}

	score := clamp(parsed.Score, 0, 10)

	j.logger.Debug().
		Str("dimension", j.name).
		Float64("score", score).
		Str("reason", parsed.Reason).
		Msg("dimension scored")

	return score, nil
}

func (j *dimensionJudge) buildPrompt(question, answer string, stage models.Stage) (string, error) {
	var buf bytes.Buffer
	data := promptData{
		Question: question,
		Answer:   answer,
		Stage:    string(stage),
		Guidance: j.guidance[string(stage)],
	}
	if err := j.promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// stripMarkdownCodeBlock removes markdown code block formatting if present
func stripMarkdownCodeBlock(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		firstNewline := strings.Index(content, "\n")
		if firstNewline == -1 {
			return content
		}

		closingBackticks := strings.LastIndex(content, "```")
		if closingBackticks == -1 || closingBackticks <= firstNewline {
			return content
		}

		content = content[firstNewline+1 : closingBackticks]
		content = strings.TrimSpace(content)
	}

	return content
}
