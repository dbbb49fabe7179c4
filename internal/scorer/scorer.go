// Package scorer converts one answer into a multi-dimensional score by
// running four independent rubric evaluations against the LLM
// capability. Scores are advisory: the evaluation calls have inherent
// variance, so consumers must never assume bit-identical repeat scoring.
package scorer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/config"
	"github.com/voxhire/interview-agent/internal/llm"
	"github.com/voxhire/interview-agent/internal/models"
)

// Fixed sub-score weights for the per-turn final.
const (
	weightContent       = 0.3
	weightTechnical     = 0.4
	weightCommunication = 0.2
	weightRelevance     = 0.1
)

// Follow-up thresholds.
const (
	followupContentThreshold   = 6.0
	followupRelevanceThreshold = 5.0
)

// Scorer runs the four dimension judges for one answer.
type Scorer struct {
	judges map[string]*dimensionJudge
	logger *zerolog.Logger
}

// NewScorer builds one judge per scoring dimension from the rubric
// configuration.
func NewScorer(rubrics *config.RubricsConfig, llmClient llm.LLMClient, logger *zerolog.Logger) (*Scorer, error) {
	if rubrics == nil {
		return nil, fmt.Errorf("rubrics config is nil")
	}

	judges := make(map[string]*dimensionJudge, len(config.ScoringDimensions))
	for _, name := range config.ScoringDimensions {
		dimCfg, ok := rubrics.Dimension(name)
		if !ok {
			return nil, fmt.Errorf("missing rubric for dimension %s", name)
		}
		judge, err := newDimensionJudge(dimCfg, rubrics.StageGuidance, llmClient, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create judge for %s: %w", name, err)
		}
		judges[name] = judge
	}

	return &Scorer{judges: judges, logger: logger}, nil
}

// Score evaluates one question/answer pair. Empty answers never reach
// the LLM: they come back as an all-zero breakdown with needsFollowup
// set. A rubric capability failure (after its own retry) is returned as
// an error for the engine to escalate.
func (s *Scorer) Score(ctx context.Context, question, answer string, stage models.Stage) (models.ScoreBreakdown, bool, error) {
	if strings.TrimSpace(answer) == "" {
		s.logger.Info().Str("stage", string(stage)).Msg("empty answer, skipping rubric calls")
		return models.ScoreBreakdown{}, true, nil
	}

	type dimResult struct {
		name  string
		score float64
		err   error
	}

	results := make(chan dimResult, len(s.judges))
	var wg sync.WaitGroup

	for name, judge := range s.judges {
		wg.Add(1)
		go func(name string, j *dimensionJudge) {
			defer wg.Done()
			score, err := j.evaluate(ctx, question, answer, stage)
			results <- dimResult{name: name, score: score, err: err}
		}(name, judge)
	}

	wg.Wait()
	close(results)

	scores := make(map[string]float64, len(s.judges))
	for result := range results {
		if result.err != nil {
			return models.ScoreBreakdown{}, false, result.err
		}
		scores[result.name] = result.score
	}

	breakdown := models.ScoreBreakdown{
		Content:       scores["content"],
		Technical:     scores["technical_accuracy"],
		Communication: scores["communication"],
		Relevance:     scores["relevance"],
	}
	breakdown.Final = Final(breakdown)

	needsFollowup := breakdown.Content < followupContentThreshold ||
		breakdown.Relevance < followupRelevanceThreshold

	s.logger.Info().
		Str("stage", string(stage)).
		Float64("final", breakdown.Final).
		Bool("needs_followup", needsFollowup).
		Msg("answer scored")

	return breakdown, needsFollowup, nil
}

// Final computes the fixed-weight per-turn score, clamped to [0,10].
func Final(b models.ScoreBreakdown) float64 {
	final := b.Content*weightContent +
		b.Technical*weightTechnical +
		b.Communication*weightCommunication +
		b.Relevance*weightRelevance
	return clamp(final, 0, 10)
}
