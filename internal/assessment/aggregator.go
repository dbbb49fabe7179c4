// Package assessment accumulates per-turn scores into category scores
// and the final hiring assessment.
package assessment

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/models"
)

// Recommendation thresholds over the overall score.
const (
	strongHireThreshold = 8.5
	hireThreshold       = 7.0
	noHireThreshold     = 5.0
)

// insufficientDataScore is the overall-score sentinel for assessments
// built from an empty transcript.
const insufficientDataScore = -1.0

var dimensionLabels = []string{"content", "technical_accuracy", "communication", "relevance"}

var labelText = map[string]string{
	"content":            "substantive, well-developed answers",
	"technical_accuracy": "technically accurate reasoning",
	"communication":      "clear and structured communication",
	"relevance":          "answers that directly address the question",
}

// Aggregator maintains a running weighted mean per assessment category,
// updated incrementally as turns arrive. It never mutates the session;
// the engine feeds it turns and asks for the final assessment.
type Aggregator struct {
	accumulators map[models.Category]models.CategoryAccumulator
	logger       *zerolog.Logger
}

func NewAggregator(logger *zerolog.Logger) *Aggregator {
	return &Aggregator{
		accumulators: make(map[models.Category]models.CategoryAccumulator),
		logger:       logger,
	}
}

// Observe folds one scored turn into the category determined by the
// fixed stage mapping.
func (a *Aggregator) Observe(turn models.Turn) {
	category, ok := models.StageCategory[turn.Stage]
	if !ok {
		a.logger.Error().Str("stage", string(turn.Stage)).Msg("turn with unknown stage, not aggregated")
		return
	}

	acc := a.accumulators[category]
	acc.Sum += turn.Score.Final
	acc.Weight += 1.0
	a.accumulators[category] = acc

	a.logger.Debug().
		Str("category", string(category)).
		Float64("mean", acc.Sum/acc.Weight).
		Msg("category score updated")
}

// Accumulators returns a copy of the running state for checkpointing.
func (a *Aggregator) Accumulators() map[models.Category]models.CategoryAccumulator {
	out := make(map[models.Category]models.CategoryAccumulator, len(a.accumulators))
	for category, acc := range a.accumulators {
		out[category] = acc
	}
	return out
}

// Restore replaces the running state from a checkpoint snapshot.
func (a *Aggregator) Restore(accumulators map[models.Category]models.CategoryAccumulator) {
	a.accumulators = make(map[models.Category]models.CategoryAccumulator, len(accumulators))
	for category, acc := range accumulators {
		a.accumulators[category] = acc
	}
}

// Finalize computes the assessment over the transcript seen so far.
// It is a pure function of the accumulated state: calling it repeatedly
// on an unchanged transcript yields identical results. An empty
// transcript yields the insufficient-data assessment rather than a
// score over nothing.
func (a *Aggregator) Finalize(sessionID string, transcript []models.Turn, partial bool, failureReason string) models.Assessment {
	assessment := models.Assessment{
		SessionID:      sessionID,
		CategoryScores: make(map[models.Category]float64),
		Transcript:     transcript,
		Partial:        partial,
		FailureReason:  failureReason,
	}

	if len(transcript) == 0 {
		assessment.InsufficientData = true
		assessment.OverallScore = insufficientDataScore
		assessment.Recommendation = models.RecommendationNoHire
		a.logger.Warn().Str("session_id", sessionID).Msg("finalizing with empty transcript, insufficient data")
		return assessment
	}

	// Weighted mean per category; categories without contributing turns
	// are excluded and the category weights renormalized over the rest.
	weightTotal := 0.0
	weightedSum := 0.0
	for category, acc := range a.accumulators {
		if acc.Weight == 0 {
			continue
		}
		mean := acc.Sum / acc.Weight
		assessment.CategoryScores[category] = mean
		weightedSum += mean * models.CategoryWeights[category]
		weightTotal += models.CategoryWeights[category]
	}

	if weightTotal > 0 {
		assessment.OverallScore = weightedSum / weightTotal
	}
	assessment.Recommendation = recommend(assessment.OverallScore)
	assessment.Strengths, assessment.AreasForImprovement = deriveHighlights(transcript)

	a.logger.Info().
		Str("session_id", sessionID).
		Float64("overall", assessment.OverallScore).
		Str("recommendation", string(assessment.Recommendation)).
		Bool("partial", partial).
		Msg("assessment finalized")

	return assessment
}

func recommend(overall float64) models.Recommendation {
	switch {
	case overall >= strongHireThreshold:
		return models.RecommendationStrongHire
	case overall >= hireThreshold:
		return models.RecommendationHire
	case overall >= noHireThreshold:
		return models.RecommendationNoHire
	default:
		return models.RecommendationStrongNoHire
	}
}

// deriveHighlights ranks the four sub-score labels by their mean across
// all turns: the top two become strengths, the bottom two areas for
// improvement. Ties break on the fixed label order so the output is
// deterministic.
func deriveHighlights(transcript []models.Turn) ([]string, []string) {
	sums := make(map[string]float64, len(dimensionLabels))
	for _, turn := range transcript {
		sums["content"] += turn.Score.Content
		sums["technical_accuracy"] += turn.Score.Technical
		sums["communication"] += turn.Score.Communication
		sums["relevance"] += turn.Score.Relevance
	}

	order := make(map[string]int, len(dimensionLabels))
	for i, label := range dimensionLabels {
		order[label] = i
	}

	ranked := append([]string(nil), dimensionLabels...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if sums[ranked[i]] != sums[ranked[j]] {
			return sums[ranked[i]] > sums[ranked[j]]
		}
		return order[ranked[i]] < order[ranked[j]]
	})

	strengths := []string{labelText[ranked[0]], labelText[ranked[1]]}
	areas := []string{labelText[ranked[2]], labelText[ranked[3]]}
	return strengths, areas
}
