// Package mcpadapter exposes the scoring and assessment pipelines as MCP
// tools so other agents can score answers without going through the HTTP
// API or a live voice session.
package mcpadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/assessment"
	"github.com/voxhire/interview-agent/internal/models"
	"github.com/voxhire/interview-agent/internal/scorer"
)

// ScoreAnswerInput is the MCP tool input schema for single answer scoring.
type ScoreAnswerInput struct {
	Question string `json:"question" jsonschema:"interview question that was asked"`
	Answer   string `json:"answer" jsonschema:"candidate answer to score"`
	Stage    string `json:"stage,omitempty" jsonschema:"interview stage: introduction, background, technical_skills, problem_solving, behavioral, closing (default: background)"`
}

// ScoreAnswerResult is the tool output for score_answer.
type ScoreAnswerResult struct {
	Score         models.ScoreBreakdown `json:"score"`
	NeedsFollowup bool                  `json:"needs_followup"`
}

// TranscriptTurn is one question/answer exchange in assess_transcript input.
type TranscriptTurn struct {
	Question string `json:"question" jsonschema:"question that was asked"`
	Answer   string `json:"answer" jsonschema:"candidate answer"`
	Stage    string `json:"stage,omitempty" jsonschema:"interview stage the turn belongs to (default: background)"`
}

// AssessTranscriptInput is the MCP tool input schema for offline
// transcript assessment.
type AssessTranscriptInput struct {
	SessionID  string           `json:"session_id,omitempty" jsonschema:"identifier recorded on the assessment"`
	Transcript []TranscriptTurn `json:"transcript" jsonschema:"question/answer exchanges in interview order"`
}

// NewScoreAnswerHandler returns a tool handler that scores one answer.
// Pass the returned function to mcp.AddTool.
func NewScoreAnswerHandler(s *scorer.Scorer) func(context.Context, *mcp.CallToolRequest, ScoreAnswerInput) (*mcp.CallToolResult, ScoreAnswerResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ScoreAnswerInput) (*mcp.CallToolResult, ScoreAnswerResult, error) {
		return ScoreAnswer(ctx, s, req, input)
	}
}

// ScoreAnswer runs the four rubric evaluations for one answer.
func ScoreAnswer(
	ctx context.Context,
	s *scorer.Scorer,
	req *mcp.CallToolRequest,
	input ScoreAnswerInput,
) (*mcp.CallToolResult, ScoreAnswerResult, error) {
	stage, err := resolveStage(input.Stage)
	if err != nil {
		return nil, ScoreAnswerResult{}, err
	}

	breakdown, needsFollowup, err := s.Score(ctx, input.Question, input.Answer, stage)
	if err != nil {
		return nil, ScoreAnswerResult{}, err
	}

	return nil, ScoreAnswerResult{Score: breakdown, NeedsFollowup: needsFollowup}, nil
}

// NewAssessTranscriptHandler returns a tool handler that scores every
// turn of a transcript and aggregates the final assessment.
// Pass the returned function to mcp.AddTool.
func NewAssessTranscriptHandler(s *scorer.Scorer, logger *zerolog.Logger) func(context.Context, *mcp.CallToolRequest, AssessTranscriptInput) (*mcp.CallToolResult, models.Assessment, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AssessTranscriptInput) (*mcp.CallToolResult, models.Assessment, error) {
		return AssessTranscript(ctx, s, logger, req, input)
	}
}

// AssessTranscript scores each turn and folds the results into an
// assessment, exactly as a live session would.
func AssessTranscript(
	ctx context.Context,
	s *scorer.Scorer,
	logger *zerolog.Logger,
	req *mcp.CallToolRequest,
	input AssessTranscriptInput,
) (*mcp.CallToolResult, models.Assessment, error) {
	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = "offline-assessment"
	}

	aggregator := assessment.NewAggregator(logger)
	transcript := make([]models.Turn, 0, len(input.Transcript))

	for i, in := range input.Transcript {
		stage, err := resolveStage(in.Stage)
		if err != nil {
			return nil, models.Assessment{}, fmt.Errorf("turn %d: %w", i, err)
		}

		breakdown, _, err := s.Score(ctx, in.Question, in.Answer, stage)
		if err != nil {
			return nil, models.Assessment{}, fmt.Errorf("turn %d: %w", i, err)
		}

		turn := models.Turn{
			Question: in.Question,
			Answer:   in.Answer,
			Stage:    stage,
			Score:    breakdown,
			AskedAt:  time.Now(),
		}
		transcript = append(transcript, turn)
		aggregator.Observe(turn)
	}

	result := aggregator.Finalize(sessionID, transcript, false, "")
	result.FinalizedAt = time.Now()
	return nil, result, nil
}

func resolveStage(name string) (models.Stage, error) {
	if name == "" {
		return models.StageBackground, nil
	}

	stage := models.Stage(name)
	if _, ok := models.StageCategory[stage]; !ok {
		return "", fmt.Errorf("unknown stage %q", name)
	}
	return stage, nil
}
