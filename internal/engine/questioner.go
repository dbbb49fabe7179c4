package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/llm"
	"github.com/voxhire/interview-agent/internal/models"
)

const closingRemarksText = "Thank you for taking the time to interview with us today. " +
	"You should hear back about the next steps within a few days. Have a great day!"

const fallbackOpening = "Hello! I'm your AI interviewer today. Could you please introduce yourself?"

// fallbackQuestions are canned per-stage questions used when question
// generation fails even after its retry. The interview degrades to
// template questions instead of aborting.
var fallbackQuestions = map[models.Stage][]string{
	models.StageIntroduction: {
		"Could you please introduce yourself and tell me a bit about your background?",
		"What interests you about this role?",
	},
	models.StageBackground: {
		"Can you tell me about a recent project you worked on that you're particularly proud of?",
		"What's the most challenging technical problem you've solved recently?",
		"Describe a time when you had to learn a new technology quickly. How did you approach it?",
	},
	models.StageTechnicalSkills: {
		"Walk me through how you would approach designing a system for high availability.",
		"What are some best practices you follow when writing code?",
		"Tell me about a technology you know deeply and how you've applied it.",
	},
	models.StageProblemSolving: {
		"If you encountered a performance issue in production, what steps would you take to diagnose and fix it?",
		"Describe your debugging process when facing a complex issue.",
	},
	models.StageBehavioral: {
		"Tell me about a time when you disagreed with a team member. How did you handle it?",
		"Describe a situation where you had to work under tight deadlines. How did you manage?",
	},
	models.StageClosing: {
		"Do you have any questions about the role or the company?",
	},
}

// QuestionRequest carries everything question generation may use. The
// difficulty hint and focus areas are passed opaquely into the prompt;
// the engine never interprets question content.
type QuestionRequest struct {
	Session        *models.Session
	Stage          models.Stage
	DifficultyHint string
	FollowUp       bool
	LastAnswer     string
}

// Questioner generates interview questions through the LLM capability,
// falling back to stage templates when generation fails.
type Questioner struct {
	llmClient llm.LLMClient
	logger    *zerolog.Logger
}

func NewQuestioner(llmClient llm.LLMClient, logger *zerolog.Logger) *Questioner {
	return &Questioner{llmClient: llmClient, logger: logger}
}

// Opening generates the personalized greeting that doubles as the first
// introduction question.
func (q *Questioner) Opening(ctx context.Context, session *models.Session) (string, error) {
	prompt := fmt.Sprintf(`You are an AI interviewer conducting a professional interview for a %s position.

Candidate information:
- Name: %s
- Experience: %s
- Background: %s

Generate a warm, professional opening greeting that introduces you as the
AI interviewer, sets expectations for the interview, makes the candidate
feel comfortable, and asks for a brief self-introduction.

Keep it concise. Return only the greeting, no additional text.`,
		orDefault(session.Role.Title, "software developer"),
		orDefault(session.Candidate.Name, "Candidate"),
		orDefault(session.Candidate.ExperienceLevel, "not specified"),
		orDefault(session.Candidate.Background, "not provided"),
	)

	resp, err := q.llmClient.InvokeModelWithRetry(ctx, llm.LLMRequest{
		Prompt:      prompt,
		MaxTokens:   200,
		Temperature: 0.7,
	})
	if err != nil {
		q.logger.Warn().Err(err).Msg("opening generation failed, using fallback greeting")
		return fallbackOpening, nil
	}

	opening := strings.TrimSpace(resp.Content)
	if opening == "" {
		return fallbackOpening, nil
	}
	return opening, nil
}

// Next generates the next question for the requested stage.
func (q *Questioner) Next(ctx context.Context, req QuestionRequest) (string, error) {
	prompt := q.buildPrompt(req)

	resp, err := q.llmClient.InvokeModelWithRetry(ctx, llm.LLMRequest{
		Prompt:      prompt,
		MaxTokens:   200,
		Temperature: 0.8,
	})
	if err != nil {
		q.logger.Warn().
			Err(err).
			Str("stage", string(req.Stage)).
			Msg("question generation failed, using stage template")
		return q.fallback(req), nil
	}

	question := strings.TrimSpace(resp.Content)
	if question == "" {
		return q.fallback(req), nil
	}

	q.logger.Info().
		Str("stage", string(req.Stage)).
		Bool("follow_up", req.FollowUp).
		Str("difficulty", req.DifficultyHint).
		Msg("question generated")

	return question, nil
}

// ClosingRemarks is the farewell spoken before the session completes.
func (q *Questioner) ClosingRemarks(session *models.Session) string {
	return closingRemarksText
}

func (q *Questioner) buildPrompt(req QuestionRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are conducting a professional interview for a %s position.\n",
		orDefault(req.Session.Role.Title, "software developer"))
	fmt.Fprintf(&b, "Current interview stage: %s\n", req.Stage)
	fmt.Fprintf(&b, "Questions asked so far: %d\n\n", len(req.Session.Transcript))

	if context := transcriptContext(req.Session.Transcript); context != "" {
		fmt.Fprintf(&b, "Conversation so far:\n%s\n\n", context)
	}

	if req.FollowUp {
		fmt.Fprintf(&b, "The previous answer needs a follow-up. Previous answer: %q\n", req.LastAnswer)
		b.WriteString("Generate exactly one follow-up question that digs deeper into the same topic.\n")
	} else {
		b.WriteString("Generate the next question for this stage.\n")
	}

	if req.DifficultyHint != "" {
		fmt.Fprintf(&b, "Difficulty: %s\n", req.DifficultyHint)
	}
	if level := req.Session.Config.ExperienceLevel; level != "" {
		fmt.Fprintf(&b, "Candidate experience level: %s\n", level)
	}
	if len(req.Session.Config.FocusAreas) > 0 {
		fmt.Fprintf(&b, "Topics to favor: %s\n", strings.Join(req.Session.Config.FocusAreas, ", "))
	}

	b.WriteString("\nReturn only the question, no additional text.")
	return b.String()
}

func (q *Questioner) fallback(req QuestionRequest) string {
	templates := fallbackQuestions[req.Stage]
	if len(templates) == 0 {
		templates = fallbackQuestions[models.StageBackground]
	}
	return templates[len(req.Session.Transcript)%len(templates)]
}

// transcriptContext summarizes the last few exchanges for the prompt.
func transcriptContext(transcript []models.Turn) string {
	const window = 5

	start := 0
	if len(transcript) > window {
		start = len(transcript) - window
	}

	var parts []string
	for _, turn := range transcript[start:] {
		parts = append(parts, fmt.Sprintf("Interviewer: %s", truncate(turn.Question, 100)))
		parts = append(parts, fmt.Sprintf("Candidate: %s", truncate(turn.Answer, 100)))
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
